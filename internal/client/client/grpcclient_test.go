package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophtasks/internal/common"
	"github.com/dmitrijs2005/gophtasks/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

/*************
 * Fake rpc client
 *************/

type fakeStore struct {
	lastRefreshReq *rpc.RefreshTokenRequest
	resumeReqs     []*rpc.ResumeRequest
	lastCreateReq  *rpc.CreateDocumentRequest
	lastUpdateReq  *rpc.UpdateDocumentRequest
	lastDeleteReq  *rpc.DeleteDocumentRequest

	refreshResp *rpc.SessionResponse
	refreshErr  error
	refreshN    int

	signInResp *rpc.SessionResponse
	signInErr  error

	resume func(req *rpc.ResumeRequest) (*rpc.ResumeResponse, error)

	pingResp *rpc.PingResponse
	pingErr  error

	createResp *rpc.CreateDocumentResponse
	createErr  error
	updateErr  error
	deleteErr  error
}

func (f *fakeStore) SignInAnonymously(ctx context.Context, in *rpc.Empty, opts ...grpc.CallOption) (*rpc.SessionResponse, error) {
	return f.signInResp, f.signInErr
}
func (f *fakeStore) Resume(ctx context.Context, in *rpc.ResumeRequest, opts ...grpc.CallOption) (*rpc.ResumeResponse, error) {
	f.resumeReqs = append(f.resumeReqs, in)
	return f.resume(in)
}
func (f *fakeStore) RefreshToken(ctx context.Context, in *rpc.RefreshTokenRequest, opts ...grpc.CallOption) (*rpc.SessionResponse, error) {
	f.lastRefreshReq = in
	f.refreshN++
	return f.refreshResp, f.refreshErr
}
func (f *fakeStore) Ping(ctx context.Context, in *rpc.Empty, opts ...grpc.CallOption) (*rpc.PingResponse, error) {
	return f.pingResp, f.pingErr
}
func (f *fakeStore) CreateDocument(ctx context.Context, in *rpc.CreateDocumentRequest, opts ...grpc.CallOption) (*rpc.CreateDocumentResponse, error) {
	f.lastCreateReq = in
	return f.createResp, f.createErr
}
func (f *fakeStore) UpdateDocument(ctx context.Context, in *rpc.UpdateDocumentRequest, opts ...grpc.CallOption) (*rpc.Empty, error) {
	f.lastUpdateReq = in
	return &rpc.Empty{}, f.updateErr
}
func (f *fakeStore) DeleteDocument(ctx context.Context, in *rpc.DeleteDocumentRequest, opts ...grpc.CallOption) (*rpc.Empty, error) {
	f.lastDeleteReq = in
	return &rpc.Empty{}, f.deleteErr
}
func (f *fakeStore) Watch(ctx context.Context, in *rpc.WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[rpc.Snapshot], error) {
	return nil, status.Error(codes.Unimplemented, "fake")
}

var expiredErr = status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())

/*************
 * accessTokenInterceptor tests
 *************/

func TestInterceptor_RefreshesTokenOnExpiredAndRetries(t *testing.T) {
	f := &fakeStore{
		refreshResp: &rpc.SessionResponse{AccessToken: "A2", RefreshToken: "R2"},
	}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	var notified []string
	c.OnTokensChanged(func(a, r string) { notified = append(notified, a, r) })

	callCount := 0
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callCount++
		md, _ := metadata.FromOutgoingContext(ctx)
		toks := md.Get(common.AccessTokenHeaderName)
		require.Len(t, toks, 1)

		if callCount == 1 {
			require.Equal(t, "A1", toks[0])
			return expiredErr
		}
		require.Equal(t, "A2", toks[0])
		return nil
	}

	err := c.accessTokenInterceptor(context.Background(), rpc.MethodCreateDocument, nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Equal(t, 2, callCount)

	a, r := c.Tokens()
	require.Equal(t, "A2", a)
	require.Equal(t, "R2", r)
	require.Equal(t, "R1", f.lastRefreshReq.RefreshToken)
	require.Equal(t, []string{"A2", "R2"}, notified)
}

func TestInterceptor_NoRefreshIfNoRefreshToken(t *testing.T) {
	f := &fakeStore{}
	c := &GRPCClient{client: f, accessToken: "A1"}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return expiredErr
	}

	err := c.accessTokenInterceptor(context.Background(), rpc.MethodCreateDocument, nil, nil, nil, invoker)
	require.Error(t, err)
	require.Nil(t, f.lastRefreshReq)
}

func TestInterceptor_SkipsRefreshForRefreshMethod(t *testing.T) {
	f := &fakeStore{}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return expiredErr
	}

	err := c.accessTokenInterceptor(context.Background(), rpc.MethodRefreshToken, nil, nil, nil, invoker)
	require.Error(t, err)
	require.Zero(t, f.refreshN)
}

func TestInterceptor_IgnoresOtherErrors(t *testing.T) {
	f := &fakeStore{}
	c := &GRPCClient{client: f, accessToken: "X", refreshToken: "R"}
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Internal, "boom")
	}
	err := c.accessTokenInterceptor(context.Background(), rpc.MethodUpdateDocument, nil, nil, nil, invoker)
	require.Error(t, err)
	require.Zero(t, f.refreshN)
}

func TestInterceptor_UnauthenticatedButDifferentMessage_NoRefresh(t *testing.T) {
	f := &fakeStore{}
	c := &GRPCClient{client: f, accessToken: "X", refreshToken: "R"}
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, "some other reason")
	}
	err := c.accessTokenInterceptor(context.Background(), rpc.MethodDeleteDocument, nil, nil, nil, invoker)
	require.Error(t, err)
	require.Zero(t, f.refreshN)
}

func TestRefresh_SkipsRotationWhenAlreadyReplaced(t *testing.T) {
	f := &fakeStore{}
	c := &GRPCClient{client: f, accessToken: "A2", refreshToken: "R2"}

	got, err := c.refresh(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, "A2", got)
	require.Zero(t, f.refreshN)
}

/*************
 * mapError tests
 *************/

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	require.Nil(t, c.mapError(nil))
	require.Equal(t, ErrUnauthorized, c.mapError(status.Error(codes.Unauthenticated, "x")))
	require.Equal(t, ErrUnauthorized, c.mapError(status.Error(codes.PermissionDenied, "x")))
	require.Equal(t, ErrUnavailable, c.mapError(status.Error(codes.Unavailable, "x")))
	require.Equal(t, ErrUnavailable, c.mapError(status.Error(codes.DeadlineExceeded, "x")))
	require.Equal(t, ErrNotFound, c.mapError(status.Error(codes.NotFound, "x")))
	require.ErrorIs(t, c.mapError(status.Error(codes.InvalidArgument, "bad path")), ErrInvalidArgument)
	require.ErrorIs(t, c.mapError(status.Error(codes.Canceled, "x")), context.Canceled)
	e := errors.New("plain")
	require.ErrorContains(t, c.mapError(e), "rpc error:")
}

/*************
 * Unary call tests
 *************/

func TestPing(t *testing.T) {
	c := &GRPCClient{client: &fakeStore{pingResp: &rpc.PingResponse{Status: "OK"}}}
	require.NoError(t, c.Ping(context.Background()))

	c = &GRPCClient{client: &fakeStore{pingResp: &rpc.PingResponse{Status: "NOT_OK"}}}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)

	c = &GRPCClient{client: &fakeStore{pingErr: status.Error(codes.Unavailable, "down")}}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestSignInAnonymously_SetsTokens(t *testing.T) {
	f := &fakeStore{signInResp: &rpc.SessionResponse{UserID: "u1", AccessToken: "A", RefreshToken: "R", Anonymous: true}}
	c := &GRPCClient{client: f}

	id, err := c.SignInAnonymously(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", id.UserID)
	require.True(t, id.Anonymous)

	a, r := c.Tokens()
	require.Equal(t, "A", a)
	require.Equal(t, "R", r)
}

func TestResume_RefreshesExpiredToken(t *testing.T) {
	f := &fakeStore{
		refreshResp: &rpc.SessionResponse{AccessToken: "A2", RefreshToken: "R2"},
		resume: func(req *rpc.ResumeRequest) (*rpc.ResumeResponse, error) {
			if req.AccessToken == "A1" {
				return nil, expiredErr
			}
			return &rpc.ResumeResponse{UserID: "u1"}, nil
		},
	}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	id, err := c.Resume(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", id.UserID)
	require.Equal(t, "A2", id.AccessToken)
	require.Equal(t, "R2", id.RefreshToken)
	require.Len(t, f.resumeReqs, 2)
}

func TestResume_NoToken(t *testing.T) {
	c := &GRPCClient{client: &fakeStore{}}
	_, err := c.Resume(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestResume_InvalidToken(t *testing.T) {
	f := &fakeStore{resume: func(*rpc.ResumeRequest) (*rpc.ResumeResponse, error) {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}}
	c := &GRPCClient{client: f, accessToken: "junk", refreshToken: "R"}

	_, err := c.Resume(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, f.refreshN)
}

func TestDocumentCalls(t *testing.T) {
	f := &fakeStore{createResp: &rpc.CreateDocumentResponse{ID: "d1"}}
	c := &GRPCClient{client: f}
	ctx := context.Background()

	id, err := c.Create(ctx, "app/tasks", map[string]any{"title": "Buy milk"})
	require.NoError(t, err)
	require.Equal(t, "d1", id)
	require.Equal(t, "app/tasks", f.lastCreateReq.Path)

	require.NoError(t, c.Update(ctx, "app/tasks", "d1", map[string]any{"completed": true}))
	require.Equal(t, "d1", f.lastUpdateReq.ID)
	require.Equal(t, true, f.lastUpdateReq.Fields["completed"])

	require.NoError(t, c.Delete(ctx, "app/tasks", "d1"))
	require.Equal(t, "d1", f.lastDeleteReq.ID)

	f.updateErr = status.Error(codes.NotFound, "not found")
	require.ErrorIs(t, c.Update(ctx, "app/tasks", "zzz", nil), ErrNotFound)
}

/*************
 * End-to-end over bufconn
 *************/

type watchServer struct {
	rpc.UnimplementedStoreServer

	mu       sync.Mutex
	opens    []string
	refreshN int
}

func (s *watchServer) RefreshToken(ctx context.Context, req *rpc.RefreshTokenRequest) (*rpc.SessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshN++
	if req.RefreshToken != "R1" {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	return &rpc.SessionResponse{UserID: "u1", AccessToken: "A2", RefreshToken: "R2"}, nil
}

func (s *watchServer) CreateDocument(ctx context.Context, req *rpc.CreateDocumentRequest) (*rpc.CreateDocumentResponse, error) {
	if tokenFrom(ctx) != "A2" {
		return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}
	return &rpc.CreateDocumentResponse{ID: "d1"}, nil
}

func (s *watchServer) Watch(req *rpc.WatchRequest, stream grpc.ServerStreamingServer[rpc.Snapshot]) error {
	token := tokenFrom(stream.Context())
	s.mu.Lock()
	s.opens = append(s.opens, token)
	s.mu.Unlock()

	if token != "A2" {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}
	if err := stream.Send(&rpc.Snapshot{Path: req.Path, Documents: []rpc.Document{{ID: "d1", Path: req.Path}}}); err != nil {
		return err
	}
	<-stream.Context().Done()
	return nil
}

func tokenFrom(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
		return v[0]
	}
	return ""
}

func newBufClient(t *testing.T, srv rpc.StoreServer) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterStoreServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBufconn_UnaryRefreshesOnExpired(t *testing.T) {
	srv := &watchServer{}
	c := newBufClient(t, srv)
	c.SetTokens("A1", "R1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := c.Create(ctx, "app/tasks", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, "d1", id)
	assert.Equal(t, 1, srv.refreshN)

	a, r := c.Tokens()
	assert.Equal(t, "A2", a)
	assert.Equal(t, "R2", r)
}

func TestBufconn_WatchRefreshesAndReopens(t *testing.T) {
	srv := &watchServer{}
	c := newBufClient(t, srv)
	c.SetTokens("A1", "R1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan []rpc.Document, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, "app/tasks", func(docs []rpc.Document) {
			select {
			case got <- docs:
			default:
			}
		})
	}()

	select {
	case docs := <-got:
		require.Len(t, docs, 1)
		assert.Equal(t, "d1", docs[0].ID)
	case <-ctx.Done():
		t.Fatal("no snapshot received")
	}

	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"A1", "A2"}, srv.opens)
}

func TestBufconn_WatchGivesUpWhenRefreshFails(t *testing.T) {
	srv := &watchServer{}
	c := newBufClient(t, srv)
	c.SetTokens("A1", "bad")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Watch(ctx, "app/tasks", func([]rpc.Document) { t.Error("unexpected snapshot") })
	require.ErrorIs(t, err, ErrUnauthorized)
}
