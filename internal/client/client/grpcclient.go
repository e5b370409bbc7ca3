package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophtasks/internal/client/session"
	"github.com/dmitrijs2005/gophtasks/internal/common"
	"github.com/dmitrijs2005/gophtasks/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// methods that must never trigger a token refresh: they either carry no
// access token or are the refresh itself.
var noRefresh = map[string]bool{
	rpc.MethodSignInAnonymously: true,
	rpc.MethodRefreshToken:      true,
	rpc.MethodResume:            true,
	rpc.MethodPing:              true,
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.StoreClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string

	// serializes refreshes so a rotated refresh token is used once
	refreshMu sync.Mutex

	onTokensChanged func(accessToken, refreshToken string)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, _ := s.Tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)

	if err == nil || noRefresh[method] || !isTokenExpired(err) {
		return err
	}

	fresh, rerr := s.refresh(ctx, access)
	if rerr != nil {
		return err
	}

	// TOKENS REFRESHED, retrying with the new access token
	return invoker(withAccessToken(ctx, fresh), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	access, _ := s.Tokens()
	return streamer(withAccessToken(ctx, access), desc, cc, method, opts...)
}

// refresh rotates the token pair. stale is the access token the failed call
// used; when another caller has already replaced it the current one is
// returned without a second rotation.
func (s *GRPCClient) refresh(ctx context.Context, stale string) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	access, refresh := s.Tokens()
	if access != stale {
		return access, nil
	}
	if refresh == "" {
		return "", ErrUnauthorized
	}

	resp, err := s.client.RefreshToken(ctx, &rpc.RefreshTokenRequest{RefreshToken: refresh})
	if err != nil {
		return "", s.mapError(err)
	}

	s.SetTokens(resp.AccessToken, resp.RefreshToken)

	s.mu.RLock()
	cb := s.onTokensChanged
	s.mu.RUnlock()
	if cb != nil {
		cb(resp.AccessToken, resp.RefreshToken)
	}

	return resp.AccessToken, nil
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewStoreClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
}

func (s *GRPCClient) Tokens() (accessToken, refreshToken string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

// OnTokensChanged registers fn to be called after every successful refresh.
func (s *GRPCClient) OnTokensChanged(fn func(accessToken, refreshToken string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokensChanged = fn
}

func (s *GRPCClient) SignInAnonymously(ctx context.Context) (*session.Identity, error) {
	resp, err := s.client.SignInAnonymously(ctx, &rpc.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.SetTokens(resp.AccessToken, resp.RefreshToken)

	return &session.Identity{
		UserID:       resp.UserID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Anonymous:    resp.Anonymous,
	}, nil
}

// Resume checks the current access token with the server. An expired token
// is refreshed once when a refresh token is known.
func (s *GRPCClient) Resume(ctx context.Context) (*session.Identity, error) {
	access, _ := s.Tokens()
	if access == "" {
		return nil, ErrUnauthorized
	}

	resp, err := s.client.Resume(ctx, &rpc.ResumeRequest{AccessToken: access})
	if err != nil && isTokenExpired(err) {
		fresh, rerr := s.refresh(ctx, access)
		if rerr != nil {
			return nil, rerr
		}
		resp, err = s.client.Resume(ctx, &rpc.ResumeRequest{AccessToken: fresh})
	}
	if err != nil {
		return nil, s.mapError(err)
	}

	access, refresh := s.Tokens()
	return &session.Identity{
		UserID:       resp.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
		Anonymous:    resp.Anonymous,
	}, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.client.Ping(ctx, &rpc.Empty{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil

}

func (s *GRPCClient) Create(ctx context.Context, path string, fields map[string]any) (string, error) {
	resp, err := s.client.CreateDocument(ctx, &rpc.CreateDocumentRequest{Path: path, Fields: fields})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.ID, nil
}

func (s *GRPCClient) Update(ctx context.Context, path, id string, fields map[string]any) error {
	_, err := s.client.UpdateDocument(ctx, &rpc.UpdateDocumentRequest{Path: path, ID: id, Fields: fields})
	return s.mapError(err)
}

func (s *GRPCClient) Delete(ctx context.Context, path, id string) error {
	_, err := s.client.DeleteDocument(ctx, &rpc.DeleteDocumentRequest{Path: path, ID: id})
	return s.mapError(err)
}

// Watch streams snapshots of the collection at path into onSnapshot until
// ctx is cancelled or the stream breaks. It never returns nil: a stream the
// server closes cleanly is reported as ErrUnavailable.
func (s *GRPCClient) Watch(ctx context.Context, path string, onSnapshot func([]rpc.Document)) error {
	refreshed := false

	for {
		access, _ := s.Tokens()

		stream, err := s.client.Watch(ctx, &rpc.WatchRequest{Path: path})
		if err != nil {
			return s.mapError(err)
		}

		received := false
		for {
			snap, err := stream.Recv()
			if err == nil {
				received = true
				onSnapshot(snap.Documents)
				continue
			}

			if !received && !refreshed && isTokenExpired(err) {
				if _, rerr := s.refresh(ctx, access); rerr != nil {
					return rerr
				}
				refreshed = true
				break
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrUnavailable
			}
			return s.mapError(err)
		}
	}
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
