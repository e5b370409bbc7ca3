package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophtasks/internal/common"
	"github.com/dmitrijs2005/gophtasks/internal/rpc"
	"github.com/dmitrijs2005/gophtasks/internal/server/models"
	"github.com/dmitrijs2005/gophtasks/internal/server/services"
	"github.com/dmitrijs2005/gophtasks/internal/server/watch"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) fail(ctx context.Context, op string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, "request failed", "op", op, "error", err)
	}
	return st
}

func requireUser(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Internal, "no user in context")
	}
	return userID, nil
}

func (s *GRPCServer) SignInAnonymously(ctx context.Context, _ *rpc.Empty) (*rpc.SessionResponse, error) {
	session, err := s.identity.SignInAnonymously(ctx)
	if err != nil {
		return nil, s.fail(ctx, "sign_in", err)
	}

	s.logger.Info(ctx, "Anonymous sign-in", "user_id", session.User.ID)
	return &rpc.SessionResponse{
		UserID:       session.User.ID,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		Anonymous:    session.User.Anonymous,
	}, nil
}

func (s *GRPCServer) Resume(ctx context.Context, req *rpc.ResumeRequest) (*rpc.ResumeResponse, error) {
	user, err := s.identity.Resume(ctx, req.AccessToken)
	if err != nil {
		return nil, s.fail(ctx, "resume", err)
	}
	return &rpc.ResumeResponse{UserID: user.ID, Anonymous: user.Anonymous}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *rpc.RefreshTokenRequest) (*rpc.SessionResponse, error) {
	pair, err := s.identity.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.fail(ctx, "refresh_token", err)
	}

	userID, _ := s.identity.ValidateAccessToken(pair.AccessToken)
	return &rpc.SessionResponse{
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *rpc.Empty) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) CreateDocument(ctx context.Context, req *rpc.CreateDocumentRequest) (*rpc.CreateDocumentResponse, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := s.documents.Create(ctx, userID, req.Path, req.Fields)
	if err != nil {
		return nil, s.fail(ctx, "create", err)
	}
	return &rpc.CreateDocumentResponse{ID: doc.ID}, nil
}

func (s *GRPCServer) UpdateDocument(ctx context.Context, req *rpc.UpdateDocumentRequest) (*rpc.Empty, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.documents.Update(ctx, userID, req.Path, req.ID, req.Fields); err != nil {
		return nil, s.fail(ctx, "update", err)
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) DeleteDocument(ctx context.Context, req *rpc.DeleteDocumentRequest) (*rpc.Empty, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.documents.Delete(ctx, userID, req.Path, req.ID); err != nil {
		return nil, s.fail(ctx, "delete", err)
	}
	return &rpc.Empty{}, nil
}

// Watch sends the current snapshot of the collection and then a fresh one
// after every change, until the client goes away or the server stops.
func (s *GRPCServer) Watch(req *rpc.WatchRequest, stream grpc.ServerStreamingServer[rpc.Snapshot]) error {
	ctx := stream.Context()

	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}
	if err := services.ValidatePath(req.Path); err != nil {
		return toStatus(err)
	}

	// subscribe first so no change between the initial read and the
	// registration is lost
	changes, cancel := s.hub.Subscribe(watch.Key{OwnerID: userID, Path: req.Path})
	defer cancel()

	send := func() error {
		docs, err := s.documents.Snapshot(ctx, userID, req.Path)
		if err != nil {
			return s.fail(ctx, "watch", err)
		}
		return stream.Send(toSnapshot(req.Path, docs))
	}

	s.logger.Debug(ctx, "watch opened", "user_id", userID, "path", req.Path)
	defer s.logger.Debug(ctx, "watch closed", "user_id", userID, "path", req.Path)

	if err := send(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-s.done:
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := send(); err != nil {
				return err
			}
		}
	}
}

func toSnapshot(path string, docs []*models.Document) *rpc.Snapshot {
	out := &rpc.Snapshot{Path: path, Documents: make([]rpc.Document, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, rpc.Document{
			ID:        d.ID,
			Path:      d.Path,
			Fields:    d.Fields,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return out
}
