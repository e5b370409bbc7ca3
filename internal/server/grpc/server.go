// Package grpc exposes the identity and document services over the
// gophtasks.Store gRPC service.
package grpc

import (
	"context"
	"net"
	"sync"

	"github.com/dmitrijs2005/gophtasks/internal/logging"
	"github.com/dmitrijs2005/gophtasks/internal/rpc"
	"github.com/dmitrijs2005/gophtasks/internal/server/models"
	"github.com/dmitrijs2005/gophtasks/internal/server/services"
	"github.com/dmitrijs2005/gophtasks/internal/server/watch"
	"google.golang.org/grpc"
)

type identitySvc interface {
	SignInAnonymously(ctx context.Context) (*services.Session, error)
	Resume(ctx context.Context, accessToken string) (*models.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ValidateAccessToken(accessToken string) (string, error)
}

type documentSvc interface {
	Create(ctx context.Context, ownerID, path string, fields map[string]any) (*models.Document, error)
	Update(ctx context.Context, ownerID, path, id string, fields map[string]any) error
	Delete(ctx context.Context, ownerID, path, id string) error
	Snapshot(ctx context.Context, ownerID, path string) ([]*models.Document, error)
}

type subscriber interface {
	Subscribe(key watch.Key) (<-chan struct{}, func())
}

type GRPCServer struct {
	rpc.UnimplementedStoreServer
	address   string
	identity  identitySvc
	documents documentSvc
	hub       subscriber
	logger    logging.Logger

	// done is closed on shutdown so open Watch streams return and
	// GracefulStop can complete.
	done     chan struct{}
	stopOnce sync.Once
}

func NewGRPCServer(a string, l logging.Logger, is identitySvc, ds documentSvc, hub subscriber) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		identity:  is,
		documents: ds,
		hub:       hub,
		done:      make(chan struct{}),
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)

	rpc.RegisterStoreServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.stopOnce.Do(func() { close(s.done) })
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}
