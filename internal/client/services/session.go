// Package services contains application services for the gophtasks client.
// This file defines the session service: identity bootstrap against the
// server, caching of the token pair between runs and the liveness probe.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtasks/internal/client/client"
	"github.com/dmitrijs2005/gophtasks/internal/client/session"
	"github.com/dmitrijs2005/gophtasks/internal/logging"
	"github.com/sethvargo/go-retry"
)

// SessionClient is the part of the transport the session service drives.
type SessionClient interface {
	SignInAnonymously(ctx context.Context) (*session.Identity, error)
	Resume(ctx context.Context) (*session.Identity, error)
	SetTokens(accessToken, refreshToken string)
	Ping(ctx context.Context) error
}

// SessionStore persists the last identity locally.
type SessionStore interface {
	Load(ctx context.Context) (*session.Identity, error)
	Save(ctx context.Context, id *session.Identity) error
	SaveTokens(ctx context.Context, accessToken, refreshToken string) error
	Clear(ctx context.Context) error
}

// SessionService resolves the client identity and keeps the local token
// cache in step with the server.
type SessionService struct {
	client SessionClient
	store  SessionStore
	logger logging.Logger

	pingBackoff func() retry.Backoff
}

func NewSessionService(c SessionClient, store SessionStore, logger logging.Logger) *SessionService {
	return &SessionService{
		client: c,
		store:  store,
		logger: logger.With("module", "session"),
		pingBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(4, retry.WithCappedDuration(2*time.Second, retry.NewExponential(200*time.Millisecond)))
		},
	}
}

// CachedToken returns the access token of the last session, or "" when none
// is cached.
func (s *SessionService) CachedToken(ctx context.Context) (string, error) {
	id, err := s.store.Load(ctx)
	if err != nil || id == nil {
		return "", err
	}
	return id.AccessToken, nil
}

// SignInAnonymously creates a fresh anonymous identity and caches it.
func (s *SessionService) SignInAnonymously(ctx context.Context) (*session.Identity, error) {
	id, err := s.client.SignInAnonymously(ctx)
	if err != nil {
		return nil, fmt.Errorf("anonymous sign-in: %w", err)
	}

	s.persist(ctx, id)
	return id, nil
}

// Resume continues the session behind token. When token is the cached one
// the cached refresh token is used as well, so an expired access token can
// still be renewed.
func (s *SessionService) Resume(ctx context.Context, token string) (*session.Identity, error) {
	refresh := ""
	cached, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to load cached session", "error", err)
	}
	if cached != nil && cached.AccessToken == token {
		refresh = cached.RefreshToken
	}

	s.client.SetTokens(token, refresh)

	id, err := s.client.Resume(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}

	s.persist(ctx, id)
	return id, nil
}

// TokensRefreshed stores a rotated token pair. It is registered as the
// transport's refresh callback.
func (s *SessionService) TokensRefreshed(accessToken, refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.SaveTokens(ctx, accessToken, refreshToken); err != nil {
		s.logger.Warn(ctx, "failed to cache refreshed tokens", "error", err)
	}
}

// Forget drops the cached session so the next run starts a new one. The
// tokens of the running session stay in use.
func (s *SessionService) Forget(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// WaitForServer pings the server until it answers or the retry budget is
// spent. Only ErrUnavailable is retried.
func (s *SessionService) WaitForServer(ctx context.Context) error {
	return retry.Do(ctx, s.pingBackoff(), func(ctx context.Context) error {
		err := s.client.Ping(ctx)
		if errors.Is(err, client.ErrUnavailable) {
			s.logger.Debug(ctx, "server not reachable yet", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

// caching is best effort: a failure only costs the resume on the next run
func (s *SessionService) persist(ctx context.Context, id *session.Identity) {
	if err := s.store.Save(ctx, id); err != nil {
		s.logger.Warn(ctx, "failed to cache session", "error", err)
	}
}
