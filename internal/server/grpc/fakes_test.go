package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtasks/internal/common"
	"github.com/dmitrijs2005/gophtasks/internal/logging"
	"github.com/dmitrijs2005/gophtasks/internal/server/models"
	"github.com/dmitrijs2005/gophtasks/internal/server/services"
	"github.com/dmitrijs2005/gophtasks/internal/server/watch"
	"github.com/google/uuid"
)

// fakeIdentity accepts tokens of the form "token-<userID>".
type fakeIdentity struct {
	session    *services.Session
	signInErr  error
	resumeErr  error
	refresh    *services.TokenPair
	refreshErr error
}

func (f *fakeIdentity) SignInAnonymously(context.Context) (*services.Session, error) {
	return f.session, f.signInErr
}

func (f *fakeIdentity) Resume(_ context.Context, token string) (*models.User, error) {
	if f.resumeErr != nil {
		return nil, f.resumeErr
	}
	id, err := f.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: id, Anonymous: true}, nil
}

func (f *fakeIdentity) RefreshToken(context.Context, string) (*services.TokenPair, error) {
	return f.refresh, f.refreshErr
}

func (f *fakeIdentity) ValidateAccessToken(token string) (string, error) {
	switch {
	case token == "expired":
		return "", common.ErrTokenExpired
	case len(token) > len("token-") && token[:len("token-")] == "token-":
		return token[len("token-"):], nil
	default:
		return "", common.ErrInvalidToken
	}
}

// memDocs is an in-memory document service publishing to a hub.
type memDocs struct {
	mu      sync.Mutex
	docs    map[string]*models.Document
	hub     *watch.Hub
	failErr error
}

func newMemDocs(hub *watch.Hub) *memDocs {
	return &memDocs{docs: make(map[string]*models.Document), hub: hub}
}

func (m *memDocs) Create(_ context.Context, ownerID, path string, fields map[string]any) (*models.Document, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	if err := services.ValidatePath(path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	now := time.Now()
	d := &models.Document{ID: uuid.NewString(), Path: path, OwnerID: ownerID, Fields: fields, CreatedAt: now, UpdatedAt: now}
	m.docs[d.ID] = d
	m.mu.Unlock()
	m.hub.Publish(watch.Key{OwnerID: ownerID, Path: path})
	return d, nil
}

func (m *memDocs) Update(_ context.Context, ownerID, path, id string, fields map[string]any) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.mu.Lock()
	d, ok := m.docs[id]
	if !ok || d.OwnerID != ownerID || d.Path != path {
		m.mu.Unlock()
		return common.ErrorNotFound
	}
	for k, v := range fields {
		d.Fields[k] = v
	}
	m.mu.Unlock()
	m.hub.Publish(watch.Key{OwnerID: ownerID, Path: path})
	return nil
}

func (m *memDocs) Delete(_ context.Context, ownerID, path, id string) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.mu.Lock()
	d, ok := m.docs[id]
	if !ok || d.OwnerID != ownerID || d.Path != path {
		m.mu.Unlock()
		return common.ErrorNotFound
	}
	delete(m.docs, id)
	m.mu.Unlock()
	m.hub.Publish(watch.Key{OwnerID: ownerID, Path: path})
	return nil
}

func (m *memDocs) Snapshot(_ context.Context, ownerID, path string) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Document, 0)
	for _, d := range m.docs {
		if d.OwnerID == ownerID && d.Path == path {
			cp := *d
			cp.Fields = make(map[string]any, len(d.Fields))
			for k, v := range d.Fields {
				cp.Fields[k] = v
			}
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newServer(id identitySvc, docs *memDocs) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Discard(), id, docs, docs.hub)
}
