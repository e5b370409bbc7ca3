package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtasks/internal/client/client"
	"github.com/dmitrijs2005/gophtasks/internal/client/session"
	"github.com/dmitrijs2005/gophtasks/internal/rpc"
	"github.com/google/uuid"
)

// memStore is an in-memory document store with change notification.
type memStore struct {
	mu        sync.Mutex
	docs      map[string]rpc.Document
	listeners map[chan struct{}]struct{}
	clock     time.Time

	// failures makes the next n mutations fail with failErr
	failures int
	failErr  error
	calls    int

	watchErrs []error
	watchN    int
}

func newMemStore() *memStore {
	return &memStore{
		docs:      map[string]rpc.Document{},
		listeners: map[chan struct{}]struct{}{},
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) fail() error {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return m.failErr
	}
	return nil
}

func (m *memStore) notify() {
	for ch := range m.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *memStore) Create(ctx context.Context, path string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return "", err
	}

	m.clock = m.clock.Add(time.Second)
	id := uuid.NewString()
	m.docs[id] = rpc.Document{ID: id, Path: path, Fields: fields, CreatedAt: m.clock, UpdatedAt: m.clock}
	m.notify()
	return id, nil
}

func (m *memStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}

	d, ok := m.docs[id]
	if !ok {
		return client.ErrNotFound
	}
	merged := map[string]any{}
	for k, v := range d.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	d.Fields = merged
	m.docs[id] = d
	m.notify()
	return nil
}

func (m *memStore) Delete(ctx context.Context, path, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}

	if _, ok := m.docs[id]; !ok {
		return client.ErrNotFound
	}
	delete(m.docs, id)
	m.notify()
	return nil
}

func (m *memStore) snapshot() []rpc.Document {
	out := make([]rpc.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out
}

func (m *memStore) Watch(ctx context.Context, path string, onSnapshot func([]rpc.Document)) error {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	if m.watchN < len(m.watchErrs) {
		err := m.watchErrs[m.watchN]
		m.watchN++
		m.mu.Unlock()
		return err
	}
	m.watchN++
	m.listeners[ch] = struct{}{}
	snap := m.snapshot()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.listeners, ch)
		m.mu.Unlock()
	}()

	onSnapshot(snap)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			m.mu.Lock()
			snap := m.snapshot()
			m.mu.Unlock()
			onSnapshot(snap)
		}
	}
}

func (m *memStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeIdentity struct {
	mu        sync.Mutex
	failures  int
	err       error
	resumed   []string
	signIns   int
	anonymous bool
}

func (f *fakeIdentity) Resume(ctx context.Context, token string) (*session.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, token)
	if f.failures > 0 {
		f.failures--
		return nil, f.err
	}
	if token == "junk" {
		return nil, client.ErrUnauthorized
	}
	return &session.Identity{UserID: "user-" + token, AccessToken: token}, nil
}

func (f *fakeIdentity) SignInAnonymously(ctx context.Context) (*session.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signIns++
	if f.failures > 0 {
		f.failures--
		return nil, f.err
	}
	return &session.Identity{UserID: "anon-1", AccessToken: "A", Anonymous: true}, nil
}

var errFlaky = errors.New("connection reset")
