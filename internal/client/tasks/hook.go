// Package tasks bridges the client views to the remote document store. The
// Hook resolves the session identity, keeps a standing subscription on the
// task collection and submits mutations in the background. The local list
// only ever changes when the store notifies a new snapshot.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtasks/internal/client/client"
	"github.com/dmitrijs2005/gophtasks/internal/client/session"
	"github.com/dmitrijs2005/gophtasks/internal/logging"
	"github.com/dmitrijs2005/gophtasks/internal/rpc"
	"github.com/sethvargo/go-retry"
)

var (
	ErrNotReady   = errors.New("session identity not resolved")
	ErrEmptyTitle = errors.New("task title is empty")
	ErrEmptyID    = errors.New("task id is empty")
)

const (
	DefaultMutationAttempts = 3
	DefaultAPITimeout       = 5 * time.Second
)

type Config struct {
	AppID      string
	Collection string
	// Token is a session token to resume. Empty means anonymous sign-in.
	Token string

	MutationAttempts int
	APITimeout       time.Duration
}

func (c Config) Path() string {
	return c.AppID + "/" + c.Collection
}

type IdentityProvider interface {
	Resume(ctx context.Context, token string) (*session.Identity, error)
	SignInAnonymously(ctx context.Context) (*session.Identity, error)
}

type Store interface {
	Create(ctx context.Context, path string, fields map[string]any) (string, error)
	Update(ctx context.Context, path, id string, fields map[string]any) error
	Delete(ctx context.Context, path, id string) error
	Watch(ctx context.Context, path string, onSnapshot func([]rpc.Document)) error
}

type Hook struct {
	cfg      Config
	identity IdentityProvider
	store    Store
	logger   logging.Logger

	mu    sync.RWMutex
	id    *session.Identity
	tasks []Task

	inflight sync.WaitGroup

	identityBackoff func() retry.Backoff
	mutationBackoff func() retry.Backoff
	watchBackoff    func() retry.Backoff
}

func NewHook(cfg Config, identity IdentityProvider, store Store, logger logging.Logger) *Hook {
	if cfg.MutationAttempts <= 0 {
		cfg.MutationAttempts = DefaultMutationAttempts
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = DefaultAPITimeout
	}

	attempts := uint64(cfg.MutationAttempts - 1)

	return &Hook{
		cfg:      cfg,
		identity: identity,
		store:    store,
		logger:   logger.With("module", "tasks", "path", cfg.Path()),
		identityBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(attempts, retry.NewExponential(250*time.Millisecond))
		},
		mutationBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(attempts, retry.NewExponential(200*time.Millisecond))
		},
		watchBackoff: func() retry.Backoff {
			return retry.WithCappedDuration(10*time.Second, retry.NewExponential(500*time.Millisecond))
		},
	}
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, client.ErrNotFound) ||
		errors.Is(err, client.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled)
}

// Initialize resolves the session identity: the configured token is resumed
// when set, otherwise an anonymous identity is created. Failures are retried;
// when they persist the hook stays not ready and the last error is returned.
func (h *Hook) Initialize(ctx context.Context) error {
	if h.Ready() {
		return nil
	}

	var id *session.Identity
	err := retry.Do(ctx, h.identityBackoff(), func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, h.cfg.APITimeout)
		defer cancel()

		var err error
		if h.cfg.Token != "" {
			id, err = h.identity.Resume(cctx, h.cfg.Token)
		} else {
			id, err = h.identity.SignInAnonymously(cctx)
		}
		if err == nil {
			return nil
		}
		if permanent(err) || errors.Is(err, client.ErrUnauthorized) {
			return err
		}
		h.logger.Warn(ctx, "identity resolution failed, retrying", "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		h.logger.Error(ctx, "identity resolution failed", "error", err)
		return fmt.Errorf("initialize session: %w", err)
	}

	h.mu.Lock()
	h.id = id
	h.mu.Unlock()

	h.logger.Info(ctx, "session ready", "user_id", id.UserID, "anonymous", id.Anonymous)
	return nil
}

func (h *Hook) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id != nil && h.id.UserID != ""
}

// UserID returns the session identifier, or "" before Initialize succeeded.
func (h *Hook) UserID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.id == nil {
		return ""
	}
	return h.id.UserID
}

// Tasks returns a copy of the latest notified snapshot.
func (h *Hook) Tasks() []Task {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.tasks)
}

func (h *Hook) replace(tasks []Task) {
	h.mu.Lock()
	h.tasks = tasks
	h.mu.Unlock()
}

// AddTask submits a new, not completed task. The task shows up through the
// subscription, not here.
func (h *Hook) AddTask(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if !h.Ready() {
		return ErrNotReady
	}

	fields := map[string]any{fieldTitle: title, fieldCompleted: false}
	h.submit("add", "", func(ctx context.Context) error {
		_, err := h.store.Create(ctx, h.cfg.Path(), fields)
		return err
	})
	return nil
}

// ToggleCompletion submits the negation of current for task id.
func (h *Hook) ToggleCompletion(id string, current bool) error {
	if id == "" {
		return ErrEmptyID
	}
	if !h.Ready() {
		return ErrNotReady
	}

	fields := map[string]any{fieldCompleted: !current}
	h.submit("toggle", id, func(ctx context.Context) error {
		return h.store.Update(ctx, h.cfg.Path(), id, fields)
	})
	return nil
}

func (h *Hook) DeleteTask(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if !h.Ready() {
		return ErrNotReady
	}

	h.submit("delete", id, func(ctx context.Context) error {
		return h.store.Delete(ctx, h.cfg.Path(), id)
	})
	return nil
}

// Wait blocks until every submitted mutation has finished.
func (h *Hook) Wait() {
	h.inflight.Wait()
}

// submit runs op in the background with its own context, so neither the
// caller nor a cancelled subscription aborts it. After the last failed
// attempt the mutation is logged and dropped.
func (h *Hook) submit(op, taskID string, fn func(ctx context.Context) error) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()

		ctx := context.Background()
		attempt := 0
		err := retry.Do(ctx, h.mutationBackoff(), func(ctx context.Context) error {
			attempt++
			cctx, cancel := context.WithTimeout(ctx, h.cfg.APITimeout)
			defer cancel()

			err := fn(cctx)
			if err == nil || permanent(err) {
				return err
			}
			h.logger.Debug(ctx, "mutation failed", "op", op, "task_id", taskID, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		})
		if err != nil {
			h.logger.Error(ctx, "mutation dropped", "op", op, "task_id", taskID, "attempts", attempt, "error", err)
		}
	}()
}
