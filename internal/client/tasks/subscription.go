package tasks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtasks/internal/rpc"
)

// Subscription is a standing listener on the task collection.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
}

// Cancel stops the subscription. Once it returns no further callback is
// invoked. It must not be called from inside the callback.
func (s *Subscription) Cancel() {
	s.cancel()
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Done is closed when the listener goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) deliver(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cancelled {
		fn()
	}
}

// Subscribe opens the standing watch. Every snapshot replaces the local list
// and is then passed to onChange. A broken stream is reopened with backoff
// until the subscription or ctx is cancelled.
func (h *Hook) Subscribe(ctx context.Context, onChange func([]Task)) (*Subscription, error) {
	if !h.Ready() {
		return nil, ErrNotReady
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		h.watchLoop(ctx, sub, onChange)
	}()

	return sub, nil
}

func (h *Hook) watchLoop(ctx context.Context, sub *Subscription, onChange func([]Task)) {
	backoff := h.watchBackoff()

	for {
		got := false
		err := h.store.Watch(ctx, h.cfg.Path(), func(docs []rpc.Document) {
			got = true
			tasks := fromSnapshot(docs)
			sub.deliver(func() {
				h.replace(tasks)
				if onChange != nil {
					onChange(slices.Clone(tasks))
				}
			})
		})
		if ctx.Err() != nil {
			return
		}
		if got {
			backoff = h.watchBackoff()
		}

		delay, stop := backoff.Next()
		if stop {
			h.logger.Error(ctx, "watch stopped", "error", err)
			return
		}
		h.logger.Warn(ctx, "watch broken, reopening", "error", err, "delay", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
