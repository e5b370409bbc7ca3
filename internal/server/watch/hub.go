// Package watch fans out "collection changed" notifications from the
// document service to standing Watch streams.
package watch

import "sync"

// Key identifies one watched collection of one owner.
type Key struct {
	OwnerID string
	Path    string
}

// Hub is an in-process notifier. A notification carries no payload: the
// listener re-reads the collection. Each listener has a one-slot buffer, so
// bursts of changes coalesce into a single pending notification and Publish
// never blocks.
type Hub struct {
	mu        sync.Mutex
	listeners map[Key]map[int]chan struct{}
	nextID    int
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[Key]map[int]chan struct{})}
}

// Subscribe registers a listener for key. The returned cancel func removes
// the listener and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(key Key) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.listeners[key] == nil {
		h.listeners[key] = make(map[int]chan struct{})
	}
	h.listeners[key][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.listeners[key], id)
			if len(h.listeners[key]) == 0 {
				delete(h.listeners, key)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish notifies every listener of key.
func (h *Hub) Publish(key Key) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.listeners[key] {
		select {
		case ch <- struct{}{}:
		default:
			// a notification is already pending
		}
	}
}
