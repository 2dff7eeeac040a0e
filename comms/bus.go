package comms

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryBus is a thread-safe in-process notice bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // sessionID ("" = all) -> handlers
	history  []Notice
	maxHist  int
	nextID   int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryBus creates an InMemoryBus with a 1000-notice history cap.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]handlerEntry),
		maxHist:  1000,
	}
}

// Publish stamps the notice and delivers it to session-scoped and
// catch-all subscribers. Handlers run outside the bus lock.
func (b *InMemoryBus) Publish(ctx context.Context, n Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.history = append(b.history, n)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	var targets []Handler
	for _, e := range b.handlers[n.SessionID] {
		targets = append(targets, e.handler)
	}
	if n.SessionID != "" {
		for _, e := range b.handlers[""] {
			targets = append(targets, e.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range targets {
		h(ctx, n)
	}
}

// Subscribe registers a handler for the given session id ("" for all).
// The returned function unsubscribes the handler.
func (b *InMemoryBus) Subscribe(sessionID string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[sessionID] = append(b.handlers[sessionID], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[sessionID]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, sessionID)
		} else {
			b.handlers[sessionID] = filtered
		}
	}
}

// History returns the most recent limit notices for sessionID, oldest
// first. An empty sessionID returns every notice.
func (b *InMemoryBus) History(sessionID string, limit int) []Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Notice
	for i := len(b.history) - 1; i >= 0; i-- {
		n := b.history[i]
		if sessionID == "" || n.SessionID == sessionID || n.SessionID == "" {
			result = append(result, n)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result
}
