// Package feed fans a single upstream product change stream out to every
// open console.
package feed

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/example/stockroom/internal/gateway"
)

var ErrHubClosed = errors.New("change hub closed")

// Hub is both a gateway.ChangeFeed for consoles and a gateway.ChangePublisher
// for backends that announce their own writes.
//
// Each subscriber has a one-slot buffer. A change arriving while the slot is
// full is dropped: the pending one already triggers a full reload.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool

	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

// SubscribeProductChanges registers a new subscriber.
func (h *Hub) SubscribeProductChanges(ctx context.Context) (gateway.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	s := &subscription{hub: h, ch: make(chan gateway.Change, 1)}
	h.subs[s] = struct{}{}
	return s, nil
}

// PublishChange broadcasts c without blocking.
func (h *Hub) PublishChange(ctx context.Context, c gateway.Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}
	if c.Table != "" && c.Table != gateway.ProductsTable {
		return nil
	}
	for s := range h.subs {
		select {
		case s.ch <- c:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts changes skipped because a subscriber already had one queued.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Run forwards changes from upstream until ctx is cancelled or upstream
// ends. The upstream subscription is closed on return.
func (h *Hub) Run(ctx context.Context, upstream gateway.Subscription) error {
	defer upstream.Close()

	log.Println("[Feed] Forwarding product changes")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-upstream.Changes():
			if !ok {
				log.Println("[Feed] Upstream change feed closed")
				return nil
			}
			if err := h.PublishChange(ctx, c); err != nil {
				return err
			}
		}
	}
}

// Close ends every subscription. Later subscribe and publish calls fail with
// ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		delete(h.subs, s)
	}
}

func (h *Hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

type subscription struct {
	hub  *Hub
	ch   chan gateway.Change
	once sync.Once
}

func (s *subscription) Changes() <-chan gateway.Change {
	return s.ch
}

func (s *subscription) Close() error {
	s.once.Do(func() { s.hub.remove(s) })
	return nil
}
