package console

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/example/stockroom/internal/gate"
	"github.com/example/stockroom/internal/gateway"
)

type entry struct {
	console *Console
	cancel  context.CancelFunc
	done    chan struct{}
}

// Registry keeps one console per session and runs its change listener.
type Registry struct {
	gw    gateway.Gateway
	gate  *gate.Gate
	feed  gateway.ChangeFeed
	mu    sync.Mutex
	items map[string]*entry
}

// NewRegistry builds a registry. feed may be nil, in which case consoles
// only refresh after their own writes.
func NewRegistry(gw gateway.Gateway, g *gate.Gate, feed gateway.ChangeFeed) *Registry {
	return &Registry{
		gw:    gw,
		gate:  g,
		feed:  feed,
		items: make(map[string]*entry),
	}
}

// Open runs a page load for sessionID: it resolves the access state and, for
// active users, builds a fresh console, loads it and starts listening for
// changes. Any console previously open for the session is replaced. The
// returned console is nil when the state does not load inventory.
func (r *Registry) Open(ctx context.Context, sessionID string) (*Console, gate.Resolution, error) {
	res, err := r.gate.Resolve(ctx, sessionID)
	if err != nil || !res.State.LoadsInventory() {
		r.Close(sessionID)
		return nil, res, err
	}

	c := New(r.gw, res)
	if err := c.Reload(ctx); err != nil {
		log.Printf("[Console] Initial load for session %s failed: %v", sessionID, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	e := &entry{console: c, cancel: cancel, done: make(chan struct{})}

	var sub gateway.Subscription
	if r.feed != nil {
		sub, err = r.feed.SubscribeProductChanges(listenCtx)
		if err != nil {
			log.Printf("[Console] Realtime updates unavailable for session %s: %v", sessionID, err)
			sub = nil
		}
	}

	r.mu.Lock()
	prev := r.items[sessionID]
	r.items[sessionID] = e
	r.mu.Unlock()

	if sub != nil {
		go func() {
			defer close(e.done)
			err := c.ListenWhile(listenCtx, sub, r.sessionAlive(sessionID))
			if errors.Is(err, ErrSessionEnded) {
				log.Printf("[Console] Session %s ended, closing its console", sessionID)
				r.drop(sessionID, e)
			}
		}()
	} else {
		close(e.done)
	}

	if prev != nil {
		prev.stop()
	}
	return c, res, nil
}

// Get returns the open console for sessionID.
func (r *Registry) Get(sessionID string) (*Console, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[sessionID]
	if !ok {
		return nil, false
	}
	return e.console, true
}

// Close stops the console for sessionID, if any, and waits for its listener.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	e, ok := r.items[sessionID]
	delete(r.items, sessionID)
	r.mu.Unlock()

	if ok {
		e.stop()
	}
}

// CloseAll stops every console.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range items {
		e.stop()
	}
	log.Printf("[Console] Closed %d consoles", len(items))
}

// Sweep closes every console whose session is gone and returns how many it
// closed. Sessions that cannot be looked up are kept.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	closed := 0
	for _, id := range ids {
		if r.sessionAlive(id)(ctx) {
			continue
		}
		r.Close(id)
		closed++
	}
	if closed > 0 {
		log.Printf("[Console] Swept %d consoles of ended sessions", closed)
	}
	return closed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Registry) sessionAlive(sessionID string) func(context.Context) bool {
	return func(ctx context.Context) bool {
		s, err := r.gw.GetSession(ctx, sessionID)
		if err != nil {
			log.Printf("[Console] Session lookup for %s failed: %v", sessionID, err)
			return true
		}
		if s == nil {
			return false
		}
		return s.ExpiresAt.IsZero() || time.Now().Before(s.ExpiresAt)
	}
}

// drop removes e without waiting for its listener; it is called from that
// listener.
func (r *Registry) drop(sessionID string, e *entry) {
	r.mu.Lock()
	if r.items[sessionID] == e {
		delete(r.items, sessionID)
	}
	r.mu.Unlock()
	e.cancel()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (e *entry) stop() {
	e.cancel()
	<-e.done
}
