package store

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/example/stockroom/internal/gateway"
	"github.com/lib/pq"
)

// ProductChangesChannel is the NOTIFY channel the products trigger writes to.
const ProductChangesChannel = "product_changes"

const listenerPingInterval = 90 * time.Second

// NotifyFeed subscribes to product changes with LISTEN on a dedicated
// connection per subscription.
type NotifyFeed struct {
	connStr string
}

func NewNotifyFeed(connStr string) *NotifyFeed {
	return &NotifyFeed{connStr: connStr}
}

func (f *NotifyFeed) SubscribeProductChanges(ctx context.Context) (gateway.Subscription, error) {
	listener := pq.NewListener(f.connStr, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("[Store] Listener event %d: %v", ev, err)
		}
	})
	if err := listener.Listen(ProductChangesChannel); err != nil {
		listener.Close()
		return nil, err
	}

	s := &notifySubscription{
		listener: listener,
		ch:       make(chan gateway.Change, 16),
		done:     make(chan struct{}),
	}
	go s.run(ctx)
	log.Printf("[Store] Listening on %s", ProductChangesChannel)
	return s, nil
}

type notifySubscription struct {
	listener *pq.Listener
	ch       chan gateway.Change
	done     chan struct{}
	once     sync.Once
}

func (s *notifySubscription) Changes() <-chan gateway.Change {
	return s.ch
}

func (s *notifySubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.listener.Close()
	})
	return err
}

func (s *notifySubscription) run(ctx context.Context) {
	defer close(s.ch)

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			s.emit(decodeNotification(n))
		case <-ticker.C:
			go s.listener.Ping()
		}
	}
}

func (s *notifySubscription) emit(c gateway.Change) {
	select {
	case s.ch <- c:
	case <-s.done:
	}
}

// decodeNotification turns a NOTIFY payload into a Change. A nil
// notification means the connection was re-established and notifications may
// have been lost, which is reported as an unspecified product change.
func decodeNotification(n *pq.Notification) gateway.Change {
	c := gateway.Change{Table: gateway.ProductsTable, Op: gateway.OpUpdate, Timestamp: time.Now().UTC()}
	if n == nil {
		return c
	}
	if err := json.Unmarshal([]byte(n.Extra), &c); err != nil {
		log.Printf("[Store] Bad notification payload %q: %v", n.Extra, err)
	}
	return c
}
