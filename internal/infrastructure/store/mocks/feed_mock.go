package mocks

import (
	"context"
	"sync"

	"github.com/example/stockroom/internal/gateway"
)

// MockSubscription is a gateway.Subscription driven by Emit.
type MockSubscription struct {
	mu     sync.Mutex
	ch     chan gateway.Change
	closed bool
}

func NewMockSubscription() *MockSubscription {
	return &MockSubscription{ch: make(chan gateway.Change, 16)}
}

func (s *MockSubscription) Changes() <-chan gateway.Change {
	return s.ch
}

// Emit delivers a change; it is a no-op once closed.
func (s *MockSubscription) Emit(c gateway.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- c
}

func (s *MockSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

func (s *MockSubscription) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockChangeFeed hands out MockSubscriptions and remembers them.
type MockChangeFeed struct {
	mu            sync.Mutex
	Subscriptions []*MockSubscription
	SubscribeErr  error
}

func NewMockChangeFeed() *MockChangeFeed {
	return &MockChangeFeed{}
}

func (f *MockChangeFeed) SubscribeProductChanges(ctx context.Context) (gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	sub := NewMockSubscription()
	f.Subscriptions = append(f.Subscriptions, sub)
	return sub, nil
}

// Last returns the most recent subscription, or nil.
func (f *MockChangeFeed) Last() *MockSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Subscriptions) == 0 {
		return nil
	}
	return f.Subscriptions[len(f.Subscriptions)-1]
}
