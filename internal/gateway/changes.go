package gateway

import (
	"context"
	"time"
)

type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// Change says that something in a table changed. Consumers must not rely on
// it for more than that: delivery is at-least-once and the row may already
// look different.
type Change struct {
	Table     string    `json:"table"`
	Op        ChangeOp  `json:"op"`
	RowID     string    `json:"row_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription is an open stream of changes. The channel is closed once the
// subscription ends; Close unsubscribes.
type Subscription interface {
	Changes() <-chan Change
	Close() error
}

// ChangeFeed opens subscriptions to product changes.
type ChangeFeed interface {
	SubscribeProductChanges(ctx context.Context) (Subscription, error)
}

// ChangePublisher announces writes made through a backend that has no
// change feed of its own.
type ChangePublisher interface {
	PublishChange(ctx context.Context, c Change) error
}

// ProductsTable is the table name carried by product changes.
const ProductsTable = "products"
