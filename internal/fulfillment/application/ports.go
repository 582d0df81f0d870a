package application

import (
	"context"

	"github.com/verone/fulfillment/internal/fulfillment/domain"
)

// StockLedgerGateway reports one line-level quantity delta to the inventory
// collaborator. Implementations must share the fulfillment transaction's
// commit boundary, and must not double-apply a (eventID, productID) pair.
type StockLedgerGateway interface {
	Apply(ctx context.Context, productID string, delta int64, eventID string) error
}

// Tx is the set of writes available inside one fulfillment transaction. All
// of them commit or roll back together via Store.WithinTx.
type Tx interface {
	// OrderForUpdate loads the order and its lines with the row locks needed
	// to serialize concurrent fulfillments against the same order.
	OrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	EventByIdempotencyKey(ctx context.Context, orderID, key string) (domain.FulfillmentEvent, bool, error)
	UpdateLineQuantity(ctx context.Context, lineID string, quantityFulfilled int64) error
	InsertEvent(ctx context.Context, ev domain.FulfillmentEvent) error
	SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	StageOutbox(ctx context.Context, aggregateID, eventType string, payload []byte, traceparent string) error
	Ledger() StockLedgerGateway
}

// Store is the injected persistence port. WithinTx runs fn in one atomic
// scope: if fn returns an error nothing fn wrote is visible afterwards.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Order(ctx context.Context, orderID string) (domain.Order, error)
	EventsByOrder(ctx context.Context, orderID string) ([]domain.FulfillmentEvent, error)
	EventByIdempotencyKey(ctx context.Context, orderID, key string) (domain.FulfillmentEvent, bool, error)
}

// DuplicateGuard is a best-effort fast path for idempotent resubmission.
// The authoritative check is the unique idempotency key on the event row;
// the guard only saves a write transaction on an obvious retry.
type DuplicateGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}
