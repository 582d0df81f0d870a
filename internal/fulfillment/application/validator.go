package application

import (
	"context"
	"fmt"

	"github.com/verone/fulfillment/internal/fulfillment/domain"
)

// OrderValidator locates the target order under lock and checks that it may
// be fulfilled. Locate and Validate are separate steps: a duplicate lookup by
// idempotency key has to happen between them, since a replayed request must
// succeed even after the first submission drove the order terminal.
type OrderValidator struct{}

// Locate loads the order with the row locks that serialize concurrent
// fulfillments against it.
func (OrderValidator) Locate(ctx context.Context, tx Tx, orderID string, direction domain.Direction) (domain.Order, error) {
	order, err := tx.OrderForUpdate(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Direction != direction {
		// the stated sales/purchase order does not exist under that direction
		return domain.Order{}, fmt.Errorf("%w: no %s order %s", domain.ErrNotFound, direction, orderID)
	}
	return order, nil
}

// Validate checks that a located order may accept new fulfillment events. A
// passing validation means the order is safe to mutate within the same
// transaction; no later stage re-checks order-level eligibility.
func (OrderValidator) Validate(order domain.Order) error {
	if !order.Status.Fulfillable() {
		return fmt.Errorf("%w: order %s is %s", domain.ErrStateConflict, order.ID, order.Status)
	}
	return nil
}
