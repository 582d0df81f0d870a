package application

import (
	"fmt"
	"time"

	"github.com/verone/fulfillment/internal/fulfillment/domain"
)

type FulfillmentItem struct {
	OrderLineID string `json:"order_line_id"`
	ProductID   string `json:"product_id"`
	Quantity    int64  `json:"quantity"`
}

type FulfillmentRequest struct {
	OrderID        string               `json:"order_id"`
	Direction      domain.Direction     `json:"direction"`
	Items          []FulfillmentItem    `json:"items"`
	PerformedBy    string               `json:"performed_by"`
	OccurredAt     time.Time            `json:"occurred_at,omitzero"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
	Metadata       domain.EventMetadata `json:"metadata"`
}

func (r FulfillmentRequest) validate() error {
	if r.OrderID == "" {
		return fmt.Errorf("%w: order_id is required", domain.ErrValidation)
	}
	if !r.Direction.Valid() {
		return fmt.Errorf("%w: direction must be %q or %q", domain.ErrValidation, domain.DirectionSales, domain.DirectionPurchase)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrValidation)
	}
	if r.PerformedBy == "" {
		return fmt.Errorf("%w: performed_by is required", domain.ErrValidation)
	}
	for _, it := range r.Items {
		if it.OrderLineID == "" {
			return fmt.Errorf("%w: item order_line_id is required", domain.ErrValidation)
		}
	}
	return nil
}

type LineResult struct {
	OrderLineID          string           `json:"order_line_id"`
	Accepted             bool             `json:"accepted"`
	NewQuantityFulfilled int64            `json:"new_quantity_fulfilled,omitempty"`
	Error                domain.ErrorKind `json:"error,omitempty"`
}

// FulfillmentResult reports the outcome of one request. The mutation is
// all-or-nothing, but PerLine keeps every line's evaluation so a caller can
// see which line sank a rejected request.
type FulfillmentResult struct {
	Success        bool               `json:"success"`
	Duplicate      bool               `json:"duplicate,omitempty"`
	NewOrderStatus domain.OrderStatus `json:"new_order_status,omitempty"`
	PerLine        []LineResult       `json:"per_line_results"`
	Error          domain.ErrorKind   `json:"error,omitempty"`
}
