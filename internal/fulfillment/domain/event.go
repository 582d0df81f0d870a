package domain

import "time"

// EventMetadata is the optional carrier/tracking information captured with a
// shipment or reception.
type EventMetadata struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// LineDelta is one line's contribution to a fulfillment event. QuantityDelta
// is always positive; the stock-ledger sign comes from the order direction.
type LineDelta struct {
	OrderLineID   string `json:"order_line_id"`
	ProductID     string `json:"product_id"`
	QuantityDelta int64  `json:"quantity_delta"`
}

// FulfillmentEvent is the immutable audit record of one accepted fulfillment
// request. Corrections are made by recording a compensating event, never by
// editing a recorded one; the sum of a line's deltas across all events equals
// its current fulfilled quantity.
type FulfillmentEvent struct {
	ID             string        `json:"id"`
	OrderID        string        `json:"order_id"`
	OccurredAt     time.Time     `json:"occurred_at"`
	PerformedBy    string        `json:"performed_by"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Metadata       EventMetadata `json:"metadata"`
	Lines          []LineDelta   `json:"lines"`
}

// FulfillmentRecorded is the outbox payload published after an event commits,
// for downstream collaborators (warehouse surfaces, accounting exports).
type FulfillmentRecorded struct {
	EventID    string      `json:"event_id"`
	OrderID    string      `json:"order_id"`
	Direction  Direction   `json:"direction"`
	NewStatus  OrderStatus `json:"new_status"`
	OccurredAt time.Time   `json:"occurred_at"`
	Lines      []LineDelta `json:"lines"`
}
