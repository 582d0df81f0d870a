package domain

import "time"

// LedgerEntry is one append-only inventory movement, written once per
// fulfillment event line. Sales fulfillments carry negative deltas, purchase
// receptions positive ones. Entries are never edited or deleted;
// corrections arrive as compensating entries from compensating events.
type LedgerEntry struct {
	ProductID     string    `json:"product_id"`
	QuantityDelta int64     `json:"quantity_delta"`
	EventID       string    `json:"event_id"`
	CreatedAt     time.Time `json:"created_at"`
}
