package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Ledger writes stock movements inside a transaction owned by the caller, so
// the ledger entry and the fulfillment event it references commit together.
type Ledger struct {
	tx pgx.Tx
}

func NewLedger(tx pgx.Tx) *Ledger {
	return &Ledger{tx: tx}
}

// Apply records one signed movement. The (event_id, product_id) conflict
// target makes a repeated apply for the same event a no-op.
func (l *Ledger) Apply(ctx context.Context, productID string, delta int64, eventID string) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, quantity_delta, event_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (event_id, product_id) DO NOTHING
	`, productID, delta, eventID)
	return err
}
