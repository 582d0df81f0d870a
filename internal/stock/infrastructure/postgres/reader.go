package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verone/fulfillment/internal/stock/domain"
)

// Reader exposes the ledger to reporting surfaces. The fulfillment core
// never reads it back to make decisions.
type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

func (r *Reader) EntriesByProduct(ctx context.Context, productID string) ([]domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity_delta, event_id, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ProductID, &e.QuantityDelta, &e.EventID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
