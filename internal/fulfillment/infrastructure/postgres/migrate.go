package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. The CHECK on order_lines is a
// store-level backstop for the reconciliation invariant; the application
// never relies on it to reject a request.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	number     TEXT NOT NULL,
	direction  TEXT NOT NULL CHECK (direction IN ('sales', 'purchase')),
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_lines (
	id                 TEXT PRIMARY KEY,
	order_id           TEXT NOT NULL REFERENCES orders(id),
	product_id         TEXT NOT NULL,
	quantity_ordered   BIGINT NOT NULL CHECK (quantity_ordered > 0),
	quantity_fulfilled BIGINT NOT NULL DEFAULT 0
		CHECK (quantity_fulfilled >= 0 AND quantity_fulfilled <= quantity_ordered)
);

CREATE INDEX IF NOT EXISTS order_lines_order_id_idx ON order_lines (order_id);

CREATE TABLE IF NOT EXISTS fulfillment_events (
	id              TEXT PRIMARY KEY,
	order_id        TEXT NOT NULL REFERENCES orders(id),
	occurred_at     TIMESTAMPTZ NOT NULL,
	performed_by    TEXT NOT NULL,
	idempotency_key TEXT,
	tracking_number TEXT,
	carrier         TEXT,
	notes           TEXT,
	UNIQUE (order_id, idempotency_key)
);

CREATE TABLE IF NOT EXISTS fulfillment_event_lines (
	event_id       TEXT NOT NULL REFERENCES fulfillment_events(id),
	order_line_id  TEXT NOT NULL REFERENCES order_lines(id),
	product_id     TEXT NOT NULL,
	quantity_delta BIGINT NOT NULL CHECK (quantity_delta > 0),
	PRIMARY KEY (event_id, order_line_id)
);

CREATE TABLE IF NOT EXISTS stock_movements (
	id             BIGSERIAL PRIMARY KEY,
	product_id     TEXT NOT NULL,
	quantity_delta BIGINT NOT NULL,
	event_id       TEXT NOT NULL REFERENCES fulfillment_events(id),
	created_at     TIMESTAMPTZ NOT NULL,
	UNIQUE (event_id, product_id)
);

CREATE TABLE IF NOT EXISTS outbox (
	id          BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type        TEXT NOT NULL,
	payload     BYTEA NOT NULL,
	traceparent TEXT,
	status      TEXT NOT NULL DEFAULT 'pending',
	relay_id    TEXT,
	lease_until TIMESTAMPTZ,
	retry_count INT NOT NULL DEFAULT 0,
	last_error  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE status = 'pending';
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
