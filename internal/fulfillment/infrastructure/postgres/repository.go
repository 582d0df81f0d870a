package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verone/fulfillment/internal/fulfillment/application"
	"github.com/verone/fulfillment/internal/fulfillment/domain"
	stockpg "github.com/verone/fulfillment/internal/stock/infrastructure/postgres"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the read helpers
// work inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

// WithinTx runs fn inside one transaction. Row locks taken by
// OrderForUpdate serialize concurrent fulfillments of the same order, so
// read-modify-write on line quantities cannot lose updates.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &storeTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *Store) Order(ctx context.Context, orderID string) (domain.Order, error) {
	return loadOrder(ctx, s.pool, orderID, false)
}

func (s *Store) EventsByOrder(ctx context.Context, orderID string) ([]domain.FulfillmentEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, occurred_at, performed_by, idempotency_key, tracking_number, carrier, notes
		FROM fulfillment_events
		WHERE order_id = $1
		ORDER BY occurred_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.FulfillmentEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].Lines, err = eventLines(ctx, s.pool, events[i].ID); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (s *Store) EventByIdempotencyKey(ctx context.Context, orderID, key string) (domain.FulfillmentEvent, bool, error) {
	return eventByKey(ctx, s.pool, orderID, key)
}

// InsertOrder is used by the upstream capture flow and by test fixtures;
// the fulfillment core itself never creates orders.
func (s *Store) InsertOrder(ctx context.Context, o domain.Order) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, number, direction, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`, o.ID, o.Number, o.Direction, o.Status)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(`
			INSERT INTO order_lines (id, order_id, product_id, quantity_ordered, quantity_fulfilled)
			VALUES ($1, $2, $3, $4, $5)
		`, l.ID, o.ID, l.ProductID, l.QuantityOrdered, l.QuantityFulfilled)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type storeTx struct {
	tx pgx.Tx
}

func (t *storeTx) OrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return loadOrder(ctx, t.tx, orderID, true)
}

func (t *storeTx) EventByIdempotencyKey(ctx context.Context, orderID, key string) (domain.FulfillmentEvent, bool, error) {
	return eventByKey(ctx, t.tx, orderID, key)
}

func (t *storeTx) UpdateLineQuantity(ctx context.Context, lineID string, quantityFulfilled int64) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE order_lines SET quantity_fulfilled = $2 WHERE id = $1
	`, lineID, quantityFulfilled)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: order line %s", domain.ErrNotFound, lineID)
	}
	return nil
}

func (t *storeTx) InsertEvent(ctx context.Context, ev domain.FulfillmentEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO fulfillment_events (id, order_id, occurred_at, performed_by, idempotency_key, tracking_number, carrier, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`, ev.ID, ev.OrderID, ev.OccurredAt, ev.PerformedBy, ev.IdempotencyKey,
		ev.Metadata.TrackingNumber, ev.Metadata.Carrier, ev.Metadata.Notes)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, d := range ev.Lines {
		batch.Queue(`
			INSERT INTO fulfillment_event_lines (event_id, order_line_id, product_id, quantity_delta)
			VALUES ($1, $2, $3, $4)
		`, ev.ID, d.OrderLineID, d.ProductID, d.QuantityDelta)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *storeTx) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, orderID, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return nil
}

func (t *storeTx) StageOutbox(ctx context.Context, aggregateID, eventType string, payload []byte, traceparent string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('order', $1, $2, $3, $4, 'pending')
	`, aggregateID, eventType, payload, traceparent)
	return err
}

func (t *storeTx) Ledger() application.StockLedgerGateway {
	return stockpg.NewLedger(t.tx)
}

func loadOrder(ctx context.Context, q querier, orderID string, forUpdate bool) (domain.Order, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE"
	}

	var o domain.Order
	err := q.QueryRow(ctx,
		`SELECT id, number, direction, status, created_at, updated_at FROM orders WHERE id = $1`+lock,
		orderID,
	).Scan(&o.ID, &o.Number, &o.Direction, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, quantity_ordered, quantity_fulfilled FROM order_lines WHERE order_id = $1 ORDER BY id`+lock,
		orderID,
	)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.QuantityOrdered, &l.QuantityFulfilled); err != nil {
			return domain.Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func eventByKey(ctx context.Context, q querier, orderID, key string) (domain.FulfillmentEvent, bool, error) {
	row := q.QueryRow(ctx, `
		SELECT id, order_id, occurred_at, performed_by, idempotency_key, tracking_number, carrier, notes
		FROM fulfillment_events
		WHERE order_id = $1 AND idempotency_key = $2
	`, orderID, key)

	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FulfillmentEvent{}, false, nil
	}
	if err != nil {
		return domain.FulfillmentEvent{}, false, err
	}
	if ev.Lines, err = eventLines(ctx, q, ev.ID); err != nil {
		return domain.FulfillmentEvent{}, false, err
	}
	return ev, true, nil
}

func scanEvent(row pgx.Row) (domain.FulfillmentEvent, error) {
	var ev domain.FulfillmentEvent
	var idemKey, tracking, carrier, notes *string
	err := row.Scan(&ev.ID, &ev.OrderID, &ev.OccurredAt, &ev.PerformedBy, &idemKey, &tracking, &carrier, &notes)
	if err != nil {
		return domain.FulfillmentEvent{}, err
	}
	if idemKey != nil {
		ev.IdempotencyKey = *idemKey
	}
	if tracking != nil {
		ev.Metadata.TrackingNumber = *tracking
	}
	if carrier != nil {
		ev.Metadata.Carrier = *carrier
	}
	if notes != nil {
		ev.Metadata.Notes = *notes
	}
	return ev, nil
}

func eventLines(ctx context.Context, q querier, eventID string) ([]domain.LineDelta, error) {
	rows, err := q.Query(ctx, `
		SELECT order_line_id, product_id, quantity_delta
		FROM fulfillment_event_lines
		WHERE event_id = $1
		ORDER BY order_line_id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.LineDelta
	for rows.Next() {
		var d domain.LineDelta
		if err := rows.Scan(&d.OrderLineID, &d.ProductID, &d.QuantityDelta); err != nil {
			return nil, err
		}
		lines = append(lines, d)
	}
	return lines, rows.Err()
}
