package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/verone/fulfillment/internal/fulfillment/domain"
	"github.com/verone/fulfillment/pkg/tracing"
)

const eventTypeRecorded = "FulfillmentRecorded"

// Service coordinates one fulfillment request end to end: validation, line
// reconciliation, event recording, ledger notification and status derivation
// all run inside a single transactional scope. Either every line commits or
// nothing is applied.
type Service struct {
	log       *slog.Logger
	store     Store
	guard     DuplicateGuard
	validator OrderValidator
	tracer    trace.Tracer
}

// NewService wires the coordinator. guard may be nil; the store-level
// idempotency key check still holds without it.
func NewService(log *slog.Logger, store Store, guard DuplicateGuard) *Service {
	return &Service{
		log:    log,
		store:  store,
		guard:  guard,
		tracer: otel.Tracer("fulfillment-service"),
	}
}

func (s *Service) Fulfill(ctx context.Context, req FulfillmentRequest) (FulfillmentResult, error) {
	ctx, span := s.tracer.Start(ctx, "Fulfill")
	defer span.End()

	if err := req.validate(); err != nil {
		return FulfillmentResult{Error: domain.KindOf(err)}, err
	}

	guarded := req.IdempotencyKey != "" && s.guard != nil
	if guarded {
		seen, err := s.guard.Seen(ctx, guardKey(req))
		switch {
		case err != nil:
			s.log.Warn("duplicate guard unavailable, falling through to store", "err", err)
		case seen:
			if res, ok := s.replay(ctx, req); ok {
				return res, nil
			}
			// marked but no committed event: the earlier attempt died mid-flight
		}
	}

	var res FulfillmentResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := s.validator.Locate(ctx, tx, req.OrderID, req.Direction)
		if err != nil {
			return err
		}

		// the key lookup runs before the status gate: a retry of the request
		// that completed the order must replay, not report a state conflict
		if req.IdempotencyKey != "" {
			prior, ok, err := tx.EventByIdempotencyKey(ctx, req.OrderID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if ok {
				res = duplicateResult(order, prior)
				return nil
			}
		}

		if err := s.validator.Validate(order); err != nil {
			return err
		}

		perLine, deltas, err := reconcileAll(&order, req.Items)
		if err != nil {
			res = FulfillmentResult{PerLine: perLine}
			return err
		}

		occurred := req.OccurredAt
		if occurred.IsZero() {
			occurred = time.Now().UTC()
		}
		ev := domain.FulfillmentEvent{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			OccurredAt:     occurred,
			PerformedBy:    req.PerformedBy,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       req.Metadata,
			Lines:          deltas,
		}

		for _, lr := range perLine {
			if err := tx.UpdateLineQuantity(ctx, lr.OrderLineID, lr.NewQuantityFulfilled); err != nil {
				return err
			}
		}
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}

		// one ledger call per product per event, summed across lines
		sign := order.Direction.LedgerSign()
		productOrder := make([]string, 0, len(ev.Lines))
		productDeltas := make(map[string]int64, len(ev.Lines))
		for _, d := range ev.Lines {
			if _, ok := productDeltas[d.ProductID]; !ok {
				productOrder = append(productOrder, d.ProductID)
			}
			productDeltas[d.ProductID] += sign * d.QuantityDelta
		}
		for _, productID := range productOrder {
			if err := tx.Ledger().Apply(ctx, productID, productDeltas[productID], ev.ID); err != nil {
				return err
			}
		}

		status := domain.DeriveStatus(order.Lines)
		if err := tx.SetOrderStatus(ctx, order.ID, status); err != nil {
			return err
		}

		payload, err := json.Marshal(domain.FulfillmentRecorded{
			EventID:    ev.ID,
			OrderID:    order.ID,
			Direction:  order.Direction,
			NewStatus:  status,
			OccurredAt: occurred,
			Lines:      ev.Lines,
		})
		if err != nil {
			return err
		}
		if err := tx.StageOutbox(ctx, order.ID, eventTypeRecorded, payload, tracing.Traceparent(ctx)); err != nil {
			return err
		}

		res = FulfillmentResult{Success: true, NewOrderStatus: status, PerLine: perLine}
		return nil
	})
	if err != nil {
		if guarded {
			_ = s.guard.Forget(ctx, guardKey(req))
		}
		res.Success = false
		res.Error = domain.KindOf(err)
		s.log.Info("fulfillment rejected",
			"order_id", req.OrderID, "direction", req.Direction, "kind", res.Error, "err", err)
		return res, err
	}

	s.log.Info("fulfillment recorded",
		"order_id", req.OrderID, "direction", req.Direction,
		"status", res.NewOrderStatus, "lines", len(res.PerLine), "duplicate", res.Duplicate)
	return res, nil
}

// Order returns the order with its current line quantities.
func (s *Service) Order(ctx context.Context, orderID string) (domain.Order, error) {
	return s.store.Order(ctx, orderID)
}

// Events returns the immutable fulfillment history of an order.
func (s *Service) Events(ctx context.Context, orderID string) ([]domain.FulfillmentEvent, error) {
	return s.store.EventsByOrder(ctx, orderID)
}

// reconcileAll evaluates every requested line against the locked order copy,
// staging accepted candidates on it. Every line's outcome is collected even
// when an earlier one fails; the first failure aborts the whole request.
func reconcileAll(order *domain.Order, items []FulfillmentItem) ([]LineResult, []domain.LineDelta, error) {
	perLine := make([]LineResult, 0, len(items))
	deltas := make([]domain.LineDelta, 0, len(items))
	var firstErr error

	fail := func(lineID string, err error) {
		perLine = append(perLine, LineResult{OrderLineID: lineID, Error: domain.KindOf(err)})
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, it := range items {
		line, ok := order.Line(it.OrderLineID)
		if !ok {
			fail(it.OrderLineID, fmt.Errorf("%w: line %s does not belong to order %s", domain.ErrNotFound, it.OrderLineID, order.ID))
			continue
		}
		if it.ProductID != "" && it.ProductID != line.ProductID {
			fail(it.OrderLineID, fmt.Errorf("%w: line %s is for product %s, not %s", domain.ErrValidation, line.ID, line.ProductID, it.ProductID))
			continue
		}
		candidate, err := domain.ReconcileLine(line, it.Quantity)
		if err != nil {
			fail(it.OrderLineID, err)
			continue
		}
		line.QuantityFulfilled = candidate
		perLine = append(perLine, LineResult{OrderLineID: line.ID, Accepted: true, NewQuantityFulfilled: candidate})

		// a line repeated within one request contributes a single merged delta
		merged := false
		for i := range deltas {
			if deltas[i].OrderLineID == line.ID {
				deltas[i].QuantityDelta += it.Quantity
				merged = true
				break
			}
		}
		if !merged {
			deltas = append(deltas, domain.LineDelta{OrderLineID: line.ID, ProductID: line.ProductID, QuantityDelta: it.Quantity})
		}
	}
	if firstErr != nil {
		return perLine, nil, firstErr
	}
	return perLine, deltas, nil
}

// replay serves an already-applied request from the committed event instead
// of opening a new write transaction.
func (s *Service) replay(ctx context.Context, req FulfillmentRequest) (FulfillmentResult, bool) {
	prior, ok, err := s.store.EventByIdempotencyKey(ctx, req.OrderID, req.IdempotencyKey)
	if err != nil || !ok {
		return FulfillmentResult{}, false
	}
	order, err := s.store.Order(ctx, req.OrderID)
	if err != nil {
		return FulfillmentResult{}, false
	}
	s.log.Info("duplicate fulfillment replayed", "order_id", req.OrderID, "event_id", prior.ID)
	return duplicateResult(order, prior), true
}

func duplicateResult(order domain.Order, ev domain.FulfillmentEvent) FulfillmentResult {
	perLine := make([]LineResult, 0, len(ev.Lines))
	for _, d := range ev.Lines {
		lr := LineResult{OrderLineID: d.OrderLineID, Accepted: true}
		if line, ok := order.Line(d.OrderLineID); ok {
			lr.NewQuantityFulfilled = line.QuantityFulfilled
		}
		perLine = append(perLine, lr)
	}
	return FulfillmentResult{
		Success:        true,
		Duplicate:      true,
		NewOrderStatus: order.Status,
		PerLine:        perLine,
	}
}

func guardKey(req FulfillmentRequest) string {
	return req.OrderID + ":" + req.IdempotencyKey
}
