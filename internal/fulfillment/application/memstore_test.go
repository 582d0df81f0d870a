package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/verone/fulfillment/internal/fulfillment/domain"
)

// memStore is an in-memory Store for coordinator tests. The mutex gives each
// WithinTx call the same serialization guarantee the postgres implementation
// gets from row locks; a failed fn restores the pre-transaction snapshot.
type memStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	events []domain.FulfillmentEvent
	ledger []memLedgerEntry
	outbox [][]byte

	failInsertEvent bool
}

type memLedgerEntry struct {
	productID string
	delta     int64
	eventID   string
}

func newMemStore(orders ...domain.Order) *memStore {
	s := &memStore{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		cp := copyOrder(o)
		s.orders[o.ID] = &cp
	}
	return s
}

func copyOrder(o domain.Order) domain.Order {
	cp := o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return cp
}

type memSnapshot struct {
	orders map[string]*domain.Order
	events []domain.FulfillmentEvent
	ledger []memLedgerEntry
	outbox [][]byte
}

func (s *memStore) snapshot() memSnapshot {
	orders := make(map[string]*domain.Order, len(s.orders))
	for id, o := range s.orders {
		cp := copyOrder(*o)
		orders[id] = &cp
	}
	return memSnapshot{
		orders: orders,
		events: append([]domain.FulfillmentEvent(nil), s.events...),
		ledger: append([]memLedgerEntry(nil), s.ledger...),
		outbox: append([][]byte(nil), s.outbox...),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.orders = snap.orders
	s.events = snap.events
	s.ledger = snap.ledger
	s.outbox = snap.outbox
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) Order(ctx context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order(orderID)
}

func (s *memStore) order(orderID string) (domain.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return copyOrder(*o), nil
}

func (s *memStore) EventsByOrder(ctx context.Context, orderID string) ([]domain.FulfillmentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FulfillmentEvent
	for _, ev := range s.events {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memStore) EventByIdempotencyKey(ctx context.Context, orderID, key string) (domain.FulfillmentEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventByKey(orderID, key)
}

func (s *memStore) eventByKey(orderID, key string) (domain.FulfillmentEvent, bool, error) {
	for _, ev := range s.events {
		if ev.OrderID == orderID && ev.IdempotencyKey == key {
			return ev, true, nil
		}
	}
	return domain.FulfillmentEvent{}, false, nil
}

// lineQuantity reads a line's current fulfilled quantity for assertions.
func (s *memStore) lineQuantity(orderID, lineID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[orderID]
	for _, l := range o.Lines {
		if l.ID == lineID {
			return l.QuantityFulfilled
		}
	}
	return -1
}

func (s *memStore) status(orderID string) domain.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID].Status
}

type memTx struct {
	s *memStore
}

func (t *memTx) OrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return t.s.order(orderID)
}

func (t *memTx) EventByIdempotencyKey(ctx context.Context, orderID, key string) (domain.FulfillmentEvent, bool, error) {
	return t.s.eventByKey(orderID, key)
}

func (t *memTx) UpdateLineQuantity(ctx context.Context, lineID string, quantityFulfilled int64) error {
	for _, o := range t.s.orders {
		for i := range o.Lines {
			if o.Lines[i].ID == lineID {
				o.Lines[i].QuantityFulfilled = quantityFulfilled
				return nil
			}
		}
	}
	return fmt.Errorf("%w: order line %s", domain.ErrNotFound, lineID)
}

func (t *memTx) InsertEvent(ctx context.Context, ev domain.FulfillmentEvent) error {
	if t.s.failInsertEvent {
		return fmt.Errorf("%w: connection reset", domain.ErrPersistence)
	}
	t.s.events = append(t.s.events, ev)
	return nil
}

func (t *memTx) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	o.Status = status
	return nil
}

func (t *memTx) StageOutbox(ctx context.Context, aggregateID, eventType string, payload []byte, traceparent string) error {
	t.s.outbox = append(t.s.outbox, payload)
	return nil
}

func (t *memTx) Ledger() StockLedgerGateway {
	return &memLedger{s: t.s}
}

type memLedger struct {
	s *memStore
}

func (l *memLedger) Apply(ctx context.Context, productID string, delta int64, eventID string) error {
	for _, e := range l.s.ledger {
		if e.eventID == eventID && e.productID == productID {
			// write-once per event and product
			return nil
		}
	}
	l.s.ledger = append(l.s.ledger, memLedgerEntry{productID: productID, delta: delta, eventID: eventID})
	return nil
}

// fakeGuard is an in-memory DuplicateGuard.
type fakeGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: make(map[string]bool)}
}

func (g *fakeGuard) Seen(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *fakeGuard) Forget(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
	return nil
}
