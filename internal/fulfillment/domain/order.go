package domain

import "time"

type Direction string

const (
	DirectionSales    Direction = "sales"
	DirectionPurchase Direction = "purchase"
)

// LedgerSign is the multiplier applied to a fulfillment quantity when it is
// reported to the stock ledger: sales fulfillments remove stock, purchase
// receptions add it.
func (d Direction) LedgerSign() int64 {
	if d == DirectionSales {
		return -1
	}
	return 1
}

func (d Direction) Valid() bool {
	return d == DirectionSales || d == DirectionPurchase
}

type OrderStatus string

const (
	StatusDraft              OrderStatus = "draft"
	StatusValidated          OrderStatus = "validated"
	StatusPartiallyFulfilled OrderStatus = "partially_fulfilled"
	StatusFulfilled          OrderStatus = "fulfilled"
	StatusCancelled          OrderStatus = "cancelled"
)

// Fulfillable reports whether new fulfillment events may be accepted against
// an order in this status. Draft orders still belong to the capture flow;
// fulfilled and cancelled are terminal.
func (s OrderStatus) Fulfillable() bool {
	return s == StatusValidated || s == StatusPartiallyFulfilled
}

type Order struct {
	ID        string      `json:"id"`
	Number    string      `json:"number"`
	Direction Direction   `json:"direction"`
	Status    OrderStatus `json:"status"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Line returns a pointer into o.Lines so callers can stage quantity updates
// on the loaded copy before persisting.
func (o *Order) Line(lineID string) (*OrderLine, bool) {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

type OrderLine struct {
	ID                string `json:"id"`
	OrderID           string `json:"order_id"`
	ProductID         string `json:"product_id"`
	QuantityOrdered   int64  `json:"quantity_ordered"`
	QuantityFulfilled int64  `json:"quantity_fulfilled"`
}

func (l OrderLine) Remaining() int64 {
	return l.QuantityOrdered - l.QuantityFulfilled
}
