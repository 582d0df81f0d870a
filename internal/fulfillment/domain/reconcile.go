package domain

import "fmt"

// ReconcileLine computes the candidate fulfilled quantity for one requested
// delta against the current persisted line. It never mutates the line: the
// caller stages the returned candidate and persists it inside the enclosing
// transaction, or discards it if any other line in the request fails.
func ReconcileLine(line *OrderLine, quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, quantity)
	}
	// compared against the remaining headroom rather than summed first, so an
	// arbitrarily large request cannot wrap the candidate negative
	if quantity > line.Remaining() {
		return 0, &OverflowError{
			OrderLineID: line.ID,
			Requested:   quantity,
			Remaining:   line.Remaining(),
		}
	}
	return line.QuantityFulfilled + quantity, nil
}
