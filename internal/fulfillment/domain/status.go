package domain

// DeriveStatus recomputes the aggregate order status from line-level state.
// It fully replaces the stored status after every accepted fulfillment; it is
// never patched incrementally. Cancellation is owned by the capture flow and
// never derived here, so the result is one of validated (nothing fulfilled
// yet), partially_fulfilled, or fulfilled.
func DeriveStatus(lines []OrderLine) OrderStatus {
	allZero, allFull := true, true
	for _, l := range lines {
		if l.QuantityFulfilled != 0 {
			allZero = false
		}
		if l.QuantityFulfilled != l.QuantityOrdered {
			allFull = false
		}
	}
	switch {
	case len(lines) == 0 || allZero:
		return StatusValidated
	case allFull:
		return StatusFulfilled
	default:
		return StatusPartiallyFulfilled
	}
}
