package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed classification surfaced to callers. Every failure
// of a fulfillment request maps to exactly one kind.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindStateConflict    ErrorKind = "state_conflict"
	KindQuantityOverflow ErrorKind = "quantity_overflow"
	KindPersistence      ErrorKind = "persistence"
)

var (
	ErrValidation       = errors.New("invalid fulfillment request")
	ErrNotFound         = errors.New("not found")
	ErrStateConflict    = errors.New("order not fulfillable")
	ErrQuantityOverflow = errors.New("fulfilled quantity would exceed ordered quantity")
	ErrPersistence      = errors.New("persistence failure")
)

// OverflowError carries the line-level detail of a rejected delta.
type OverflowError struct {
	OrderLineID string
	Requested   int64
	Remaining   int64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("line %s: requested %d but only %d remaining", e.OrderLineID, e.Requested, e.Remaining)
}

func (e *OverflowError) Unwrap() error { return ErrQuantityOverflow }

// KindOf classifies an error into the taxonomy. Anything unrecognized is a
// store failure: the deterministic kinds are always produced via the sentinel
// errors above.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStateConflict):
		return KindStateConflict
	case errors.Is(err, ErrQuantityOverflow):
		return KindQuantityOverflow
	default:
		return KindPersistence
	}
}

// Retryable reports whether blind resubmission can ever help. Only store
// failures qualify; the deterministic kinds require a corrected request.
func (k ErrorKind) Retryable() bool { return k == KindPersistence }
