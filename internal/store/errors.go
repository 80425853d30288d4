package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the referenced row does not exist. Callers that
// race on deletion (sweeper vs. manager) treat it as success.
var ErrNotFound = errors.New("not found")

// ErrDuplicateIdentity is returned when the email or CPF collides with an
// existing non-cancelled registration.
var ErrDuplicateIdentity = errors.New("email or cpf already registered")

// ErrCancelled is returned when an operation targets a registration that has
// been marked cancelled and is awaiting the sweep.
var ErrCancelled = errors.New("registration is cancelled")

// StockUnavailableError names the shirt variant with zero availability.
// The whole operation it aborted left no partial reservation behind.
type StockUnavailableError struct {
	Size   string
	Sleeve string
}

func (e *StockUnavailableError) Error() string {
	return fmt.Sprintf("no stock for %s %s-sleeve shirt", e.Size, e.Sleeve)
}

// CapacityViolationError is returned when an administrative total-units change
// would drop capacity below the units currently reserved.
type CapacityViolationError struct {
	Size     string
	Sleeve   string
	Total    int
	Reserved int
}

func (e *CapacityViolationError) Error() string {
	return fmt.Sprintf("cannot set %s %s-sleeve total to %d: %d units reserved",
		e.Size, e.Sleeve, e.Total, e.Reserved)
}
