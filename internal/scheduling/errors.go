package scheduling

import (
	"fmt"

	"github.com/google/uuid"
)

// ConflictError is returned when a booking write would overlap an existing
// blocking booking. It carries one colliding booking id so the caller can
// report it.
type ConflictError struct {
	BookingID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule conflict with booking %s", e.BookingID)
}

// ValidationError identifies the offending request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
