package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrBookingNotFound = errors.New("booking not found")

// ListFilter narrows the active-booking query used by the conflict detector.
type ListFilter struct {
	ProcedureID      *uuid.UUID
	ExcludeBookingID *uuid.UUID
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// ListActiveByDate returns the date's bookings whose status still blocks
	// the schedule, ordered by start time.
	ListActiveByDate(ctx context.Context, date time.Time, f ListFilter) ([]Booking, error)

	ListByDate(ctx context.Context, date time.Time) ([]Booking, error)

	CreateBooking(ctx context.Context, b *Booking) (*Booking, error)
	UpdateBooking(ctx context.Context, b *Booking) (*Booking, error)

	// Event logging
	InsertEvent(ctx context.Context, ev BookingEvent) error
}
