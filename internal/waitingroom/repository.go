package waitingroom

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrStateNotFound = errors.New("wait state not found")
	ErrEntryNotFound = errors.New("waiting room entry not found")

	// ErrUnknownState is returned instead of auto-registering when custom
	// state names are disabled.
	ErrUnknownState = errors.New("unknown waiting-room state")
)

// Repository contains all DB interactions needed by the engine. WithTx runs
// fn against a transaction-scoped repository; the roster materialization
// side effect and bulk updates rely on it for read-your-writes.
type Repository interface {
	WithTx(ctx context.Context, fn func(Repository) error) error

	// State lookup
	ResolveState(ctx context.Context, name string) (*WaitState, error)
	RegisterState(ctx context.Context, name string, displayOrder int) (*WaitState, error)
	ListStates(ctx context.Context) ([]WaitState, error)

	// Entries
	GetEntryForDay(ctx context.Context, patientID uuid.UUID, day time.Time) (*Entry, error)
	CreateEntry(ctx context.Context, e *Entry) (*Entry, error)
	UpdateEntryState(ctx context.Context, entryID uuid.UUID, stateID int, changedAt time.Time, waitMinutes int) (*Entry, error)
	ListEntriesForDay(ctx context.Context, day time.Time) ([]RosterEntry, error)
	ListStaleEntries(ctx context.Context, beforeDay time.Time) ([]Entry, error)

	// Transition history
	InsertTransition(ctx context.Context, t TransitionRecord) error

	// Booking store collaborator (same-day lookups only)
	ListBookedPatientsForDay(ctx context.Context, day time.Time) ([]BookedPatient, error)
	SameDayBookingForPatient(ctx context.Context, patientID uuid.UUID, day time.Time) (*BookingRef, error)
	BookingStart(ctx context.Context, bookingID uuid.UUID, day time.Time) (*BookingRef, error)
}
