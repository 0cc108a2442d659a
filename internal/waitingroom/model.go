package waitingroom

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
)

// Canonical waiting-room states, in lifecycle order. The lookup table is
// open: unrecognized names submitted by callers may be registered at
// runtime with CustomStateOrder.
const (
	StatePending        = "pending"
	StateArrived        = "arrived"
	StateConfirmed      = "confirmed"
	StateInConsultation = "in_consultation"
	StateCompleted      = "completed"
	StateNoShow         = "no_show"
)

// CustomStateOrder is the display order assigned to auto-registered names.
const CustomStateOrder = 99

var canonicalOrder = map[string]int{
	StatePending:        1,
	StateArrived:        2,
	StateConfirmed:      3,
	StateInConsultation: 4,
	StateCompleted:      5,
	StateNoShow:         6,
}

// CanonicalStates returns the six canonical state names in lifecycle order.
func CanonicalStates() []string {
	return []string{StatePending, StateArrived, StateConfirmed, StateInConsultation, StateCompleted, StateNoShow}
}

func IsCanonical(name string) bool {
	_, ok := canonicalOrder[name]
	return ok
}

// Terminal reports whether a state ends the visit lifecycle.
func Terminal(name string) bool {
	return name == StateCompleted || name == StateNoShow
}

// DisplayOrderFor returns the canonical order for a name, or
// CustomStateOrder for anything else.
func DisplayOrderFor(name string) int {
	if order, ok := canonicalOrder[name]; ok {
		return order
	}
	return CustomStateOrder
}

// WaitState is one row of the dynamically extensible state lookup.
type WaitState struct {
	ID           int
	Name         string
	DisplayOrder int
}

// Entry tracks one patient's presence for one calendar day. At most one
// entry exists per (patient, day).
type Entry struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	Day            time.Time
	StateID        int
	StateName      string
	EntryTime      time.Time
	StateChangedAt time.Time
	WaitMinutes    int
	HasBooking     bool
	ScheduledTime  *scheduling.ClockTime
}

// EffectiveWaitMinutes returns the stored snapshot when one was captured at
// the last transition, otherwise the live wait since entry.
func (e Entry) EffectiveWaitMinutes(now time.Time) int {
	if e.WaitMinutes > 0 {
		return e.WaitMinutes
	}
	minutes := int(now.Sub(e.EntryTime).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}

// TransitionRecord is the append-only audit trail of state changes. Rows are
// written once per transition and never mutated.
type TransitionRecord struct {
	ID           int64
	EntryID      uuid.UUID
	PriorStateID *int
	NewStateID   int
	CreatedAt    time.Time
}

// RosterEntry decorates an Entry with patient identity and same-day booking
// metadata for the day's roster.
type RosterEntry struct {
	Entry
	PatientName    string
	PatientSurname string
	BookingID      *uuid.UUID
	BookingStart   *scheduling.ClockTime
}

// BookingRef is the slice of a booking the waiting room cares about.
type BookingRef struct {
	ID    uuid.UUID
	Start scheduling.ClockTime
}

// BookedPatient pairs a patient with their earliest blocking booking of the
// day, used to materialize missing roster entries.
type BookedPatient struct {
	PatientID uuid.UUID
	Booking   BookingRef
}

// TransitionResult reports the outcome of a single state change.
type TransitionResult struct {
	Entry      *Entry
	PriorState *string
	NewState   string
}

// BulkResult aggregates a bulk state change. Per-item failures land in
// Errors; they never abort the remaining items.
type BulkResult struct {
	UpdatedCount int
	Errors       []string
}
