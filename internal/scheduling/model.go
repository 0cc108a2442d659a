package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusScheduled       BookingStatus = "scheduled"
	StatusPostponed       BookingStatus = "postponed"
	StatusConfirmed       BookingStatus = "confirmed"
	StatusInOperatingRoom BookingStatus = "in_operating_room"
	StatusCompleted       BookingStatus = "completed"
	StatusCancelled       BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusPostponed, StatusConfirmed,
		StatusInOperatingRoom, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Blocking reports whether a booking in this status still occupies its time
// window. Cancelled and completed bookings never conflict.
func (s BookingStatus) Blocking() bool {
	return s != StatusCancelled && s != StatusCompleted
}

type Booking struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ProcedureID     uuid.UUID
	Date            time.Time // calendar date, time-of-day ignored
	Start           ClockTime
	DurationMinutes int
	AssignedStaff   *string
	Status          BookingStatus
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b Booking) End() ClockTime {
	return b.Start.AddMinutes(b.DurationMinutes)
}

// Overlaps applies the half-open interval rule against [start, end).
func (b Booking) Overlaps(start, end ClockTime) bool {
	return overlaps(b.Start, b.End(), start, end)
}

// BookingEvent is an append-only audit row recorded alongside every booking
// mutation.
type BookingEvent struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// Availability is the result of a read-only conflict probe.
type Availability struct {
	Available bool
	Conflicts []Booking
}
