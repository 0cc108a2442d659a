package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduling/internal/clock"
	"github.com/clinicdesk/clinic-scheduling/internal/directory"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
)

const (
	EventBookingCreated       = "BOOKING_CREATED"
	EventBookingUpdated       = "BOOKING_UPDATED"
	EventBookingStatusChanged = "BOOKING_STATUS_CHANGED"
)

var ErrScheduleBusy = errors.New("schedule is currently being modified, please retry")

type Service struct {
	repo           Repository
	dir            directory.Repository
	locker         redisclient.Locker
	clock          clock.Clock
	defaultMinutes int
	logger         zerolog.Logger
}

func NewService(repo Repository, dir directory.Repository, locker redisclient.Locker, clk clock.Clock, defaultMinutes int, logger zerolog.Logger) *Service {
	return &Service{
		repo:           repo,
		dir:            dir,
		locker:         locker,
		clock:          clk,
		defaultMinutes: defaultMinutes,
		logger:         logger,
	}
}

// AvailabilityQuery describes a proposed booking window.
type AvailabilityQuery struct {
	Date             time.Time
	Start            ClockTime
	DurationMinutes  int // 0 means the configured default
	ExcludeBookingID *uuid.UUID
	ProcedureID      *uuid.UUID
}

// CheckAvailability is the read-only conflict probe. It reports every
// blocking booking on the date whose window intersects the proposed one
// under the half-open rule, ordered by start time.
func (s *Service) CheckAvailability(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	duration, err := s.resolveDuration(q.DurationMinutes)
	if err != nil {
		return nil, err
	}

	if q.ProcedureID != nil {
		if err := s.requireProcedure(ctx, *q.ProcedureID); err != nil {
			return nil, err
		}
	}

	conflicts, err := s.findConflicts(ctx, q.Date, q.Start, duration, ListFilter{
		ProcedureID:      q.ProcedureID,
		ExcludeBookingID: q.ExcludeBookingID,
	})
	if err != nil {
		return nil, err
	}

	return &Availability{
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

type CreateBookingInput struct {
	PatientID       uuid.UUID
	ProcedureID     uuid.UUID
	Date            time.Time
	Start           ClockTime
	DurationMinutes int // 0 means the configured default
	AssignedStaff   *string
	Notes           *string
}

// CreateBooking validates references, then runs the conflict check and the
// insert under a per-date schedule lock so two racing requests cannot both
// pass the check.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*Booking, error) {
	duration, err := s.resolveDuration(in.DurationMinutes)
	if err != nil {
		return nil, err
	}

	if err := s.requirePatient(ctx, in.PatientID); err != nil {
		return nil, err
	}
	if err := s.requireProcedure(ctx, in.ProcedureID); err != nil {
		return nil, err
	}

	booking := &Booking{
		ID:              uuid.New(),
		PatientID:       in.PatientID,
		ProcedureID:     in.ProcedureID,
		Date:            in.Date,
		Start:           in.Start,
		DurationMinutes: duration,
		AssignedStaff:   in.AssignedStaff,
		Status:          StatusScheduled,
		Notes:           in.Notes,
	}

	var created *Booking

	err = s.locker.WithScheduleLock(ctx, in.Date.Format("2006-01-02"), func(lockCtx context.Context) error {
		conflicts, err := s.findConflicts(lockCtx, in.Date, in.Start, duration, ListFilter{})
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			return &ConflictError{BookingID: conflicts[0].ID}
		}

		created, err = s.repo.CreateBooking(lockCtx, booking)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventBookingCreated, map[string]any{
			"patient_id": in.PatientID.String(),
			"date":       in.Date.Format("2006-01-02"),
			"start":      in.Start.String(),
			"duration":   duration,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return created, nil
}

type UpdateBookingInput struct {
	ProcedureID     *uuid.UUID
	Date            *time.Time
	Start           *ClockTime
	DurationMinutes *int
	AssignedStaff   *string
	Notes           *string
	Status          *BookingStatus
}

// UpdateBooking reschedules or mutates a booking in place. The conflict
// check excludes the booking itself and only runs while the updated window
// still blocks the schedule.
func (s *Service) UpdateBooking(ctx context.Context, id uuid.UUID, in UpdateBookingInput) (*Booking, error) {
	existing, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Status != nil && !in.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown booking status %q", *in.Status)}
	}

	updated := *existing
	statusChanged := false

	if in.ProcedureID != nil {
		if err := s.requireProcedure(ctx, *in.ProcedureID); err != nil {
			return nil, err
		}
		updated.ProcedureID = *in.ProcedureID
	}
	if in.Date != nil {
		updated.Date = *in.Date
	}
	if in.Start != nil {
		updated.Start = *in.Start
	}
	if in.DurationMinutes != nil {
		duration, err := s.resolveDuration(*in.DurationMinutes)
		if err != nil {
			return nil, err
		}
		updated.DurationMinutes = duration
	}
	if in.AssignedStaff != nil {
		updated.AssignedStaff = in.AssignedStaff
	}
	if in.Notes != nil {
		updated.Notes = in.Notes
	}
	if in.Status != nil && *in.Status != existing.Status {
		updated.Status = *in.Status
		statusChanged = true
	}

	var result *Booking

	err = s.locker.WithScheduleLock(ctx, updated.Date.Format("2006-01-02"), func(lockCtx context.Context) error {
		if updated.Status.Blocking() {
			conflicts, err := s.findConflicts(lockCtx, updated.Date, updated.Start, updated.DurationMinutes, ListFilter{
				ExcludeBookingID: &id,
			})
			if err != nil {
				return fmt.Errorf("check conflicts: %w", err)
			}
			if len(conflicts) > 0 {
				return &ConflictError{BookingID: conflicts[0].ID}
			}
		}

		res, err := s.repo.UpdateBooking(lockCtx, &updated)
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		result = res

		eventType := EventBookingUpdated
		payload := map[string]any{
			"date":     updated.Date.Format("2006-01-02"),
			"start":    updated.Start.String(),
			"duration": updated.DurationMinutes,
		}
		if statusChanged {
			eventType = EventBookingStatusChanged
			payload["from"] = string(existing.Status)
			payload["to"] = string(updated.Status)
		}
		s.logEvent(lockCtx, id, eventType, payload)

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return result, nil
}

// GetBooking retrieves one booking by id.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBookingByID(ctx, id)
}

// ListByDate retrieves all bookings on a date, any status, ordered by start.
func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]Booking, error) {
	return s.repo.ListByDate(ctx, date)
}

func (s *Service) findConflicts(ctx context.Context, date time.Time, start ClockTime, duration int, f ListFilter) ([]Booking, error) {
	active, err := s.repo.ListActiveByDate(ctx, date, f)
	if err != nil {
		return nil, err
	}

	end := start.AddMinutes(duration)

	var conflicts []Booking
	for _, b := range active {
		if b.Overlaps(start, end) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

func (s *Service) resolveDuration(minutes int) (int, error) {
	if minutes == 0 {
		return s.defaultMinutes, nil
	}
	if minutes < 0 {
		return 0, &ValidationError{Field: "duration_minutes", Reason: "must be at least 1"}
	}
	return minutes, nil
}

func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	ok, err := s.dir.PatientExists(ctx, id)
	if err != nil {
		return fmt.Errorf("load patient: %w", err)
	}
	if !ok {
		return directory.ErrPatientNotFound
	}
	return nil
}

func (s *Service) requireProcedure(ctx context.Context, id uuid.UUID) error {
	ok, err := s.dir.ProcedureExists(ctx, id)
	if err != nil {
		return fmt.Errorf("load procedure: %w", err)
	}
	if !ok {
		return directory.ErrProcedureNotFound
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("marshal booking event payload")
		data = nil
	}

	id := bookingID

	ev := BookingEvent{
		EventType: eventType,
		BookingID: &id,
		Payload:   data,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Stringer("booking_id", bookingID).Msg("insert booking event")
	}
}
