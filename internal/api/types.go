package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
	"github.com/clinicdesk/clinic-scheduling/internal/waitingroom"
)

type CreateBookingRequest struct {
	PatientID       string  `json:"patient_id" validate:"required,uuid"`
	ProcedureID     string  `json:"procedure_id" validate:"required,uuid"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string  `json:"start_time" validate:"required"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=1"`
	AssignedStaff   *string `json:"assigned_staff"`
	Notes           *string `json:"notes"`
}

type UpdateBookingRequest struct {
	ProcedureID     *string `json:"procedure_id" validate:"omitempty,uuid"`
	Date            *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime       *string `json:"start_time"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=1"`
	AssignedStaff   *string `json:"assigned_staff"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
}

type BookingResponse struct {
	ID              uuid.UUID            `json:"id"`
	PatientID       uuid.UUID            `json:"patient_id"`
	ProcedureID     uuid.UUID            `json:"procedure_id"`
	Date            string               `json:"date"`
	StartTime       scheduling.ClockTime `json:"start_time"`
	EndTime         scheduling.ClockTime `json:"end_time"`
	DurationMinutes int                  `json:"duration_minutes"`
	AssignedStaff   *string              `json:"assigned_staff,omitempty"`
	Status          string               `json:"status"`
	Notes           *string              `json:"notes,omitempty"`
}

func toBookingResponse(b *scheduling.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		PatientID:       b.PatientID,
		ProcedureID:     b.ProcedureID,
		Date:            b.Date.Format("2006-01-02"),
		StartTime:       b.Start,
		EndTime:         b.End(),
		DurationMinutes: b.DurationMinutes,
		AssignedStaff:   b.AssignedStaff,
		Status:          string(b.Status),
		Notes:           b.Notes,
	}
}

type AvailabilityResponse struct {
	Available bool              `json:"available"`
	Conflicts []BookingResponse `json:"conflicts"`
}

type SetStateRequest struct {
	State     string  `json:"state" validate:"required"`
	BookingID *string `json:"booking_id" validate:"omitempty,uuid"`
}

type BulkStateRequest struct {
	Changes map[string]string `json:"changes" validate:"required,min=1"`
}

type BulkStateResponse struct {
	UpdatedCount int      `json:"updated_count"`
	Errors       []string `json:"errors"`
}

type RosterEntryResponse struct {
	ID             uuid.UUID             `json:"id"`
	PatientID      uuid.UUID             `json:"patient_id"`
	PatientName    string                `json:"patient_name"`
	PatientSurname string                `json:"patient_surname"`
	State          string                `json:"state"`
	EntryTime      time.Time             `json:"entry_time"`
	StateChangedAt time.Time             `json:"state_changed_at"`
	WaitMinutes    int                   `json:"wait_minutes"`
	HasBooking     bool                  `json:"has_booking"`
	BookingID      *uuid.UUID            `json:"booking_id,omitempty"`
	ScheduledTime  *scheduling.ClockTime `json:"scheduled_time,omitempty"`
}

func toRosterEntryResponse(re waitingroom.RosterEntry) RosterEntryResponse {
	resp := RosterEntryResponse{
		ID:             re.ID,
		PatientID:      re.PatientID,
		PatientName:    re.PatientName,
		PatientSurname: re.PatientSurname,
		State:          re.StateName,
		EntryTime:      re.EntryTime,
		StateChangedAt: re.StateChangedAt,
		WaitMinutes:    re.WaitMinutes,
		HasBooking:     re.BookingID != nil || re.HasBooking,
		BookingID:      re.BookingID,
		ScheduledTime:  re.ScheduledTime,
	}
	if resp.ScheduledTime == nil {
		resp.ScheduledTime = re.BookingStart
	}
	return resp
}

type TransitionResponse struct {
	EntryID     uuid.UUID `json:"entry_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PriorState  *string   `json:"prior_state"`
	NewState    string    `json:"new_state"`
	WaitMinutes int       `json:"wait_minutes"`
}

type WaitStateResponse struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}
