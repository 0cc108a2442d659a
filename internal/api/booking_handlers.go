package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/directory"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
)

var validate = validator.New()

func checkAvailabilityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		date, err := time.Parse("2006-01-02", q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		start, err := scheduling.ParseClockTime(q.Get("time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}

		query := scheduling.AvailabilityQuery{Date: date, Start: start}

		if raw := q.Get("duration"); raw != "" {
			minutes, err := strconv.Atoi(raw)
			if err != nil || minutes < 1 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive integer of minutes")
				return
			}
			query.DurationMinutes = minutes
		}

		if raw := q.Get("exclude_booking_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude_booking_id", "exclude_booking_id must be a valid UUID")
				return
			}
			query.ExcludeBookingID = &id
		}

		if raw := q.Get("procedure_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_procedure_id", "procedure_id must be a valid UUID")
				return
			}
			query.ProcedureID = &id
		}

		result, err := svc.CheckAvailability(r.Context(), query)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := AvailabilityResponse{
			Available: result.Available,
			Conflicts: make([]BookingResponse, 0, len(result.Conflicts)),
		}
		for i := range result.Conflicts {
			resp.Conflicts = append(resp.Conflicts, toBookingResponse(&result.Conflicts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createBookingHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		start, err := scheduling.ParseClockTime(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}

		date, _ := time.Parse("2006-01-02", req.Date)

		in := scheduling.CreateBookingInput{
			PatientID:     uuid.MustParse(req.PatientID),
			ProcedureID:   uuid.MustParse(req.ProcedureID),
			Date:          date,
			Start:         start,
			AssignedStaff: req.AssignedStaff,
			Notes:         req.Notes,
		}
		if req.DurationMinutes != nil {
			in.DurationMinutes = *req.DurationMinutes
		}

		booking, err := svc.CreateBooking(r.Context(), in)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(booking))
	}
}

func updateBookingHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req UpdateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		var in scheduling.UpdateBookingInput

		if req.ProcedureID != nil {
			pid := uuid.MustParse(*req.ProcedureID)
			in.ProcedureID = &pid
		}
		if req.Date != nil {
			date, _ := time.Parse("2006-01-02", *req.Date)
			in.Date = &date
		}
		if req.StartTime != nil {
			start, err := scheduling.ParseClockTime(*req.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
				return
			}
			in.Start = &start
		}
		if req.Status != nil {
			status := scheduling.BookingStatus(*req.Status)
			in.Status = &status
		}
		in.DurationMinutes = req.DurationMinutes
		in.AssignedStaff = req.AssignedStaff
		in.Notes = req.Notes

		booking, err := svc.UpdateBooking(r.Context(), id, in)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func getBookingHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		booking, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func listBookingsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		bookings, err := svc.ListByDate(r.Context(), date)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, toBookingResponse(&bookings[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSchedulingError(w http.ResponseWriter, err error) {
	var conflict *scheduling.ConflictError
	var invalid *scheduling.ValidationError

	switch {
	case errors.Is(err, directory.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, directory.ErrProcedureNotFound):
		writeError(w, http.StatusNotFound, "procedure_not_found", err.Error())
	case errors.Is(err, scheduling.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "schedule_conflict", conflict.Error())
	case errors.Is(err, scheduling.ErrScheduleBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "schedule_busy", "schedule is currently being modified, please retry shortly")
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid_request", invalid.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
