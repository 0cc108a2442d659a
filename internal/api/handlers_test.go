package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduling/internal/directory"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
	"github.com/clinicdesk/clinic-scheduling/internal/waitingroom"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCheckAvailabilityHandlerValidation(t *testing.T) {
	handler := checkAvailabilityHandler(nil)

	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"missing date", "time=09:00", "invalid_date"},
		{"bad date", "date=June-1&time=09:00", "invalid_date"},
		{"missing time", "date=2024-06-01", "invalid_time"},
		{"one-digit hour", "date=2024-06-01&time=9:00", "invalid_time"},
		{"zero duration", "date=2024-06-01&time=09:00&duration=0", "invalid_duration"},
		{"negative duration", "date=2024-06-01&time=09:00&duration=-5", "invalid_duration"},
		{"bad exclude id", "date=2024-06-01&time=09:00&exclude_booking_id=nope", "invalid_exclude_booking_id"},
		{"bad procedure id", "date=2024-06-01&time=09:00&procedure_id=nope", "invalid_procedure_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/availability?"+tt.query, nil)
			rec := httptest.NewRecorder()

			handler(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestCreateBookingHandlerValidation(t *testing.T) {
	handler := createBookingHandler(nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", "{", "invalid_request_body"},
		{"missing fields", "{}", "invalid_request"},
		{
			"non-uuid patient",
			`{"patient_id":"abc","procedure_id":"` + uuid.NewString() + `","date":"2024-06-01","start_time":"09:00"}`,
			"invalid_request",
		},
		{
			"bad date format",
			`{"patient_id":"` + uuid.NewString() + `","procedure_id":"` + uuid.NewString() + `","date":"01/06/2024","start_time":"09:00"}`,
			"invalid_request",
		},
		{
			"zero duration",
			`{"patient_id":"` + uuid.NewString() + `","procedure_id":"` + uuid.NewString() + `","date":"2024-06-01","start_time":"09:00","duration_minutes":0}`,
			"invalid_request",
		},
		{
			"bad start time",
			`{"patient_id":"` + uuid.NewString() + `","procedure_id":"` + uuid.NewString() + `","date":"2024-06-01","start_time":"25:00"}`,
			"invalid_time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestUpdateBookingHandlerRejectsBadID(t *testing.T) {
	handler := updateBookingHandler(nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/bookings/nope", strings.NewReader("{}"))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	handler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_booking_id", decodeError(t, rec).Error)
}

func TestSetStateHandlerValidation(t *testing.T) {
	handler := setStateHandler(nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/waiting-room/nope/state", strings.NewReader(`{"state":"arrived"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("patientID", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	handler(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_patient_id", decodeError(t, rec).Error)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/waiting-room/x/state", strings.NewReader(`{}`))
	rctx = chi.NewRouteContext()
	rctx.URLParams.Add("patientID", uuid.NewString())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec = httptest.NewRecorder()

	handler(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeError(t, rec).Error, "state name is required")
}

func TestHandleSchedulingErrorMapping(t *testing.T) {
	collidingID := uuid.New()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"patient not found", directory.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
		{"procedure not found", directory.ErrProcedureNotFound, http.StatusNotFound, "procedure_not_found"},
		{"booking not found", scheduling.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
		{"conflict", &scheduling.ConflictError{BookingID: collidingID}, http.StatusConflict, "schedule_conflict"},
		{"schedule busy", scheduling.ErrScheduleBusy, http.StatusConflict, "schedule_busy"},
		{"lock not acquired", redisclient.ErrLockNotAcquired, http.StatusConflict, "schedule_busy"},
		{"validation", &scheduling.ValidationError{Field: "duration_minutes", Reason: "must be positive"}, http.StatusBadRequest, "invalid_request"},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleSchedulingError(rec, tt.err)

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}

	// The conflict payload must name the colliding booking.
	rec := httptest.NewRecorder()
	handleSchedulingError(rec, &scheduling.ConflictError{BookingID: collidingID})
	require.Contains(t, decodeError(t, rec).Details, collidingID.String())
}

func TestHandleWaitingRoomErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"patient not found", directory.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
		{"entry not found", waitingroom.ErrEntryNotFound, http.StatusNotFound, "entry_not_found"},
		{"unknown state", waitingroom.ErrUnknownState, http.StatusBadRequest, "unknown_state"},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleWaitingRoomError(rec, tt.err)

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}
