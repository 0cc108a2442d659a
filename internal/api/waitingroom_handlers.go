package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/directory"
	"github.com/clinicdesk/clinic-scheduling/internal/stats"
	"github.com/clinicdesk/clinic-scheduling/internal/waitingroom"
)

func rosterHandler(engine *waitingroom.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showAll := r.URL.Query().Get("show_all") == "true"

		roster, err := engine.Roster(r.Context(), showAll)
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}

		resp := make([]RosterEntryResponse, 0, len(roster))
		for _, re := range roster {
			resp = append(resp, toRosterEntryResponse(re))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func setStateHandler(engine *waitingroom.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientID must be a valid UUID")
			return
		}

		var req SetStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		var bookingID *uuid.UUID
		if req.BookingID != nil {
			id := uuid.MustParse(*req.BookingID)
			bookingID = &id
		}

		result, err := engine.SetState(r.Context(), patientID, req.State, bookingID)
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TransitionResponse{
			EntryID:     result.Entry.ID,
			PatientID:   result.Entry.PatientID,
			PriorState:  result.PriorState,
			NewState:    result.NewState,
			WaitMinutes: result.Entry.WaitMinutes,
		})
	}
}

func bulkStateHandler(engine *waitingroom.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		changes := make(map[uuid.UUID]string, len(req.Changes))
		var parseErrors []string
		for rawID, state := range req.Changes {
			id, err := uuid.Parse(rawID)
			if err != nil {
				parseErrors = append(parseErrors, fmt.Sprintf("patient %s: invalid UUID", rawID))
				continue
			}
			changes[id] = state
		}

		result, err := engine.BulkSetState(r.Context(), changes)
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}

		resp := BulkStateResponse{
			UpdatedCount: result.UpdatedCount,
			Errors:       append(parseErrors, result.Errors...),
		}
		if resp.Errors == nil {
			resp.Errors = []string{}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listStatesHandler(engine *waitingroom.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states, err := engine.States(r.Context())
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}

		resp := make([]WaitStateResponse, 0, len(states))
		for _, s := range states {
			resp = append(resp, WaitStateResponse{ID: s.ID, Name: s.Name, DisplayOrder: s.DisplayOrder})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func dailyStatsHandler(svc *stats.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		daily, err := svc.GetDailyStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, daily)
	}
}

func handleWaitingRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, waitingroom.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry_not_found", err.Error())
	case errors.Is(err, waitingroom.ErrUnknownState):
		writeError(w, http.StatusBadRequest, "unknown_state", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
