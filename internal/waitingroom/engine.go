package waitingroom

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduling/internal/clock"
	"github.com/clinicdesk/clinic-scheduling/internal/directory"
)

// Engine drives each patient's same-day visit lifecycle. Entries are
// materialized lazily the first time the roster observes a booked patient,
// and every state change is appended to the transition history.
type Engine struct {
	repo        Repository
	dir         directory.Repository
	clock       clock.Clock
	loc         *time.Location
	allowCustom bool
	logger      zerolog.Logger
}

func NewEngine(repo Repository, dir directory.Repository, clk clock.Clock, loc *time.Location, allowCustom bool, logger zerolog.Logger) *Engine {
	return &Engine{
		repo:        repo,
		dir:         dir,
		clock:       clk,
		loc:         loc,
		allowCustom: allowCustom,
		logger:      logger,
	}
}

// Today returns the current calendar day in the configured clinic timezone.
func (e *Engine) Today() time.Time {
	now := e.clock.Now().In(e.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
}

// Roster returns the day's waiting-room list. Booked patients lacking an
// entry get one synthesized in state pending before the roster is read back,
// all inside one transaction so the caller sees its own writes. With showAll
// false only patients holding a same-day booking are returned.
func (e *Engine) Roster(ctx context.Context, showAll bool) ([]RosterEntry, error) {
	day := e.Today()
	now := e.clock.Now()

	var roster []RosterEntry

	err := e.repo.WithTx(ctx, func(tx Repository) error {
		booked, err := tx.ListBookedPatientsForDay(ctx, day)
		if err != nil {
			return fmt.Errorf("list booked patients: %w", err)
		}

		entries, err := tx.ListEntriesForDay(ctx, day)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}

		have := make(map[uuid.UUID]bool, len(entries))
		for _, re := range entries {
			have[re.PatientID] = true
		}

		created := 0
		for _, bp := range booked {
			if have[bp.PatientID] {
				continue
			}

			pending, err := tx.ResolveState(ctx, StatePending)
			if err != nil {
				return fmt.Errorf("resolve pending state: %w", err)
			}

			scheduled := bp.Booking.Start
			entry := &Entry{
				ID:             uuid.New(),
				PatientID:      bp.PatientID,
				Day:            day,
				StateID:        pending.ID,
				StateName:      pending.Name,
				EntryTime:      now,
				StateChangedAt: now,
				HasBooking:     true,
				ScheduledTime:  &scheduled,
			}
			if _, err := tx.CreateEntry(ctx, entry); err != nil {
				return fmt.Errorf("materialize entry for patient %s: %w", bp.PatientID, err)
			}
			created++
		}

		if created > 0 {
			e.logger.Debug().Int("count", created).Msg("materialized pending waiting-room entries")
			entries, err = tx.ListEntriesForDay(ctx, day)
			if err != nil {
				return fmt.Errorf("reread entries: %w", err)
			}
		}

		if !showAll {
			filtered := entries[:0]
			for _, re := range entries {
				if re.BookingID != nil {
					filtered = append(filtered, re)
				}
			}
			entries = filtered
		}

		roster = entries
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range roster {
		roster[i].WaitMinutes = roster[i].EffectiveWaitMinutes(now)
	}

	return roster, nil
}

// SetState transitions one patient's entry for today, creating the entry
// first when the patient has not been observed yet. Every call appends one
// transition record.
func (e *Engine) SetState(ctx context.Context, patientID uuid.UUID, stateName string, bookingID *uuid.UUID) (*TransitionResult, error) {
	ok, err := e.dir.PatientExists(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if !ok {
		return nil, directory.ErrPatientNotFound
	}

	// State registration stays outside the transaction: a registered name
	// survives even when the transition itself fails.
	state, err := e.resolveOrRegister(ctx, stateName)
	if err != nil {
		return nil, err
	}

	var result *TransitionResult

	err = e.repo.WithTx(ctx, func(tx Repository) error {
		res, err := e.applyState(ctx, tx, patientID, state, bookingID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// BulkSetState applies a batch of state changes. All target names are
// resolved (and registered) up front; per-patient failures are collected
// into the result and do not abort the remaining items.
func (e *Engine) BulkSetState(ctx context.Context, changes map[uuid.UUID]string) (*BulkResult, error) {
	result := &BulkResult{}

	states := make(map[string]*WaitState, len(changes))
	for _, name := range changes {
		if _, done := states[name]; done {
			continue
		}
		state, err := e.resolveOrRegister(ctx, name)
		if err != nil {
			if errors.Is(err, ErrUnknownState) {
				states[name] = nil
				continue
			}
			return nil, err
		}
		states[name] = state
	}

	// Deterministic application order.
	ids := make([]uuid.UUID, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	err := e.repo.WithTx(ctx, func(tx Repository) error {
		for _, patientID := range ids {
			name := changes[patientID]

			state := states[name]
			if state == nil {
				result.Errors = append(result.Errors, fmt.Sprintf("patient %s: unknown state %q", patientID, name))
				continue
			}

			ok, err := e.dir.PatientExists(ctx, patientID)
			if err != nil {
				return fmt.Errorf("load patient %s: %w", patientID, err)
			}
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("patient %s not found", patientID))
				continue
			}

			if _, err := e.applyState(ctx, tx, patientID, state, nil); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("patient %s: %v", patientID, err))
				continue
			}

			result.UpdatedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// SweepStale marks non-terminal entries from previous days as no_show,
// recording a transition for each. Intended for the periodic worker.
func (e *Engine) SweepStale(ctx context.Context) (int, error) {
	today := e.Today()
	now := e.clock.Now()

	noShow, err := e.resolveOrRegister(ctx, StateNoShow)
	if err != nil {
		return 0, err
	}

	swept := 0

	err = e.repo.WithTx(ctx, func(tx Repository) error {
		stale, err := tx.ListStaleEntries(ctx, today)
		if err != nil {
			return fmt.Errorf("list stale entries: %w", err)
		}

		for _, entry := range stale {
			wait := entry.EffectiveWaitMinutes(entry.StateChangedAt)
			if _, err := tx.UpdateEntryState(ctx, entry.ID, noShow.ID, now, wait); err != nil {
				return fmt.Errorf("sweep entry %s: %w", entry.ID, err)
			}

			prior := entry.StateID
			if err := tx.InsertTransition(ctx, TransitionRecord{
				EntryID:      entry.ID,
				PriorStateID: &prior,
				NewStateID:   noShow.ID,
				CreatedAt:    now,
			}); err != nil {
				return fmt.Errorf("record sweep transition: %w", err)
			}

			swept++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		e.logger.Info().Int("count", swept).Msg("swept stale waiting-room entries to no_show")
	}

	return swept, nil
}

// States lists the current state lookup, canonical and custom.
func (e *Engine) States(ctx context.Context) ([]WaitState, error) {
	return e.repo.ListStates(ctx)
}

func (e *Engine) applyState(ctx context.Context, tx Repository, patientID uuid.UUID, state *WaitState, bookingID *uuid.UUID) (*TransitionResult, error) {
	day := e.Today()
	now := e.clock.Now()

	entry, err := tx.GetEntryForDay(ctx, patientID, day)
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		return nil, fmt.Errorf("load entry: %w", err)
	}

	if entry != nil {
		priorID := entry.StateID
		priorName := entry.StateName

		wait := int(now.Sub(entry.EntryTime).Minutes())
		if wait < 0 {
			wait = 0
		}

		updated, err := tx.UpdateEntryState(ctx, entry.ID, state.ID, now, wait)
		if err != nil {
			return nil, fmt.Errorf("update entry state: %w", err)
		}

		if err := tx.InsertTransition(ctx, TransitionRecord{
			EntryID:      entry.ID,
			PriorStateID: &priorID,
			NewStateID:   state.ID,
			CreatedAt:    now,
		}); err != nil {
			return nil, fmt.Errorf("record transition: %w", err)
		}

		return &TransitionResult{
			Entry:      updated,
			PriorState: &priorName,
			NewState:   state.Name,
		}, nil
	}

	// First observation of this patient today: create the entry, seeding
	// the expected time from the supplied or looked-up same-day booking.
	var ref *BookingRef
	if bookingID != nil {
		ref, err = tx.BookingStart(ctx, *bookingID, day)
	} else {
		ref, err = tx.SameDayBookingForPatient(ctx, patientID, day)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve same-day booking: %w", err)
	}

	newEntry := &Entry{
		ID:             uuid.New(),
		PatientID:      patientID,
		Day:            day,
		StateID:        state.ID,
		StateName:      state.Name,
		EntryTime:      now,
		StateChangedAt: now,
	}
	if ref != nil {
		start := ref.Start
		newEntry.HasBooking = true
		newEntry.ScheduledTime = &start
	}

	created, err := tx.CreateEntry(ctx, newEntry)
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}

	if err := tx.InsertTransition(ctx, TransitionRecord{
		EntryID:      created.ID,
		PriorStateID: nil,
		NewStateID:   state.ID,
		CreatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("record transition: %w", err)
	}

	return &TransitionResult{
		Entry:      created,
		PriorState: nil,
		NewState:   state.Name,
	}, nil
}

func (e *Engine) resolveOrRegister(ctx context.Context, name string) (*WaitState, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownState)
	}

	state, err := e.repo.ResolveState(ctx, name)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrStateNotFound) {
		return nil, fmt.Errorf("resolve state: %w", err)
	}

	if !e.allowCustom && !IsCanonical(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, name)
	}

	state, err = e.repo.RegisterState(ctx, name, DisplayOrderFor(name))
	if err != nil {
		return nil, fmt.Errorf("register state: %w", err)
	}

	e.logger.Info().Str("state", state.Name).Int("order", state.DisplayOrder).Msg("registered waiting-room state")
	return state, nil
}
