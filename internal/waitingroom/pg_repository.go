package waitingroom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pgQueries
	db DB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pgQueries: pgQueries{q: pool}, db: pool}
}

// NewPgRepositoryWithDB allows injecting a mock database for tests.
func NewPgRepositoryWithDB(db DB) *PgRepository {
	return &PgRepository{pgQueries: pgQueries{q: db}, db: db}
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txRepository{pgQueries{q: tx}}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// txRepository is already transaction-scoped; nested WithTx calls reuse it.
type txRepository struct {
	pgQueries
}

func (r *txRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	return fn(r)
}

type pgQueries struct {
	q queryer
}

func scanState(row pgx.Row) (*WaitState, error) {
	var s WaitState
	err := row.Scan(&s.ID, &s.Name, &s.DisplayOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r pgQueries) ResolveState(ctx context.Context, name string) (*WaitState, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, display_order
		FROM wait_states
		WHERE name = $1
	`, name)
	return scanState(row)
}

// RegisterState inserts a state name if it is new and returns the existing
// row otherwise, so repeated registrations never create duplicate rows.
func (r pgQueries) RegisterState(ctx context.Context, name string, displayOrder int) (*WaitState, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO wait_states (name, display_order)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, display_order
	`, name, displayOrder)
	return scanState(row)
}

func (r pgQueries) ListStates(ctx context.Context) ([]WaitState, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, display_order
		FROM wait_states
		ORDER BY display_order, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WaitState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

const entryColumns = `e.id, e.patient_id, e.day, e.state_id, ws.name, e.entry_time, e.state_changed_at, e.wait_minutes, e.has_booking, e.scheduled_time::text`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var scheduled *string

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.Day,
		&e.StateID,
		&e.StateName,
		&e.EntryTime,
		&e.StateChangedAt,
		&e.WaitMinutes,
		&e.HasBooking,
		&scheduled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	if scheduled != nil {
		t, err := scheduling.ParseClockTime(*scheduled)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled time: %w", err)
		}
		e.ScheduledTime = &t
	}

	return &e, nil
}

func (r pgQueries) GetEntryForDay(ctx context.Context, patientID uuid.UUID, day time.Time) (*Entry, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_room_entries e
		JOIN wait_states ws ON ws.id = e.state_id
		WHERE e.patient_id = $1 AND e.day = $2
	`, patientID, day.Format("2006-01-02"))
	return scanEntry(row)
}

func (r pgQueries) CreateEntry(ctx context.Context, e *Entry) (*Entry, error) {
	var scheduled *string
	if e.ScheduledTime != nil {
		s := e.ScheduledTime.String()
		scheduled = &s
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO waiting_room_entries (id, patient_id, day, state_id, entry_time, state_changed_at, wait_minutes, has_booking, scheduled_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::time)
		RETURNING id, patient_id, day, state_id, entry_time, state_changed_at, wait_minutes, has_booking, scheduled_time::text
	`, e.ID, e.PatientID, e.Day.Format("2006-01-02"), e.StateID, e.EntryTime, e.StateChangedAt,
		e.WaitMinutes, e.HasBooking, scheduled)

	created, err := scanEntryWithoutState(row)
	if err != nil {
		return nil, err
	}
	created.StateName = e.StateName
	return created, nil
}

// scanEntryWithoutState scans entry rows that lack the wait_states join; the
// caller supplies the state name.
func scanEntryWithoutState(row pgx.Row) (*Entry, error) {
	var e Entry
	var scheduled *string

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.Day,
		&e.StateID,
		&e.EntryTime,
		&e.StateChangedAt,
		&e.WaitMinutes,
		&e.HasBooking,
		&scheduled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	if scheduled != nil {
		t, err := scheduling.ParseClockTime(*scheduled)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled time: %w", err)
		}
		e.ScheduledTime = &t
	}

	return &e, nil
}

func (r pgQueries) UpdateEntryState(ctx context.Context, entryID uuid.UUID, stateID int, changedAt time.Time, waitMinutes int) (*Entry, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE waiting_room_entries e
		SET state_id = $2,
		    state_changed_at = $3,
		    wait_minutes = $4
		FROM wait_states ws
		WHERE e.id = $1 AND ws.id = $2
		RETURNING `+entryColumns+`
	`, entryID, stateID, changedAt, waitMinutes)
	return scanEntry(row)
}

func (r pgQueries) ListEntriesForDay(ctx context.Context, day time.Time) ([]RosterEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+entryColumns+`, p.name, p.surname, b.id, b.start_time::text
		FROM waiting_room_entries e
		JOIN wait_states ws ON ws.id = e.state_id
		JOIN patients p ON p.id = e.patient_id
		LEFT JOIN LATERAL (
			SELECT id, start_time
			FROM bookings
			WHERE patient_id = e.patient_id
			  AND date = e.day
			  AND status NOT IN ('cancelled', 'completed')
			ORDER BY start_time
			LIMIT 1
		) b ON true
		WHERE e.day = $1
		ORDER BY e.entry_time
	`, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RosterEntry
	for rows.Next() {
		var re RosterEntry
		var scheduled, bookingStart *string
		var bookingID *uuid.UUID

		err := rows.Scan(
			&re.ID,
			&re.PatientID,
			&re.Day,
			&re.StateID,
			&re.StateName,
			&re.EntryTime,
			&re.StateChangedAt,
			&re.WaitMinutes,
			&re.HasBooking,
			&scheduled,
			&re.PatientName,
			&re.PatientSurname,
			&bookingID,
			&bookingStart,
		)
		if err != nil {
			return nil, err
		}

		if scheduled != nil {
			t, err := scheduling.ParseClockTime(*scheduled)
			if err != nil {
				return nil, fmt.Errorf("scan scheduled time: %w", err)
			}
			re.ScheduledTime = &t
		}
		if bookingStart != nil {
			t, err := scheduling.ParseClockTime(*bookingStart)
			if err != nil {
				return nil, fmt.Errorf("scan booking start: %w", err)
			}
			re.BookingStart = &t
		}
		re.BookingID = bookingID

		result = append(result, re)
	}

	return result, rows.Err()
}

func (r pgQueries) ListStaleEntries(ctx context.Context, beforeDay time.Time) ([]Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_room_entries e
		JOIN wait_states ws ON ws.id = e.state_id
		WHERE e.day < $1
		  AND ws.name NOT IN ('completed', 'no_show')
		ORDER BY e.day, e.entry_time
	`, beforeDay.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	return result, rows.Err()
}

func (r pgQueries) InsertTransition(ctx context.Context, t TransitionRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO wait_state_transitions (entry_id, prior_state_id, new_state_id, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, t.EntryID, t.PriorStateID, t.NewStateID, nullableTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert wait state transition: %w", err)
	}

	return nil
}

func scanBookingRef(row pgx.Row) (*BookingRef, error) {
	var ref BookingRef
	var startText string

	err := row.Scan(&ref.ID, &startText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	start, err := scheduling.ParseClockTime(startText)
	if err != nil {
		return nil, fmt.Errorf("scan booking start: %w", err)
	}
	ref.Start = start

	return &ref, nil
}

// ListBookedPatientsForDay returns each patient holding a blocking booking
// on the day, paired with their earliest one.
func (r pgQueries) ListBookedPatientsForDay(ctx context.Context, day time.Time) ([]BookedPatient, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT ON (patient_id) patient_id, id, start_time::text
		FROM bookings
		WHERE date = $1
		  AND status NOT IN ('cancelled', 'completed')
		ORDER BY patient_id, start_time
	`, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookedPatient
	for rows.Next() {
		var bp BookedPatient
		var startText string

		if err := rows.Scan(&bp.PatientID, &bp.Booking.ID, &startText); err != nil {
			return nil, err
		}

		start, err := scheduling.ParseClockTime(startText)
		if err != nil {
			return nil, fmt.Errorf("scan booking start: %w", err)
		}
		bp.Booking.Start = start

		result = append(result, bp)
	}

	return result, rows.Err()
}

// SameDayBookingForPatient returns the patient's earliest blocking booking
// on the day, or nil when there is none.
func (r pgQueries) SameDayBookingForPatient(ctx context.Context, patientID uuid.UUID, day time.Time) (*BookingRef, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, start_time::text
		FROM bookings
		WHERE patient_id = $1
		  AND date = $2
		  AND status NOT IN ('cancelled', 'completed')
		ORDER BY start_time
		LIMIT 1
	`, patientID, day.Format("2006-01-02"))
	return scanBookingRef(row)
}

// BookingStart resolves an explicitly supplied booking id, scoped to the
// day so a booking on another date cannot seed today's expected time.
func (r pgQueries) BookingStart(ctx context.Context, bookingID uuid.UUID, day time.Time) (*BookingRef, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, start_time::text
		FROM bookings
		WHERE id = $1 AND date = $2
	`, bookingID, day.Format("2006-01-02"))
	return scanBookingRef(row)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
