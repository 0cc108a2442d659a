package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

// NewPgRepositoryWithDB allows injecting a mock database for tests.
func NewPgRepositoryWithDB(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const bookingColumns = `id, patient_id, procedure_id, date, start_time::text, duration_minutes, assigned_staff, status, notes, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var startText string
	var staff, notes *string

	err := row.Scan(
		&b.ID,
		&b.PatientID,
		&b.ProcedureID,
		&b.Date,
		&startText,
		&b.DurationMinutes,
		&staff,
		&b.Status,
		&notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	start, err := ParseClockTime(startText)
	if err != nil {
		return nil, fmt.Errorf("scan booking start time: %w", err)
	}

	b.Start = start
	b.AssignedStaff = staff
	b.Notes = notes
	return &b, nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListActiveByDate(ctx context.Context, date time.Time, f ListFilter) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE date = $1
		  AND status NOT IN ('cancelled', 'completed')`
	args := []any{date.Format("2006-01-02")}

	if f.ProcedureID != nil {
		args = append(args, *f.ProcedureID)
		query += fmt.Sprintf(" AND procedure_id = $%d", len(args))
	}
	if f.ExcludeBookingID != nil {
		args = append(args, *f.ExcludeBookingID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}

	query += " ORDER BY start_time"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *PgRepository) ListByDate(ctx context.Context, date time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date = $1
		ORDER BY start_time
	`, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO bookings (id, patient_id, procedure_id, date, start_time, duration_minutes, assigned_staff, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::time, $6, $7, $8, $9, now(), now())
		RETURNING `+bookingColumns+`
	`, b.ID, b.PatientID, b.ProcedureID, b.Date.Format("2006-01-02"), b.Start.String(),
		b.DurationMinutes, b.AssignedStaff, b.Status, b.Notes)

	return scanBooking(row)
}

func (r *PgRepository) UpdateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET procedure_id = $2,
		    date = $3,
		    start_time = $4::time,
		    duration_minutes = $5,
		    assigned_staff = $6,
		    status = $7,
		    notes = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, b.ID, b.ProcedureID, b.Date.Format("2006-01-02"), b.Start.String(),
		b.DurationMinutes, b.AssignedStaff, b.Status, b.Notes)

	return scanBooking(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev BookingEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO booking_events (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
