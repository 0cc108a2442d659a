// Package stats computes read-only daily rollups over the waiting room.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduling/internal/clock"
	"github.com/clinicdesk/clinic-scheduling/internal/waitingroom"
)

// DefaultConsultationMinutes is reported when no completed booking exists
// for the day.
const DefaultConsultationMinutes = 25

// Daily is the waiting-room rollup for one calendar day.
type Daily struct {
	Date                       string             `json:"date"`
	TotalPatients              int                `json:"total_patients"`
	WithBooking                int                `json:"with_booking"`
	WithoutBooking             int                `json:"without_booking"`
	StateCounts                map[string]int     `json:"state_counts"`
	AverageWaitByState         map[string]float64 `json:"average_wait_by_state"`
	AverageWaitMinutes         float64            `json:"average_wait_minutes"`
	AverageConsultationMinutes float64            `json:"average_consultation_minutes"`
}

// DB is the subset of pgxpool.Pool the service needs. pgxmock satisfies it
// in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Service struct {
	db    DB
	clock clock.Clock
	loc   *time.Location
}

func NewService(pool *pgxpool.Pool, clk clock.Clock, loc *time.Location) *Service {
	return &Service{db: pool, clock: clk, loc: loc}
}

// NewServiceWithDB allows injecting a mock database for tests.
func NewServiceWithDB(db DB, clk clock.Clock, loc *time.Location) *Service {
	return &Service{db: db, clock: clk, loc: loc}
}

// GetDailyStats aggregates today's waiting-room entries: totals, per-state
// counts with the canonical states zero-filled, per-state average waits, an
// overall average weighted across non-empty buckets, and the average
// duration of bookings completed today.
func (s *Service) GetDailyStats(ctx context.Context) (*Daily, error) {
	now := s.clock.Now().In(s.loc)
	day := now.Format("2006-01-02")

	stats := &Daily{
		Date:               day,
		StateCounts:        make(map[string]int),
		AverageWaitByState: make(map[string]float64),
	}
	for _, name := range waitingroom.CanonicalStates() {
		stats.StateCounts[name] = 0
		stats.AverageWaitByState[name] = 0
	}

	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE has_booking)
		FROM waiting_room_entries
		WHERE day = $1
	`, day).Scan(&stats.TotalPatients, &stats.WithBooking)
	if err != nil {
		return nil, fmt.Errorf("stats: count entries: %w", err)
	}
	stats.WithoutBooking = stats.TotalPatients - stats.WithBooking

	rows, err := s.db.Query(ctx, `
		SELECT ws.name,
		       COUNT(e.id),
		       COALESCE(AVG(
		           CASE WHEN e.wait_minutes > 0 THEN e.wait_minutes::float8
		                ELSE GREATEST(EXTRACT(EPOCH FROM ($2::timestamptz - e.entry_time)) / 60.0, 0)
		           END
		       ), 0)
		FROM waiting_room_entries e
		JOIN wait_states ws ON ws.id = e.state_id
		WHERE e.day = $1
		GROUP BY ws.name
	`, day, now)
	if err != nil {
		return nil, fmt.Errorf("stats: per-state aggregates: %w", err)
	}
	defer rows.Close()

	var weightedSum float64
	var weightTotal int

	for rows.Next() {
		var name string
		var count int
		var avgWait float64

		if err := rows.Scan(&name, &count, &avgWait); err != nil {
			return nil, fmt.Errorf("stats: scan per-state row: %w", err)
		}

		stats.StateCounts[name] = count
		stats.AverageWaitByState[name] = avgWait

		weightedSum += avgWait * float64(count)
		weightTotal += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: per-state aggregates: %w", err)
	}

	// Genuine weighted average across all non-empty buckets, not the
	// last-visited bucket.
	if weightTotal > 0 {
		stats.AverageWaitMinutes = weightedSum / float64(weightTotal)
	}

	var completed int
	var avgConsult float64
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(duration_minutes::float8), 0)
		FROM bookings
		WHERE date = $1 AND status = 'completed'
	`, day).Scan(&completed, &avgConsult)
	if err != nil {
		return nil, fmt.Errorf("stats: consultation average: %w", err)
	}

	if completed > 0 {
		stats.AverageConsultationMinutes = avgConsult
	} else {
		stats.AverageConsultationMinutes = DefaultConsultationMinutes
	}

	return stats, nil
}
