package stats

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduling/internal/clock"
)

func newStatsFixture(t *testing.T) (pgxmock.PgxPoolIface, *Service, string, time.Time) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	svc := NewServiceWithDB(mock, clock.Fixed(now), time.UTC)

	return mock, svc, "2024-06-01", now
}

func TestGetDailyStatsEmptyDay(t *testing.T) {
	mock, svc, day, now := newStatsFixture(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(day).
		WillReturnRows(pgxmock.NewRows([]string{"count", "with_booking"}).AddRow(0, 0))

	mock.ExpectQuery("GROUP BY ws.name").
		WithArgs(day, now).
		WillReturnRows(pgxmock.NewRows([]string{"name", "count", "avg_wait"}))

	mock.ExpectQuery("FROM bookings").
		WithArgs(day).
		WillReturnRows(pgxmock.NewRows([]string{"count", "avg"}).AddRow(0, 0.0))

	stats, err := svc.GetDailyStats(context.Background())
	require.NoError(t, err)

	require.Equal(t, day, stats.Date)
	require.Zero(t, stats.TotalPatients)
	require.Zero(t, stats.AverageWaitMinutes)
	require.Equal(t, float64(DefaultConsultationMinutes), stats.AverageConsultationMinutes)

	// Canonical states are always present, zero-filled.
	for _, name := range []string{"pending", "arrived", "confirmed", "in_consultation", "completed", "no_show"} {
		count, ok := stats.StateCounts[name]
		require.True(t, ok, "missing state %q", name)
		require.Zero(t, count)
		require.Zero(t, stats.AverageWaitByState[name])
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDailyStatsWeightedAverage(t *testing.T) {
	mock, svc, day, now := newStatsFixture(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(day).
		WillReturnRows(pgxmock.NewRows([]string{"count", "with_booking"}).AddRow(5, 3))

	// 2 arrived at avg 30min, 3 confirmed at avg 10min.
	// Weighted: (30*2 + 10*3) / 5 = 18, not the per-bucket mean of 20.
	mock.ExpectQuery("GROUP BY ws.name").
		WithArgs(day, now).
		WillReturnRows(pgxmock.NewRows([]string{"name", "count", "avg_wait"}).
			AddRow("arrived", 2, 30.0).
			AddRow("confirmed", 3, 10.0))

	mock.ExpectQuery("FROM bookings").
		WithArgs(day).
		WillReturnRows(pgxmock.NewRows([]string{"count", "avg"}).AddRow(4, 35.5))

	stats, err := svc.GetDailyStats(context.Background())
	require.NoError(t, err)

	require.Equal(t, 5, stats.TotalPatients)
	require.Equal(t, 3, stats.WithBooking)
	require.Equal(t, 2, stats.WithoutBooking)

	require.Equal(t, 2, stats.StateCounts["arrived"])
	require.Equal(t, 3, stats.StateCounts["confirmed"])
	require.Zero(t, stats.StateCounts["pending"])

	require.InDelta(t, 18.0, stats.AverageWaitMinutes, 1e-9)
	require.InDelta(t, 30.0, stats.AverageWaitByState["arrived"], 1e-9)
	require.InDelta(t, 35.5, stats.AverageConsultationMinutes, 1e-9)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDailyStatsCustomStateIncluded(t *testing.T) {
	mock, svc, day, now := newStatsFixture(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(day).
		WillReturnRows(pgxmock.NewRows([]string{"count", "with_booking"}).AddRow(1, 0))

	mock.ExpectQuery("GROUP BY ws.name").
		WithArgs(day, now).
		WillReturnRows(pgxmock.NewRows([]string{"name", "count", "avg_wait"}).
			AddRow("awaiting_xray", 1, 7.0))

	mock.ExpectQuery("FROM bookings").
		WithArgs(day).
		WillReturnRows(pgxmock.NewRows([]string{"count", "avg"}).AddRow(0, 0.0))

	stats, err := svc.GetDailyStats(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, stats.StateCounts["awaiting_xray"])
	require.InDelta(t, 7.0, stats.AverageWaitMinutes, 1e-9)
}
