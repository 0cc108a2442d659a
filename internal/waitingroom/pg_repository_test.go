package waitingroom

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return mock, NewPgRepositoryWithDB(mock)
}

func TestResolveState(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("FROM wait_states").
		WithArgs("arrived").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "display_order"}).AddRow(2, "arrived", 2))

	state, err := repo.ResolveState(context.Background(), "arrived")
	require.NoError(t, err)
	require.Equal(t, 2, state.ID)
	require.Equal(t, "arrived", state.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveStateNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("FROM wait_states").
		WithArgs("mystery").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "display_order"}))

	_, err := repo.ResolveState(context.Background(), "mystery")
	require.ErrorIs(t, err, ErrStateNotFound)
}

func TestRegisterStateUpsert(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO wait_states").
		WithArgs("awaiting_xray", CustomStateOrder).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "display_order"}).AddRow(7, "awaiting_xray", 99))

	state, err := repo.RegisterState(context.Background(), "awaiting_xray", CustomStateOrder)
	require.NoError(t, err)
	require.Equal(t, 7, state.ID)
	require.Equal(t, CustomStateOrder, state.DisplayOrder)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEntryForDayNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	patient := uuid.New()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM waiting_room_entries").
		WithArgs(patient, "2024-06-01").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "patient_id", "day", "state_id", "name", "entry_time",
			"state_changed_at", "wait_minutes", "has_booking", "scheduled_time",
		}))

	_, err := repo.GetEntryForDay(context.Background(), patient, day)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM wait_states").
		WithArgs("pending").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "display_order"}).AddRow(1, "pending", 1))
	mock.ExpectCommit()

	err := repo.WithTx(context.Background(), func(tx Repository) error {
		_, err := tx.ResolveState(context.Background(), "pending")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.WithTx(context.Background(), func(Repository) error {
		return ErrStateNotFound
	})
	require.ErrorIs(t, err, ErrStateNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSameDayBookingForPatientNone(t *testing.T) {
	mock, repo := newMockRepo(t)
	patient := uuid.New()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM bookings").
		WithArgs(patient, "2024-06-01").
		WillReturnRows(pgxmock.NewRows([]string{"id", "start_time"}))

	ref, err := repo.SameDayBookingForPatient(context.Background(), patient, day)
	require.NoError(t, err)
	require.Nil(t, ref, "no booking resolves to nil, not an error")
}

func TestSameDayBookingForPatientFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	patient := uuid.New()
	bookingID := uuid.New()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM bookings").
		WithArgs(patient, "2024-06-01").
		WillReturnRows(pgxmock.NewRows([]string{"id", "start_time"}).AddRow(bookingID, "09:30:00"))

	ref, err := repo.SameDayBookingForPatient(context.Background(), patient, day)
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Equal(t, bookingID, ref.ID)
	require.Equal(t, "09:30:00", ref.Start.String())
}
