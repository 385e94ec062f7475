package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/persistence"
)

var base = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	store.now = func() time.Time { return base }
	return store, mock
}

func roomRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "capacity", "floor", "has_projector", "has_whiteboard", "has_video_conference", "created_at", "updated_at"}).
		AddRow("room-1", "Orion", 8, 3, true, false, true, base, base)
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "department", "max_capacity_allowed", "is_admin", "created_at", "updated_at"}).
		AddRow("user-1", "Alice", "alice@example.com", "Sales", 10, false, base, base)
}

func reservationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "room_id", "user_id", "title", "starts_at", "ends_at", "recurring", "recurring_until", "series_id", "cancelled_at", "created_at", "updated_at"})
}

func TestStore_GetRoom(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = $1")).WithArgs("room-1").WillReturnRows(roomRows())

	room, err := store.GetRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, "Orion", room.Name)
	assert.Equal(t, 3, room.Floor)
	assert.True(t, room.Equipment.VideoConference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStore_CreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("user-2", "Bob", "alice@example.com", "", 4, false, base, base).
		WillReturnError(&pq.Error{Code: codeUniqueViolation, Constraint: "idx_users_email"})

	err := store.CreateUser(context.Background(), persistence.User{ID: "user-2", Name: "Bob", Email: " alice@example.com ", MaxCapacityAllowed: 4})
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTxLocksPartitions(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = $1 FOR UPDATE")).WithArgs("room-1").WillReturnRows(roomRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM reservations WHERE room_id = $1 AND cancelled_at IS NULL FOR UPDATE")).
		WithArgs("room-1").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-0"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 FOR UPDATE")).WithArgs("user-1").WillReturnRows(userRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM reservations WHERE user_id = $1 AND cancelled_at IS NULL FOR UPDATE")).
		WithArgs("user-1").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WithArgs("r-1", "room-1", "user-1", "Planning", base, base.Add(time.Hour), "none", nil, nil, nil, base, base).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.LockRoom(ctx, "room-1"); err != nil {
			return err
		}
		if err := tx.LockUser(ctx, "user-1"); err != nil {
			return err
		}
		return tx.CreateReservation(ctx, persistence.Reservation{
			ID: "r-1", RoomID: "room-1", UserID: "user-1", Title: "Planning",
			StartsAt: base, EndsAt: base.Add(time.Hour),
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WillReturnError(&pq.Error{Code: codeForeignKeyViolation, Constraint: "reservations_room_id_fkey"})
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx persistence.Tx) error {
		return tx.CreateReservation(ctx, persistence.Reservation{
			ID: "r-1", RoomID: "missing", UserID: "user-1", Title: "Planning",
			StartsAt: base, EndsAt: base.Add(time.Hour),
		})
	})
	assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CancelReservation(t *testing.T) {
	store, mock := newMockStore(t)
	at := base.Add(-2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = $1 FOR UPDATE")).WithArgs("r-1").
		WillReturnRows(reservationRows().AddRow("r-1", "room-1", "user-1", "Planning", base, base.Add(time.Hour), "none", nil, nil, nil, base, base))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET cancelled_at = $1")).WithArgs(at, "r-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx persistence.Tx) error {
		reservation, err := tx.LockReservation(ctx, "r-1")
		if err != nil {
			return err
		}
		assert.True(t, reservation.Active())
		return tx.CancelReservation(ctx, "r-1", at)
	})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListReservations(t *testing.T) {
	store, mock := newMockStore(t)
	from, to := base, base.Add(8*time.Hour)
	series := "series-1"
	cancelled := base.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE room_id = $1 AND cancelled_at IS NULL AND starts_at < $2 AND ends_at > $3 ORDER BY starts_at ASC, id ASC")).
		WithArgs("room-1", to, from).
		WillReturnRows(reservationRows().
			AddRow("r-1", "room-1", "user-1", "Planning", base, base.Add(time.Hour), "weekly", base.AddDate(0, 0, 21), series, nil, base, base).
			AddRow("r-2", "room-1", "user-1", "Retro", base.Add(2*time.Hour), base.Add(3*time.Hour), "none", nil, nil, cancelled, base, base))

	got, err := store.ListReservations(context.Background(), persistence.ReservationFilter{
		RoomID: "room-1", ActiveOnly: true, StartsBefore: &to, EndsAfter: &from,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].SeriesID)
	assert.Equal(t, series, *got[0].SeriesID)
	require.NotNil(t, got[0].RecurringUntil)
	assert.Nil(t, got[1].SeriesID)
	require.NotNil(t, got[1].CancelledAt)
	assert.True(t, got[1].CancelledAt.Equal(cancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CountActiveFutureReservations(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations WHERE user_id = $1 AND cancelled_at IS NULL AND starts_at > $2")).
		WithArgs("user-1", base).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.CountActiveFutureReservations(context.Background(), "user-1", base)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{codeUniqueViolation, persistence.ErrDuplicate},
		{codeForeignKeyViolation, persistence.ErrForeignKeyViolation},
		{codeCheckViolation, persistence.ErrConstraintViolation},
		{codeNotNullViolation, persistence.ErrConstraintViolation},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, mapError(&pq.Error{Code: pq.ErrorCode(tc.code)}), tc.want, tc.code)
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, mapError(other))
	assert.Nil(t, mapError(nil))
}
