package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type transaction struct {
	q      querier
	mapper *ErrorMapper
	now    func() time.Time
}

var _ persistence.Tx = (*transaction)(nil)

func (t *transaction) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return getRoom(ctx, t.q, t.mapper, id)
}

func (t *transaction) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return getUser(ctx, t.q, t.mapper, id)
}

func (t *transaction) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, t.q, t.mapper, id)
}

func (t *transaction) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(ctx, t.q, t.mapper, filter)
}

func (t *transaction) CountActiveFutureReservations(ctx context.Context, userID string, after time.Time) (int, error) {
	return countActiveFuture(ctx, t.q, t.mapper, userID, after)
}

// The IMMEDIATE transaction already holds the database write lock, so the
// lock methods only have to confirm the row exists.

func (t *transaction) LockRoom(ctx context.Context, roomID string) error {
	return t.exists(ctx, "SELECT 1 FROM rooms WHERE id = ?", roomID)
}

func (t *transaction) LockUser(ctx context.Context, userID string) error {
	return t.exists(ctx, "SELECT 1 FROM users WHERE id = ?", userID)
}

func (t *transaction) LockReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, t.q, t.mapper, id)
}

func (t *transaction) exists(ctx context.Context, query, id string) error {
	var one int
	if err := t.q.QueryRowContext(ctx, query, id).Scan(&one); err != nil {
		return t.mapper.MapError(err)
	}
	return nil
}

func (t *transaction) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if reservation.Recurring == "" {
		reservation.Recurring = persistence.RecurrenceNone
	}
	stampCreated(&reservation.CreatedAt, &reservation.UpdatedAt, t.now())

	_, err := t.q.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.ID,
		reservation.RoomID,
		reservation.UserID,
		reservation.Title,
		formatTime(reservation.StartsAt),
		formatTime(reservation.EndsAt),
		reservation.Recurring,
		formatNullableTime(reservation.RecurringUntil),
		nullableString(reservation.SeriesID),
		formatNullableTime(reservation.CancelledAt),
		formatTime(reservation.CreatedAt),
		formatTime(reservation.UpdatedAt),
	)
	return t.mapper.MapError(err)
}

func (t *transaction) CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE reservations SET cancelled_at = ?, updated_at = ?
		WHERE id = ? AND cancelled_at IS NULL`,
		formatTime(cancelledAt), formatTime(cancelledAt), id,
	)
	if err != nil {
		return t.mapper.MapError(err)
	}
	return requireOneRow(result, id)
}

func requireOneRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return errNoRowsAffected("reservation", id)
	}
	return nil
}
