package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

const forUpdate = " FOR UPDATE"

type transaction struct {
	q   querier
	now func() time.Time
}

var _ persistence.Tx = (*transaction)(nil)

func (t *transaction) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return getRoom(ctx, t.q, id, "")
}

func (t *transaction) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return getUser(ctx, t.q, id, "")
}

func (t *transaction) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, t.q, id, "")
}

func (t *transaction) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(ctx, t.q, filter)
}

func (t *transaction) CountActiveFutureReservations(ctx context.Context, userID string, after time.Time) (int, error) {
	return countActiveFuture(ctx, t.q, userID, after)
}

// LockRoom locks the room row and the room's active reservation rows.
func (t *transaction) LockRoom(ctx context.Context, roomID string) error {
	if _, err := getRoom(ctx, t.q, roomID, forUpdate); err != nil {
		return err
	}
	return t.lockPartition(ctx, "room_id", roomID)
}

// LockUser locks the user row and the user's active reservation rows.
func (t *transaction) LockUser(ctx context.Context, userID string) error {
	if _, err := getUser(ctx, t.q, userID, forUpdate); err != nil {
		return err
	}
	return t.lockPartition(ctx, "user_id", userID)
}

func (t *transaction) lockPartition(ctx context.Context, column, id string) error {
	rows, err := t.q.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM reservations WHERE %s = $1 AND cancelled_at IS NULL FOR UPDATE`, column), id)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	var locked string
	for rows.Next() {
		if err := rows.Scan(&locked); err != nil {
			return mapError(err)
		}
	}
	return mapError(rows.Err())
}

func (t *transaction) LockReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, t.q, id, forUpdate)
}

func (t *transaction) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if reservation.Recurring == "" {
		reservation.Recurring = persistence.RecurrenceNone
	}
	stampCreated(&reservation.CreatedAt, &reservation.UpdatedAt, t.now())

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		reservation.ID, reservation.RoomID, reservation.UserID, reservation.Title,
		reservation.StartsAt, reservation.EndsAt, reservation.Recurring,
		nullTime(reservation.RecurringUntil), nullString(reservation.SeriesID), nullTime(reservation.CancelledAt),
		reservation.CreatedAt, reservation.UpdatedAt,
	)
	return mapError(err)
}

func (t *transaction) CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE reservations SET cancelled_at = $1, updated_at = $1 WHERE id = $2 AND cancelled_at IS NULL`,
		cancelledAt, id,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("postgres: reservation %s: %w", id, persistence.ErrNotFound)
	}
	return nil
}
