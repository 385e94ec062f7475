package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const roomColumns = `id, name, capacity, floor, has_projector, has_whiteboard, has_video_conference, created_at, updated_at`

const userColumns = `id, name, email, department, max_capacity_allowed, is_admin, created_at, updated_at`

const reservationColumns = `id, room_id, user_id, title, starts_at, ends_at, recurring, recurring_until, series_id, cancelled_at, created_at, updated_at`

// CreateRoom inserts a new room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	stampCreated(&room.CreatedAt, &room.UpdatedAt, s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (`+roomColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		room.ID, room.Name, room.Capacity, room.Floor,
		room.Equipment.Projector, room.Equipment.Whiteboard, room.Equipment.VideoConference,
		room.CreatedAt, room.UpdatedAt,
	)
	return mapError(err)
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return getRoom(ctx, s.db, id, "")
}

// ListRooms returns all rooms ordered by name.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func getRoom(ctx context.Context, q querier, id, suffix string) (persistence.Room, error) {
	room, err := scanRoom(q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`+suffix, id))
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	err := row.Scan(
		&room.ID, &room.Name, &room.Capacity, &room.Floor,
		&room.Equipment.Projector, &room.Equipment.Whiteboard, &room.Equipment.VideoConference,
		&room.CreatedAt, &room.UpdatedAt,
	)
	return room, err
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.MaxCapacityAllowed <= 0 {
		return persistence.ErrConstraintViolation
	}
	stampCreated(&user.CreatedAt, &user.UpdatedAt, s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Name, strings.TrimSpace(user.Email), user.Department,
		user.MaxCapacityAllowed, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	)
	return mapError(err)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return getUser(ctx, s.db, id, "")
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	return user, nil
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]persistence.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func getUser(ctx context.Context, q querier, id, suffix string) (persistence.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`+suffix, id))
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	return user, nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var user persistence.User
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Department,
		&user.MaxCapacityAllowed, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, s.db, id, "")
}

// ListReservations returns the reservations matching filter ordered by start time.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(ctx, s.db, filter)
}

// CountActiveFutureReservations counts the user's active reservations starting after the instant.
func (s *Store) CountActiveFutureReservations(ctx context.Context, userID string, after time.Time) (int, error) {
	return countActiveFuture(ctx, s.db, userID, after)
}

func getReservation(ctx context.Context, q querier, id, suffix string) (persistence.Reservation, error) {
	reservation, err := scanReservation(q.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`+suffix, id))
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return reservation, nil
}

// buildReservationQuery renders the SELECT for filter with positional arguments.
func buildReservationQuery(filter persistence.ReservationFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.RoomID != "" {
		add("room_id = $%d", filter.RoomID)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.SeriesID != "" {
		add("series_id = $%d", filter.SeriesID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "cancelled_at IS NULL")
	}
	if filter.StartsAfter != nil {
		add("starts_at > $%d", *filter.StartsAfter)
	}
	if filter.StartsBefore != nil {
		add("starts_at < $%d", *filter.StartsBefore)
	}
	if filter.EndsAfter != nil {
		add("ends_at > $%d", *filter.EndsAfter)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query + " ORDER BY starts_at ASC, id ASC", args
}

func listReservations(ctx context.Context, q querier, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query, args := buildReservationQuery(filter)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	reservations := make([]persistence.Reservation, 0)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}

func countActiveFuture(ctx context.Context, q querier, userID string, after time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = $1 AND cancelled_at IS NULL AND starts_at > $2`,
		userID, after,
	).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation    persistence.Reservation
		recurringUntil sql.NullTime
		seriesID       sql.NullString
		cancelledAt    sql.NullTime
	)
	err := row.Scan(
		&reservation.ID, &reservation.RoomID, &reservation.UserID, &reservation.Title,
		&reservation.StartsAt, &reservation.EndsAt, &reservation.Recurring,
		&recurringUntil, &seriesID, &cancelledAt,
		&reservation.CreatedAt, &reservation.UpdatedAt,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}
	if recurringUntil.Valid {
		until := recurringUntil.Time
		reservation.RecurringUntil = &until
	}
	if seriesID.Valid {
		id := seriesID.String
		reservation.SeriesID = &id
	}
	if cancelledAt.Valid {
		at := cancelledAt.Time
		reservation.CancelledAt = &at
	}
	return reservation, nil
}

func stampCreated(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now.UTC()
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
