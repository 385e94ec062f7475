package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const roomColumns = `id, name, capacity, floor, has_projector, has_whiteboard, has_video_conference, created_at, updated_at`

const userColumns = `id, name, email, department, max_capacity_allowed, is_admin, created_at, updated_at`

const reservationColumns = `id, room_id, user_id, title, starts_at, ends_at, recurring, recurring_until,
	series_id, cancelled_at, created_at, updated_at`

// --- RoomRepository implementation ---

// CreateRoom inserts a new room. CreatedAt and UpdatedAt default to now.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	stampCreated(&room.CreatedAt, &room.UpdatedAt, s.now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID,
		room.Name,
		room.Capacity,
		room.Floor,
		room.Equipment.Projector,
		room.Equipment.Whiteboard,
		room.Equipment.VideoConference,
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	return s.mapper.MapError(err)
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return getRoom(ctx, s.db, s.mapper, id)
}

// ListRooms returns all rooms ordered by name.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, s.mapper.MapError(err)
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

func getRoom(ctx context.Context, q querier, mapper *ErrorMapper, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	room, err := scanRoom(q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if err != nil {
		return persistence.Room{}, mapper.MapError(err)
	}
	return room, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room             persistence.Room
		created, updated string
	)
	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Capacity,
		&room.Floor,
		&room.Equipment.Projector,
		&room.Equipment.Whiteboard,
		&room.Equipment.VideoConference,
		&created,
		&updated,
	)
	if err != nil {
		return persistence.Room{}, err
	}
	if room.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

// --- UserRepository implementation ---

// CreateUser inserts a new user. Emails are unique ignoring case.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.MaxCapacityAllowed <= 0 {
		return persistence.ErrConstraintViolation
	}
	stampCreated(&user.CreatedAt, &user.UpdatedAt, s.now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		strings.TrimSpace(user.Email),
		user.Department,
		user.MaxCapacityAllowed,
		user.IsAdmin,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	return s.mapper.MapError(err)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return getUser(ctx, s.db, s.mapper, id)
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`, strings.TrimSpace(email)))
	if err != nil {
		return persistence.User{}, s.mapper.MapError(err)
	}
	return user, nil
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, s.mapper.MapError(err)
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

func getUser(ctx context.Context, q querier, mapper *ErrorMapper, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	user, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return persistence.User{}, mapper.MapError(err)
	}
	return user, nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user             persistence.User
		created, updated string
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Department,
		&user.MaxCapacityAllowed,
		&user.IsAdmin,
		&created,
		&updated,
	)
	if err != nil {
		return persistence.User{}, err
	}
	if user.CreatedAt, err = parseTime(created); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// --- ReservationReader implementation ---

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, s.db, s.mapper, id)
}

// ListReservations returns the reservations matching filter ordered by start time.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(ctx, s.db, s.mapper, filter)
}

// CountActiveFutureReservations counts the user's active reservations starting after the instant.
func (s *Store) CountActiveFutureReservations(ctx context.Context, userID string, after time.Time) (int, error) {
	return countActiveFuture(ctx, s.db, s.mapper, userID, after)
}

func getReservation(ctx context.Context, q querier, mapper *ErrorMapper, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	reservation, err := scanReservation(q.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return persistence.Reservation{}, mapper.MapError(err)
	}
	return reservation, nil
}

func listReservations(ctx context.Context, q querier, mapper *ErrorMapper, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.SeriesID != "" {
		conditions = append(conditions, "series_id = ?")
		args = append(args, filter.SeriesID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "cancelled_at IS NULL")
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "starts_at > ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, "starts_at < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "ends_at > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY starts_at ASC, id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapper.MapError(err)
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
		return nil, mapper.MapError(err)
	}
	return reservations, nil
}

func countActiveFuture(ctx context.Context, q querier, mapper *ErrorMapper, userID string, after time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE user_id = ? AND cancelled_at IS NULL AND starts_at > ?`,
		userID, formatTime(after),
	).Scan(&count)
	if err != nil {
		return 0, mapper.MapError(err)
	}
	return count, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation                 persistence.Reservation
		startsAt, endsAt            string
		created, updated            string
		recurringUntil, cancelledAt sql.NullString
		seriesID                    sql.NullString
	)
	err := row.Scan(
		&reservation.ID,
		&reservation.RoomID,
		&reservation.UserID,
		&reservation.Title,
		&startsAt,
		&endsAt,
		&reservation.Recurring,
		&recurringUntil,
		&seriesID,
		&cancelledAt,
		&created,
		&updated,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	for _, field := range []struct {
		dst *time.Time
		src string
	}{
		{&reservation.StartsAt, startsAt},
		{&reservation.EndsAt, endsAt},
		{&reservation.CreatedAt, created},
		{&reservation.UpdatedAt, updated},
	} {
		if *field.dst, err = parseTime(field.src); err != nil {
			return persistence.Reservation{}, err
		}
	}
	if reservation.RecurringUntil, err = parseNullableTime(recurringUntil); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CancelledAt, err = parseNullableTime(cancelledAt); err != nil {
		return persistence.Reservation{}, err
	}
	if seriesID.Valid {
		id := seriesID.String
		reservation.SeriesID = &id
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

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func errNoRowsAffected(kind, id string) error {
	return fmt.Errorf("sqlite: %s %s: %w", kind, id, persistence.ErrNotFound)
}
