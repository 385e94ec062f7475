package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/calendar"
	"github.com/example/room-booking/internal/persistence"
)

// AvailabilityReader captures the reads the availability view needs.
type AvailabilityReader interface {
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
	ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error)
}

// SnapshotStore caches availability per room and date.
type SnapshotStore interface {
	Get(ctx context.Context, roomID, date string, dst any) (bool, error)
	Put(ctx context.Context, roomID, date string, value any) error
}

// AvailabilityService derives the free slots of a room on a date. It reads
// without locks, so results reflect the last committed state.
type AvailabilityService struct {
	reader   AvailabilityReader
	calendar calendar.Calendar
	cache    SnapshotStore
	logger   *slog.Logger
}

// NewAvailabilityService wires the availability view. cache may be nil.
func NewAvailabilityService(reader AvailabilityReader, cal calendar.Calendar, cache SnapshotStore, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{reader: reader, calendar: cal, cache: cache, logger: defaultLogger(logger)}
}

// Availability returns the free business-hour slots and the active
// reservations of roomID on date (YYYY-MM-DD). Weekends have no slots.
func (s *AvailabilityService) Availability(ctx context.Context, roomID, date string) (result Availability, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "Availability",
		"room_id", roomID,
		"date", date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute availability", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	day, parseErr := s.calendar.ParseDate(strings.TrimSpace(date))
	if parseErr != nil {
		err = &InputFormatError{Field: "date", Value: date}
		return
	}
	date = s.calendar.FormatDate(day)

	if s.cache != nil {
		var cached Availability
		hit, cacheErr := s.cache.Get(ctx, roomID, date, &cached)
		if cacheErr != nil {
			logger.WarnContext(ctx, "availability cache read failed", "error", cacheErr)
		}
		if hit {
			logger.DebugContext(ctx, "availability served from cache")
			return cached, nil
		}
	}

	if _, err = s.reader.GetRoom(ctx, roomID); err != nil {
		err = mapRepoError(err)
		return
	}

	dayStart := s.calendar.StartOfDay(day)
	dayEnd := s.calendar.AddDays(dayStart, 1)
	var reservations []persistence.Reservation
	reservations, err = s.reader.ListReservations(ctx, persistence.ReservationFilter{
		RoomID:       roomID,
		ActiveOnly:   true,
		EndsAfter:    &dayStart,
		StartsBefore: &dayEnd,
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	result = Availability{
		RoomID:       roomID,
		Date:         date,
		Slots:        []Slot{},
		Reservations: reservations,
	}
	if s.calendar.IsWeekday(day) {
		result.Slots = s.freeSlots(day, reservations)
	}

	if s.cache != nil {
		if cacheErr := s.cache.Put(ctx, roomID, date, result); cacheErr != nil {
			logger.WarnContext(ctx, "availability cache write failed", "error", cacheErr)
		}
	}
	return
}

// freeSlots returns the gaps between reservations, which must be ordered by
// start time, clipped to the business hours of day.
func (s *AvailabilityService) freeSlots(day time.Time, reservations []persistence.Reservation) []Slot {
	opens, closes := s.calendar.BusinessHours(day)

	slots := []Slot{}
	cursor := opens
	for _, r := range reservations {
		if !cursor.Before(closes) {
			break
		}
		if r.StartsAt.After(cursor) {
			end := r.StartsAt
			if end.After(closes) {
				end = closes
			}
			slots = append(slots, Slot{StartsAt: cursor, EndsAt: end})
		}
		if r.EndsAt.After(cursor) {
			cursor = r.EndsAt
		}
	}
	if cursor.Before(closes) {
		slots = append(slots, Slot{StartsAt: cursor, EndsAt: closes})
	}
	return slots
}
