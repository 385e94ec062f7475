package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/calendar"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/rules"
)

// DefaultCancelCutoff is how long before its start a reservation stops being cancellable.
const DefaultCancelCutoff = 60 * time.Minute

// AvailabilityInvalidator drops cached availability snapshots after writes.
type AvailabilityInvalidator interface {
	Invalidate(ctx context.Context, roomID string, dates ...string) error
}

// ReservationOptions tunes the rule bounds and collaborators of a ReservationService.
type ReservationOptions struct {
	Calendar       calendar.Calendar
	Limits         rules.Limits
	CancelCutoff   time.Duration
	MaxOccurrences int
	Cache          AvailabilityInvalidator
	Logger         *slog.Logger
}

// ReservationService admits, cancels, and lists reservations.
type ReservationService struct {
	store        persistence.Store
	calendar     calendar.Calendar
	rules        *rules.Engine
	recurrence   *recurrence.Engine
	cancelCutoff time.Duration
	cache        AvailabilityInvalidator
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(store persistence.Store, idGenerator func() string, now func() time.Time, opts ReservationOptions) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if opts.CancelCutoff <= 0 {
		opts.CancelCutoff = DefaultCancelCutoff
	}
	return &ReservationService{
		store:        store,
		calendar:     opts.Calendar,
		rules:        rules.NewEngine(opts.Calendar, opts.Limits),
		recurrence:   recurrence.NewEngine(opts.Calendar, opts.MaxOccurrences),
		cancelCutoff: opts.CancelCutoff,
		cache:        opts.Cache,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(opts.Logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// Create admits a single reservation. The room and user partitions are locked
// for the whole validate-and-insert section.
func (s *ReservationService) Create(ctx context.Context, params CreateReservationParams) (reservation persistence.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	input := params.Input
	if input.UserID == "" {
		input.UserID = params.Principal.UserID
	}

	logger := s.loggerWith(ctx, "Create",
		"principal_id", params.Principal.UserID,
		"room_id", input.RoomID,
		"user_id", input.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	if err = authorizeFor(params.Principal, input.UserID); err != nil {
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	now := s.now()
	candidate := persistence.Reservation{
		ID:        s.idGenerator(),
		RoomID:    input.RoomID,
		UserID:    input.UserID,
		Title:     strings.TrimSpace(input.Title),
		StartsAt:  input.StartsAt,
		EndsAt:    input.EndsAt,
		Recurring: persistence.RecurrenceNone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withRoomAndUserLock(ctx, input.RoomID, input.UserID, func(ctx context.Context, tx persistence.Tx) error {
		state, err := s.loadState(ctx, tx, input.RoomID, input.UserID, input.StartsAt, input.EndsAt, now)
		if err != nil {
			return err
		}

		violations := s.rules.Evaluate(toCandidate(candidate), state)
		if len(violations) > 0 {
			return &ValidationError{Violations: violations}
		}
		return tx.CreateReservation(ctx, candidate)
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	reservation = candidate
	s.invalidate(ctx, logger, reservation)
	return
}

// CreateRecurring admits every occurrence of a recurring request or none.
//
// The batch is validated against persisted state without locks first. Only an
// admissible batch proceeds to the locked section, where it is validated again
// against fresh state and inserted with a shared series id. Violations found
// only on the second pass are reported as a concurrency conflict.
func (s *ReservationService) CreateRecurring(ctx context.Context, params CreateRecurringParams) (reservations []persistence.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	input := params.Input
	if input.UserID == "" {
		input.UserID = params.Principal.UserID
	}

	logger := s.loggerWith(ctx, "CreateRecurring",
		"principal_id", params.Principal.UserID,
		"room_id", input.RoomID,
		"user_id", input.UserID,
		"recurring", input.Recurring,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create recurring reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("occurrence_count", len(reservations)).InfoContext(ctx, "recurring reservations created")
	}()

	if err = authorizeFor(params.Principal, input.UserID); err != nil {
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	freq, occurrences, vErr := s.expand(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	first, last := occurrences[0], occurrences[len(occurrences)-1]

	// Unlocked pass over committed state.
	var state rules.State
	state, err = s.loadState(ctx, s.store, input.RoomID, input.UserID, first.Start, last.End, now)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if violations := s.validateBatch(input, occurrences, state); len(violations) > 0 {
		err = &ValidationError{Violations: violations}
		return
	}

	seriesID := s.idGenerator()
	until := s.calendar.StartOfDay(*input.RecurringUntil)
	batch := make([]persistence.Reservation, len(occurrences))
	for i, occurrence := range occurrences {
		batch[i] = persistence.Reservation{
			ID:             s.idGenerator(),
			RoomID:         input.RoomID,
			UserID:         input.UserID,
			Title:          strings.TrimSpace(input.Title),
			StartsAt:       occurrence.Start,
			EndsAt:         occurrence.End,
			Recurring:      freq.String(),
			RecurringUntil: &until,
			SeriesID:       &seriesID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	err = s.withRoomAndUserLock(ctx, input.RoomID, input.UserID, func(ctx context.Context, tx persistence.Tx) error {
		fresh, err := s.loadState(ctx, tx, input.RoomID, input.UserID, first.Start, last.End, now)
		if err != nil {
			return err
		}
		if violations := s.validateBatch(input, occurrences, fresh); len(violations) > 0 {
			return &ValidationError{Violations: violations, Conflict: true}
		}
		for _, reservation := range batch {
			if err := tx.CreateReservation(ctx, reservation); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	reservations = batch
	s.invalidate(ctx, logger, batch...)
	return
}

// expand checks the recurrence fields and generates the occurrences. Problems
// with the seed interval or the recurrence itself are reported before any
// state is read.
func (s *ReservationService) expand(input RecurringInput) (recurrence.Frequency, []recurrence.Occurrence, *ValidationError) {
	vErr := &ValidationError{}

	for _, v := range s.rules.Evaluate(rules.Candidate{Title: input.Title, StartsAt: input.StartsAt, EndsAt: input.EndsAt}, rules.State{}) {
		if v.Rule == rules.RulePresence || v.Rule == rules.RuleOrdering {
			vErr.merge(v)
		}
	}

	freq, err := recurrence.ParseFrequency(input.Recurring)
	if err != nil {
		vErr.add(rules.RuleRecurrence, "recurring must be daily or weekly")
	}
	if input.RecurringUntil == nil {
		vErr.add(rules.RuleRecurrence, "recurring_until is required")
	} else if !input.StartsAt.IsZero() && s.calendar.DateBefore(*input.RecurringUntil, input.StartsAt) {
		vErr.add(rules.RuleRecurrence, "recurring_until must not be before the first occurrence")
	}
	if vErr.HasErrors() {
		return freq, nil, vErr
	}

	occurrences, err := s.recurrence.Expand(freq, input.StartsAt, input.EndsAt, *input.RecurringUntil)
	if err != nil {
		vErr.add(rules.RuleRecurrence, strings.TrimPrefix(err.Error(), "recurrence: "))
		return freq, nil, vErr
	}
	return freq, occurrences, vErr
}

// validateBatch runs the rule engine on every occurrence, then checks the
// occurrences against each other and the cumulative active limit.
func (s *ReservationService) validateBatch(input RecurringInput, occurrences []recurrence.Occurrence, state rules.State) []rules.Violation {
	var violations []rules.Violation

	series := make([]rules.Occurrence, len(occurrences))
	for i, occurrence := range occurrences {
		candidate := rules.Candidate{
			RoomID:   input.RoomID,
			UserID:   input.UserID,
			Title:    input.Title,
			StartsAt: occurrence.Start,
			EndsAt:   occurrence.End,
		}
		violations = append(violations, rules.Tag(s.rules.Evaluate(candidate, state), occurrence.Index)...)
		series[i] = rules.Occurrence{Index: occurrence.Index, RoomID: input.RoomID, Start: occurrence.Start, End: occurrence.End}
	}

	violations = append(violations, rules.SeriesConflicts(series)...)
	violations = append(violations, s.rules.SeriesLimit(state.User, state.ActiveFutureCount, len(occurrences))...)
	return violations
}

// Cancel marks a reservation cancelled. Only the owner or an administrator may
// cancel, and only before the cutoff ahead of its start.
func (s *ReservationService) Cancel(ctx context.Context, params CancelReservationParams) (reservation persistence.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Cancel",
		"principal_id", params.Principal.UserID,
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation cancelled")
	}()

	err = s.store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		current, err := tx.LockReservation(ctx, params.ReservationID)
		if err != nil {
			return err
		}
		if err := authorizeFor(params.Principal, current.UserID); err != nil {
			return err
		}
		if !current.Active() {
			return ErrAlreadyCancelled
		}

		now := s.now()
		if !now.Before(current.StartsAt.Add(-s.cancelCutoff)) {
			return ErrTooLateToCancel
		}
		if err := tx.CancelReservation(ctx, current.ID, now); err != nil {
			return err
		}

		current.CancelledAt = &now
		current.UpdatedAt = now
		reservation = current
		return nil
	})
	if err != nil {
		reservation = persistence.Reservation{}
		err = mapRepoError(err)
		return
	}

	s.invalidate(ctx, logger, reservation)
	return
}

// Get returns a reservation by id.
func (s *ReservationService) Get(ctx context.Context, principal Principal, id string) (persistence.Reservation, error) {
	if s == nil {
		return persistence.Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	if s.store == nil {
		return persistence.Reservation{}, ErrNotFound
	}

	reservation, err := s.store.GetReservation(ctx, id)
	if err != nil {
		err = mapRepoError(err)
		if !errors.Is(err, ErrNotFound) {
			s.loggerWith(ctx, "Get", "principal_id", principal.UserID, "reservation_id", id).
				ErrorContext(ctx, "failed to load reservation", "error", err, "error_kind", ErrorKind(err))
		}
		return persistence.Reservation{}, err
	}
	return reservation, nil
}

// List returns reservations ordered by start time.
func (s *ReservationService) List(ctx context.Context, params ListReservationsParams) (reservations []persistence.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.store == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "List",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(reservations)).DebugContext(ctx, "reservations listed")
	}()

	reservations, err = s.store.ListReservations(ctx, persistence.ReservationFilter{
		RoomID:     params.RoomID,
		UserID:     params.UserID,
		SeriesID:   params.SeriesID,
		ActiveOnly: params.ActiveOnly,
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// withRoomAndUserLock runs fn in one transaction holding the room partition
// lock and then the user partition lock. Every write path that depends on the
// overlap, capacity, or active-limit rules goes through here, and the fixed
// order keeps concurrent writers from deadlocking.
func (s *ReservationService) withRoomAndUserLock(ctx context.Context, roomID, userID string, fn persistence.TxFunc) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.LockRoom(ctx, roomID); err != nil {
			return err
		}
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

// stateReader is satisfied by both the store and an open transaction.
type stateReader interface {
	persistence.ReservationReader
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// loadState gathers the rule inputs: room, user, the room's active
// reservations intersecting [from, to), and the user's active future count.
func (s *ReservationService) loadState(ctx context.Context, reader stateReader, roomID, userID string, from, to, now time.Time) (rules.State, error) {
	var state rules.State

	room, err := reader.GetRoom(ctx, roomID)
	if err != nil {
		return state, err
	}
	user, err := reader.GetUser(ctx, userID)
	if err != nil {
		return state, err
	}
	state.Room = &rules.Room{ID: room.ID, Capacity: room.Capacity}
	state.User = &rules.User{ID: user.ID, MaxCapacityAllowed: user.MaxCapacityAllowed, IsAdmin: user.IsAdmin}

	if !from.IsZero() && to.After(from) {
		existing, err := reader.ListReservations(ctx, persistence.ReservationFilter{
			RoomID:       roomID,
			ActiveOnly:   true,
			EndsAfter:    &from,
			StartsBefore: &to,
		})
		if err != nil {
			return state, err
		}
		state.RoomReservations = make([]rules.Reservation, len(existing))
		for i, r := range existing {
			state.RoomReservations[i] = rules.Reservation{ID: r.ID, RoomID: r.RoomID, Start: r.StartsAt, End: r.EndsAt}
		}
	}

	state.ActiveFutureCount, err = reader.CountActiveFutureReservations(ctx, userID, now)
	if err != nil {
		return state, err
	}
	return state, nil
}

// invalidate drops cached availability for every date the reservations touch.
// Failures are logged; the snapshot TTL bounds staleness.
func (s *ReservationService) invalidate(ctx context.Context, logger *slog.Logger, reservations ...persistence.Reservation) {
	if s.cache == nil || len(reservations) == 0 {
		return
	}

	seen := make(map[string]struct{})
	dates := make([]string, 0, len(reservations))
	for _, r := range reservations {
		for _, t := range []time.Time{r.StartsAt, r.EndsAt} {
			date := s.calendar.FormatDate(t)
			if _, ok := seen[date]; ok {
				continue
			}
			seen[date] = struct{}{}
			dates = append(dates, date)
		}
	}

	if err := s.cache.Invalidate(ctx, reservations[0].RoomID, dates...); err != nil {
		logger.WarnContext(ctx, "failed to invalidate availability cache", "error", err)
	}
}

func toCandidate(r persistence.Reservation) rules.Candidate {
	return rules.Candidate{
		ID:       r.ID,
		RoomID:   r.RoomID,
		UserID:   r.UserID,
		Title:    r.Title,
		StartsAt: r.StartsAt,
		EndsAt:   r.EndsAt,
	}
}

// authorizeFor allows the principal to act for userID when it is that user or an administrator.
func authorizeFor(principal Principal, userID string) error {
	if principal.IsAdmin {
		return nil
	}
	if principal.UserID == "" || principal.UserID != userID {
		return ErrUnauthorized
	}
	return nil
}

// mapRepoError translates persistence sentinels into service errors.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPrecondition), errors.Is(err, ErrUnauthorized):
		return err
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}
