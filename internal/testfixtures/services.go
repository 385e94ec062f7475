package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/calendar"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/rules"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Calendar    calendar.Calendar
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Calendar:    calendar.New(time.UTC),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// ReservationServiceDeps captures dependencies for constructing a reservation service.
type ReservationServiceDeps struct {
	Store        persistence.Store
	Limits       rules.Limits
	CancelCutoff time.Duration
	Cache        application.AvailabilityInvalidator
	Logger       *slog.Logger
}

// NewReservationService builds a reservation service wired to the factory clock and ids.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *application.ReservationService {
	return application.NewReservationService(
		deps.Store,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		application.ReservationOptions{
			Calendar:     f.Calendar,
			Limits:       deps.Limits,
			CancelCutoff: deps.CancelCutoff,
			Cache:        deps.Cache,
			Logger:       deps.Logger,
		},
	)
}

// NewAvailabilityService builds an availability view over store.
func (f *ServiceFactory) NewAvailabilityService(store persistence.Store, cache application.SnapshotStore) *application.AvailabilityService {
	return application.NewAvailabilityService(store, f.Calendar, cache, nil)
}

// NewRoomService builds a room service using the factory defaults.
func (f *ServiceFactory) NewRoomService(rooms persistence.RoomRepository) *application.RoomService {
	return application.NewRoomService(rooms, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), nil)
}

// NewUserService builds a user service using the factory defaults.
func (f *ServiceFactory) NewUserService(users persistence.UserRepository) *application.UserService {
	return application.NewUserService(users, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), nil)
}
