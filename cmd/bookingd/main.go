package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/cache"
	"github.com/example/room-booking/internal/calendar"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/postgres"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/rules"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], logger); err != nil {
		logger.Error("booking service stopped", "error", err)
		os.Exit(1)
	}
}

type options struct {
	envFile     string
	migrateOnly bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("bookingd", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading BOOKING_* variables")
	fs.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, logger *slog.Logger) error {
	opts, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg, err := config.LoadFile(opts.envFile)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if opts.migrateOnly {
		logger.InfoContext(ctx, "migrations applied", "driver", cfg.DBDriver)
		return nil
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.InfoContext(ctx, "booking API listening", "addr", server.Addr, "driver", cfg.DBDriver, "cache", cfg.CacheEnabled())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// app owns the wired services and the resources that must be released on exit.
type app struct {
	handler http.Handler
	store   persistence.Store
	closers []io.Closer
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{store: store, closers: []io.Closer{store}, logger: logger}

	cal := calendar.New(cfg.Location)
	now := time.Now

	var (
		invalidator application.AvailabilityInvalidator
		snapshots   application.SnapshotStore
	)
	if cfg.CacheEnabled() {
		kv := cache.NewRedisKVStore(cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
		if err := kv.Ping(ctx); err != nil {
			// Availability is served uncached while Redis is unreachable.
			logger.WarnContext(ctx, "availability cache unreachable, continuing without it", "addr", cfg.RedisAddr, "error", err)
			_ = kv.Close()
		} else {
			a.closers = append(a.closers, kv)
			snapshot := cache.NewSnapshotCache(kv, "booking:availability", cfg.AvailabilityCacheTTL)
			invalidator, snapshots = snapshot, snapshot
		}
	}

	reservations := application.NewReservationService(store, uuid.NewString, now, application.ReservationOptions{
		Calendar:     cal,
		Limits:       rules.Limits{MaxActive: cfg.MaxActiveReservations},
		CancelCutoff: cfg.CancelCutoff,
		Cache:        invalidator,
		Logger:       logger,
	})
	availability := application.NewAvailabilityService(store, cal, snapshots, logger)
	rooms := application.NewRoomService(store, uuid.NewString, now, logger)
	users := application.NewUserService(store, uuid.NewString, now, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(reservations, cal, logger),
		Rooms:        httptransport.NewRoomHandler(rooms, availability, logger),
		Users:        httptransport.NewUserHandler(users, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Identify(users, logger),
		},
	})
	return a, nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close resource", "error", err)
		}
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		logger.WarnContext(ctx, "using in-memory storage; data is lost on exit")
		return memory.New(), nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, logger); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store, nil
	default:
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, logger); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store, nil
	}
}
