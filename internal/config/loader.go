package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted by BOOKING_DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort int

	DBDriver    string
	SQLitePath  string
	PostgresDSN string

	Location              *time.Location
	MaxActiveReservations int
	CancelCutoff          time.Duration

	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	AvailabilityCacheTTL time.Duration
}

// CacheEnabled reports whether an availability cache backend is configured.
func (c Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// LoadFile populates the environment from a dotenv file and then calls Load.
// Variables already present in the environment take precedence over the file.
func LoadFile(path string) (Config, error) {
	if strings.TrimSpace(path) != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Load()
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every missing or invalid key is
// collected so a single error names all of them.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:              8080,
		DBDriver:              DriverSQLite,
		SQLitePath:            "booking.db",
		Location:              time.UTC,
		MaxActiveReservations: 3,
		CancelCutoff:          60 * time.Minute,
		AvailabilityCacheTTL:  30 * time.Second,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := lookup("BOOKING_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(lookup("BOOKING_DB_DRIVER")); driver != "" {
		switch driver {
		case DriverSQLite, DriverPostgres, DriverMemory:
			cfg.DBDriver = driver
		default:
			invalid = append(invalid, "BOOKING_DB_DRIVER")
		}
	}

	if path := lookup("BOOKING_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	cfg.PostgresDSN = lookup("BOOKING_POSTGRES_DSN")
	if cfg.DBDriver == DriverPostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "BOOKING_POSTGRES_DSN")
	}

	if tz := lookup("BOOKING_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "BOOKING_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if value := lookup("BOOKING_MAX_ACTIVE_RESERVATIONS"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit <= 0 {
			invalid = append(invalid, "BOOKING_MAX_ACTIVE_RESERVATIONS")
		} else {
			cfg.MaxActiveReservations = limit
		}
	}

	if value := lookup("BOOKING_CANCEL_CUTOFF"); value != "" {
		cutoff, err := time.ParseDuration(value)
		if err != nil || cutoff <= 0 {
			invalid = append(invalid, "BOOKING_CANCEL_CUTOFF")
		} else {
			cfg.CancelCutoff = cutoff
		}
	}

	cfg.RedisAddr = lookup("BOOKING_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("BOOKING_REDIS_PASSWORD")

	if value := lookup("BOOKING_REDIS_DB"); value != "" {
		db, err := strconv.Atoi(value)
		if err != nil || db < 0 {
			invalid = append(invalid, "BOOKING_REDIS_DB")
		} else {
			cfg.RedisDB = db
		}
	}

	if value := lookup("BOOKING_AVAILABILITY_CACHE_TTL"); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "BOOKING_AVAILABILITY_CACHE_TTL")
		} else {
			cfg.AvailabilityCacheTTL = ttl
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required environment variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid environment variables: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
