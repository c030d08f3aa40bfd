package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"

	defaultLocationsURL  = "https://gist.githubusercontent.com/megaganjotsingh/875a7b138972fb88cceeac33e2a5cc1a/raw/b988b4aefa16bb5c8ac82c6e90d82c26c4877ea4/gistfile1"
	defaultDirectionsURL = "https://maps.googleapis.com/maps/api/directions/json"
)

type Config struct {
	LocationsURL     string
	DirectionsURL    string
	DirectionsAPIKey string
	HTTPTimeout      time.Duration
	FetchRetries     int

	PlacemarkSource string
	DatabaseURL     string
	RouteName       string

	NATSURL         string
	SubjectPrefix   string
	VehicleID       string
	LogNATSSubjects bool

	StepDelay  time.Duration
	DwellDelay time.Duration
	Loop       bool

	HTTPAddr  string
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.LocationsURL = getenvDefault("LOCATIONS_URL", defaultLocationsURL)
	cfg.DirectionsURL = getenvDefault("DIRECTIONS_URL", defaultDirectionsURL)
	cfg.DirectionsAPIKey = firstNonEmpty(os.Getenv("DIRECTIONS_API_KEY"), os.Getenv("GOOGLE_MAPS_API_KEY"))

	// Placemark source
	cfg.PlacemarkSource = strings.ToLower(getenvDefault("PLACEMARK_SOURCE", SourceHTTP))
	switch cfg.PlacemarkSource {
	case SourceHTTP:
	case SourcePostgres:
		dsn, err := databaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	default:
		return nil, fmt.Errorf("invalid PLACEMARK_SOURCE: %q", cfg.PlacemarkSource)
	}
	cfg.RouteName = getenvDefault("ROUTE_NAME", "default")

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.SubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "vehicles")
	cfg.VehicleID = getenvDefault("VEHICLE_ID", "car-1")
	cfg.LogNATSSubjects = getenvBool("LOG_NATS_SUBJECTS")

	var err error
	if cfg.StepDelay, err = getenvMillis("STEP_DELAY_MS", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.DwellDelay, err = getenvMillis("DWELL_DELAY_MS", 5*time.Second); err != nil {
		return nil, err
	}

	// HTTP timeout (seconds)
	if v := os.Getenv("HTTP_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT_SEC: %q", v)
		}
		cfg.HTTPTimeout = time.Duration(sec) * time.Second
	} else {
		cfg.HTTPTimeout = 10 * time.Second
	}

	if v := os.Getenv("FETCH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid FETCH_RETRIES: %q", v)
		}
		cfg.FetchRetries = n
	} else {
		cfg.FetchRetries = 2
	}

	cfg.Loop = getenvBool("LOOP")

	// Status/metrics listen address (e.g., ":9102"). Empty disables the server.
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	return cfg, nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds from PG* vars.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set when PLACEMARK_SOURCE=postgres")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func getenvMillis(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getenvBool(k string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
