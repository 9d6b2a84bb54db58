package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type SessionBackend string

const (
	SessionMemory SessionBackend = "memory"
	SessionRedis  SessionBackend = "redis"
)

type StorageBackend string

const (
	StorageMemory    StorageBackend = "memory"
	StorageSQLite    StorageBackend = "sqlite"
	StorageFirestore StorageBackend = "firestore"
)

type Config struct {
	Port     string
	LogLevel string

	SessionBackend SessionBackend
	StorageBackend StorageBackend

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	SQLitePath   string
	GCPProjectID string

	LexiconPath  string // empty = embedded default
	LexiconWatch bool

	SessionIdleTimeout time.Duration
	JanitorInterval    time.Duration
	SnapshotPath       string // memory storage only; empty disables
	ShutdownTimeout    time.Duration

	OTelEnabled     bool
	OTelEndpoint    string
	OTelInsecure    bool
	OTelServiceName string
	OTelSampleRatio float64
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load reads all env vars and builds the config
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("FARUM_PORT", getEnv("PORT", "8080")),
		LogLevel: getEnv("FARUM_LOG_LEVEL", "info"),

		SessionBackend: SessionBackend(getEnv("FARUM_SESSION_BACKEND", string(SessionMemory))),
		StorageBackend: StorageBackend(getEnv("FARUM_STORAGE_BACKEND", string(StorageMemory))),

		RedisAddr:     getEnv("FARUM_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("FARUM_REDIS_PASSWORD", ""),
		RedisPrefix:   getEnv("FARUM_REDIS_PREFIX", "farum:"),

		SQLitePath:   getEnv("FARUM_SQLITE_PATH", "farum.db"),
		GCPProjectID: getEnv("FARUM_GCP_PROJECT", ""),

		LexiconPath:  getEnv("FARUM_LEXICON_PATH", ""),
		LexiconWatch: getBoolEnv("FARUM_LEXICON_WATCH", false),

		SnapshotPath: getEnv("FARUM_SNAPSHOT_PATH", ""),

		OTelEnabled:     getBoolEnv("OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelInsecure:    getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", false),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "farum-triage"),
	}

	var errs []error
	var err error
	if cfg.RedisDB, err = getIntEnv("FARUM_REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionIdleTimeout, err = getDurationEnv("FARUM_SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.JanitorInterval, err = getDurationEnv("FARUM_JANITOR_INTERVAL", time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.ShutdownTimeout, err = getDurationEnv("FARUM_SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.OTelSampleRatio, err = getFloatEnv("OTEL_SAMPLE_RATIO", 1.0); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks combinations that only fail at startup otherwise.
func (c *Config) Validate() error {
	var errs []error

	switch c.SessionBackend {
	case SessionMemory, SessionRedis:
	default:
		errs = append(errs, fmt.Errorf("FARUM_SESSION_BACKEND %q must be memory or redis", c.SessionBackend))
	}

	switch c.StorageBackend {
	case StorageMemory:
	case StorageSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("FARUM_SQLITE_PATH must be set for sqlite storage"))
		}
	case StorageFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("FARUM_GCP_PROJECT must be set for firestore storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("FARUM_STORAGE_BACKEND %q must be memory, sqlite or firestore", c.StorageBackend))
	}

	if c.SessionIdleTimeout <= 0 {
		errs = append(errs, errors.New("FARUM_SESSION_IDLE_TIMEOUT must be positive"))
	}
	if c.JanitorInterval <= 0 {
		errs = append(errs, errors.New("FARUM_JANITOR_INTERVAL must be positive"))
	}
	if c.LexiconWatch && c.LexiconPath == "" {
		errs = append(errs, errors.New("FARUM_LEXICON_WATCH needs FARUM_LEXICON_PATH"))
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO %.2f outside 0..1", c.OTelSampleRatio))
	}

	return errors.Join(errs...)
}
