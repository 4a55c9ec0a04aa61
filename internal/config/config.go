package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the advisory service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	// Identity collaborator. When AuthSecret is empty the service runs in
	// dev mode and accepts an X-Debug-UID header instead of a bearer token.
	AuthSecret string

	// Market snapshot collaborator.
	StocksAPIURL  string
	StockCacheTTL time.Duration

	// Opaque model service.
	ModelMode string
	ModelURL  string

	// Conversational memory.
	WindowCapacity      int
	WindowTTL           time.Duration
	WindowSweepInterval time.Duration
	RetrieveTopK        int
	LongTermEnabled     bool

	// Persistence.
	DatabaseURL    string
	PersistTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "advisor"),
		AuthSecret:          stringsTrimSpace("APP_AUTH_SECRET"),
		StocksAPIURL:        stringsTrimSpace("STOCKS_API_URL"),
		ModelMode:           envOrDefault("MODEL_ADAPTER_MODE", "auto"),
		ModelURL:            stringsTrimSpace("MODEL_HTTP_URL"),
		DatabaseURL:         stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:     15 * time.Second,
		StockCacheTTL:       10 * time.Minute,
		WindowCapacity:      5,
		WindowTTL:           30 * time.Minute,
		WindowSweepInterval: time.Minute,
		RetrieveTopK:        4,
		LongTermEnabled:     true,
		PersistTimeout:      5 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.StockCacheTTL, err = durationFromEnv("STOCK_CACHE_TTL", cfg.StockCacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.WindowCapacity, err = intFromEnv("MEMORY_WINDOW_CAPACITY", cfg.WindowCapacity)
	if err != nil {
		return Config{}, err
	}
	cfg.WindowTTL, err = durationFromEnv("MEMORY_WINDOW_TTL", cfg.WindowTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.WindowSweepInterval, err = durationFromEnv("MEMORY_WINDOW_SWEEP_INTERVAL", cfg.WindowSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrieveTopK, err = intFromEnv("MEMORY_RETRIEVE_TOP_K", cfg.RetrieveTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.LongTermEnabled, err = boolFromEnv("MEMORY_LONG_TERM_ENABLED", cfg.LongTermEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.PersistTimeout, err = durationFromEnv("PERSIST_TIMEOUT", cfg.PersistTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.WindowCapacity <= 0 {
		return Config{}, fmt.Errorf("MEMORY_WINDOW_CAPACITY must be positive")
	}
	if cfg.WindowTTL < 5*time.Second {
		return Config{}, fmt.Errorf("MEMORY_WINDOW_TTL must be at least 5s")
	}
	if cfg.WindowSweepInterval <= 0 {
		return Config{}, fmt.Errorf("MEMORY_WINDOW_SWEEP_INTERVAL must be positive")
	}
	if cfg.RetrieveTopK <= 0 {
		return Config{}, fmt.Errorf("MEMORY_RETRIEVE_TOP_K must be positive")
	}
	if cfg.PersistTimeout <= 0 {
		return Config{}, fmt.Errorf("PERSIST_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
