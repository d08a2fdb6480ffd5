// Package config handles YAML configuration loading with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Store           StoreConfig           `yaml:"store"`
	Cache           CacheConfig           `yaml:"cache"`
	CircuitBreakers CircuitBreakersConfig `yaml:"circuitbreakers"`
	Telemetry       TelemetryConfig       `yaml:"telemetry"`
	Concurrency     ConcurrencyConfig     `yaml:"concurrency"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig is the document-store connection surface: store.host,
// store.port, store.database, store.connectTimeoutMs/socketTimeoutMs/
// serverSelectionTimeoutMs.
type StoreConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	Database                 string `yaml:"database"`
	ConnectTimeoutMs         int    `yaml:"connect_timeout_ms"`
	SocketTimeoutMs          int    `yaml:"socket_timeout_ms"`
	ServerSelectionTimeoutMs int    `yaml:"server_selection_timeout_ms"`
}

// CacheConfig is the fallback-store connection surface: cache.host,
// cache.port, cache.ttlMs. Host empty selects the in-process Memory store;
// a configured host selects Redis.
type CacheConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	TTLMs   int    `yaml:"ttl_ms"`
	MaxSize int    `yaml:"max_size"`
}

// CircuitBreakerEntry is one dependency's tuning
// (cb.<name>.slidingWindowSize/minimumNumberOfCalls/failureRateThreshold/
// waitDurationMs/halfOpenPermitted).
type CircuitBreakerEntry struct {
	SlidingWindowSize    int     `yaml:"sliding_window_size"`
	MinimumNumberOfCalls int     `yaml:"minimum_number_of_calls"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold"`
	WaitDurationMs       int     `yaml:"wait_duration_ms"`
	HalfOpenPermitted    int     `yaml:"half_open_permitted"`
	SlowCallDurationMs   int     `yaml:"slow_call_duration_ms"`
}

// CircuitBreakersConfig carries the three named dependency breakers:
// tripService, baggageService, ticketService.
type CircuitBreakersConfig struct {
	TripService    CircuitBreakerEntry `yaml:"trip_service"`
	BaggageService CircuitBreakerEntry `yaml:"baggage_service"`
	TicketService  CircuitBreakerEntry `yaml:"ticket_service"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// ConcurrencyConfig carries workerPoolSize/eventLoopPoolSize. These are
// accepted and logged, not separately enforced — Go's goroutine scheduler
// and the mongo driver's own connection pool already cover what they
// would size.
type ConcurrencyConfig struct {
	WorkerPoolSize    int `yaml:"worker_pool_size"`
	EventLoopPoolSize int `yaml:"event_loop_pool_size"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// defaultCircuitBreaker mirrors circuitbreaker.DefaultConfig's values so a
// config section left empty still gets the documented defaults.
func defaultCircuitBreaker() CircuitBreakerEntry {
	return CircuitBreakerEntry{
		SlidingWindowSize:    100,
		MinimumNumberOfCalls: 10,
		FailureRateThreshold: 10,
		WaitDurationMs:       10_000,
		HalfOpenPermitted:    3,
		SlowCallDurationMs:   5_000,
	}
}

// Load reads and parses a YAML config file, expanding environment variables
// and filling in documented defaults for zero-valued fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	def := defaultCircuitBreaker()
	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Host:                     "localhost",
			Port:                     27017,
			Database:                 "pnragg",
			ConnectTimeoutMs:         5000,
			SocketTimeoutMs:          5000,
			ServerSelectionTimeoutMs: 5000,
		},
		Cache: CacheConfig{
			TTLMs:   600_000, // 10 minutes
			MaxSize: 10_000,
		},
		CircuitBreakers: CircuitBreakersConfig{
			TripService:    def,
			BaggageService: def,
			TicketService:  def,
		},
		Concurrency: ConcurrencyConfig{
			WorkerPoolSize:    8,
			EventLoopPoolSize: 4,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	fillBreakerDefaults(&cfg.CircuitBreakers.TripService, def)
	fillBreakerDefaults(&cfg.CircuitBreakers.BaggageService, def)
	fillBreakerDefaults(&cfg.CircuitBreakers.TicketService, def)

	return cfg, nil
}

// fillBreakerDefaults patches zero-valued fields left untouched by a
// partial YAML override (e.g. only failure_rate_threshold specified for
// one dependency) back to the defaults.
func fillBreakerDefaults(e *CircuitBreakerEntry, def CircuitBreakerEntry) {
	if e.SlidingWindowSize == 0 {
		e.SlidingWindowSize = def.SlidingWindowSize
	}
	if e.MinimumNumberOfCalls == 0 {
		e.MinimumNumberOfCalls = def.MinimumNumberOfCalls
	}
	if e.FailureRateThreshold == 0 {
		e.FailureRateThreshold = def.FailureRateThreshold
	}
	if e.WaitDurationMs == 0 {
		e.WaitDurationMs = def.WaitDurationMs
	}
	if e.HalfOpenPermitted == 0 {
		e.HalfOpenPermitted = def.HalfOpenPermitted
	}
	if e.SlowCallDurationMs == 0 {
		e.SlowCallDurationMs = def.SlowCallDurationMs
	}
}
