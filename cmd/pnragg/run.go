package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/pnragg/service/internal/aggregator"
	"github.com/pnragg/service/internal/broadcast"
	"github.com/pnragg/service/internal/circuitbreaker"
	"github.com/pnragg/service/internal/config"
	"github.com/pnragg/service/internal/eventbus"
	"github.com/pnragg/service/internal/fallback"
	"github.com/pnragg/service/internal/fetcher"
	"github.com/pnragg/service/internal/pnragg"
	"github.com/pnragg/service/internal/server"
	"github.com/pnragg/service/internal/store"
	"github.com/pnragg/service/internal/telemetry"
)

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	slog.Info("starting pnragg", "version", version, "addr", addr)

	ctx := context.Background()

	// Connect document store
	docs, err := store.New(ctx, store.Config{
		Host:                   cfg.Store.Host,
		Port:                   cfg.Store.Port,
		Database:               cfg.Store.Database,
		ConnectTimeout:         time.Duration(cfg.Store.ConnectTimeoutMs) * time.Millisecond,
		SocketTimeout:          time.Duration(cfg.Store.SocketTimeoutMs) * time.Millisecond,
		ServerSelectionTimeout: time.Duration(cfg.Store.ServerSelectionTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer docs.Close(context.Background())

	if err := docs.EnsureIndexes(ctx); err != nil {
		// Index creation needs the store up; the service itself can still
		// start and serve cached fallbacks while the store recovers.
		slog.Warn("ensure indexes failed, continuing", "error", err)
	}
	slog.Info("document store configured",
		"host", cfg.Store.Host,
		"port", cfg.Store.Port,
		"database", cfg.Store.Database,
	)

	// Fallback store: in-process unless an external cache host is configured.
	cacheTTL := time.Duration(cfg.Cache.TTLMs) * time.Millisecond
	var fallbackStore fallback.Store
	if cfg.Cache.Host != "" {
		r, err := fallback.NewRedis(ctx, fallback.RedisConfig{
			Host:       cfg.Cache.Host,
			Port:       cfg.Cache.Port,
			DefaultTTL: cacheTTL,
		})
		if err != nil {
			return err
		}
		defer r.Close()
		fallbackStore = r
		slog.Info("fallback store: redis", "host", cfg.Cache.Host, "port", cfg.Cache.Port, "ttl", cacheTTL)
	} else {
		fallbackStore = fallback.NewMemory(cfg.Cache.MaxSize, cacheTTL)
		slog.Info("fallback store: in-process", "max_size", cfg.Cache.MaxSize, "ttl", cacheTTL)
	}

	// Per-dependency circuit breakers.
	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), map[string]circuitbreaker.Config{
		pnragg.BreakerTripService:    breakerConfig(cfg.CircuitBreakers.TripService),
		pnragg.BreakerBaggageService: breakerConfig(cfg.CircuitBreakers.BaggageService),
		pnragg.BreakerTicketService:  breakerConfig(cfg.CircuitBreakers.TicketService),
	})

	// Prometheus metrics.
	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		promRegistry.MustRegister(collectors.NewGoCollector())
		metrics = telemetry.NewMetrics(promRegistry)
		metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
		slog.Info("prometheus metrics enabled")
	}

	// Event bus feeding the broadcast bridge.
	var onDrop func(string)
	if metrics != nil {
		onDrop = func(string) { metrics.EventBusDropped.Inc() }
	}
	bus := eventbus.New(onDrop)

	// Wire fetchers and the aggregator.
	trips := fetcher.NewTripFetcher(docs, breakers.GetOrCreate(pnragg.BreakerTripService), fallbackStore, cacheTTL)
	baggage := fetcher.NewBaggageFetcher(docs, breakers.GetOrCreate(pnragg.BreakerBaggageService), fallbackStore, cacheTTL)
	tickets := fetcher.NewTicketFetcher(docs, breakers.GetOrCreate(pnragg.BreakerTicketService))
	agg := aggregator.New(trips, baggage, tickets, docs, bus)

	slog.Info("circuit breakers configured",
		"trip", cfg.CircuitBreakers.TripService,
		"baggage", cfg.CircuitBreakers.BaggageService,
		"ticket", cfg.CircuitBreakers.TicketService,
	)
	slog.Info("concurrency limits accepted",
		"worker_pool_size", cfg.Concurrency.WorkerPoolSize,
		"event_loop_pool_size", cfg.Concurrency.EventLoopPoolSize,
	)

	// Broadcast bridge.
	bridge := broadcast.New(bus)
	bridgeCtx, bridgeCancel := context.WithCancel(context.Background())
	defer bridgeCancel()
	go bridge.Run(bridgeCtx.Done())

	// OpenTelemetry tracing.
	var tracer trace.Tracer
	var tracingShutdown func(context.Context) error
	if cfg.Telemetry.Tracing.Enabled {
		endpoint := cfg.Telemetry.Tracing.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		sampleRate := cfg.Telemetry.Tracing.SampleRate
		if sampleRate == 0 {
			sampleRate = 0.1
		}
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, sampleRate)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			tracer = telemetry.Tracer("pnragg/server")
			slog.Info("opentelemetry tracing enabled",
				"endpoint", endpoint,
				"sample_rate", sampleRate,
			)
		}
	}

	// Periodic breaker gauge snapshots.
	if metrics != nil {
		go metrics.ObserveCircuitBreakers(bridgeCtx, breakers, 10*time.Second)
	}

	// Create HTTP server
	handler := server.New(server.Deps{
		Aggregator:     agg,
		Breakers:       breakers,
		Bridge:         bridge,
		Sessions:       bridge,
		ReadyCheck:     docs.Ping,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Tracer:         tracer,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("endpoints enabled",
		"endpoints", []string{
			"GET /booking/{pnr}",
			"GET /customer/{customerId}",
			"GET /ws/pnr",
			"GET /health",
			"GET /circuitbreakers",
		},
	)
	slog.Info("pnragg ready", "addr", addr)

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	// Shutdown HTTP first, then the bridge (so in-flight aggregations still
	// publish their events).
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	bridgeCancel()

	// Shutdown tracing exporter.
	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("pnragg stopped")
	return nil
}

// breakerConfig converts one cb.<name>.* config entry into breaker tuning.
func breakerConfig(e config.CircuitBreakerEntry) circuitbreaker.Config {
	return circuitbreaker.Config{
		SlidingWindowSize:                     e.SlidingWindowSize,
		MinimumNumberOfCalls:                  e.MinimumNumberOfCalls,
		FailureRateThreshold:                  e.FailureRateThreshold,
		WaitDurationInOpenState:               time.Duration(e.WaitDurationMs) * time.Millisecond,
		PermittedNumberOfCallsInHalfOpenState: e.HalfOpenPermitted,
		SlowCallDurationThreshold:             time.Duration(e.SlowCallDurationMs) * time.Millisecond,
	}
}
