// Package main provides the entrypoint for the SkyLoop API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/api"
	"github.com/skyloop/skyloop/internal/api/middleware"
	"github.com/skyloop/skyloop/internal/database"
	"github.com/skyloop/skyloop/internal/flights"
	"github.com/skyloop/skyloop/internal/flights/postgres"
	"github.com/skyloop/skyloop/internal/graph"
	"github.com/skyloop/skyloop/internal/liveoffers/duffel"
	"github.com/skyloop/skyloop/internal/planner"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/internal/telemetry"
	"github.com/skyloop/skyloop/internal/validation"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "skyloop-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SkyLoop API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize http metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	plannerMetrics, err := planner.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize planner metrics")
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Flight graph cache over the schedule snapshots in Postgres. The
	// stored base week is extrapolated forward so future dates are
	// searchable.
	graphTTL := time.Hour
	if v := os.Getenv("GRAPH_TTL"); v != "" {
		if d, parseErr := time.ParseDuration(v); parseErr == nil {
			graphTTL = d
		}
	}
	expandWeeks := 0
	if v := os.Getenv("GRAPH_EXPAND_WEEKS"); v != "" {
		if n, parseErr := strconv.Atoi(v); parseErr == nil {
			expandWeeks = n
		}
	}
	var provider flights.Provider = postgres.NewProvider(pool)
	if expandWeeks > 0 {
		provider = flights.NewExpandingProvider(provider, flights.ExpandingProviderConfig{
			WeeksAhead: expandWeeks,
			Logger:     log,
		})
	}
	graphs := graph.NewCache(graph.CacheConfig{
		Provider: provider,
		Logger:   log,
		TTL:      graphTTL,
	})
	defer graphs.Close()

	// Live offer validation via Duffel (optional)
	var validator *validation.Service
	if token := os.Getenv("DUFFEL_API_TOKEN"); token != "" {
		source := duffel.NewClient(duffel.ClientConfig{
			APIToken: token,
			BaseURL:  os.Getenv("DUFFEL_BASE_URL"),
			Logger:   log,
		})
		validator = validation.NewService(validation.ServiceConfig{
			Source: source,
			Logger: log,
		})
		defer validator.Close()
		log.Info().Str("source", source.Name()).Msg("live offer validation enabled")
	} else {
		log.Warn().Msg("DUFFEL_API_TOKEN not set - live validation disabled")
	}

	p := planner.New(planner.Config{
		Graphs:    graphs,
		Routes:    route.NewService(route.ServiceConfig{Graphs: graphs, Logger: log}),
		Validator: validator,
		Metrics:   plannerMetrics,
		Logger:    log,
	})

	// Warm the graph before accepting traffic; readiness reports failures.
	warmCtx, warmCancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := p.Warm(warmCtx); err != nil {
		log.Error().Err(err).Msg("initial graph load failed, serving degraded")
	} else {
		log.Info().Str("graph_version", p.GraphVersion()).Msg("flight graph ready")
	}
	warmCancel()

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		Planner:     p,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
