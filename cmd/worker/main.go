// Package main provides the entrypoint for the SkyLoop background worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/database"
	"github.com/skyloop/skyloop/internal/flights"
	"github.com/skyloop/skyloop/internal/flights/postgres"
	"github.com/skyloop/skyloop/internal/graph"
	"github.com/skyloop/skyloop/internal/liveoffers/duffel"
	"github.com/skyloop/skyloop/internal/planner"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/internal/validation"
	"github.com/skyloop/skyloop/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "skyloop-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SkyLoop worker")

	// Worker also exposes a health endpoint for Cloud Run.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

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
	})
	defer graphs.Close()

	var validator *validation.Service
	if token := os.Getenv("DUFFEL_API_TOKEN"); token != "" {
		validator = validation.NewService(validation.ServiceConfig{
			Source: duffel.NewClient(duffel.ClientConfig{
				APIToken: token,
				BaseURL:  os.Getenv("DUFFEL_BASE_URL"),
				Logger:   log,
			}),
			Logger: log,
		})
		defer validator.Close()
	} else {
		log.Warn().Msg("DUFFEL_API_TOKEN not set - watched trips are checked without live prices")
	}

	p := planner.New(planner.Config{
		Graphs:    graphs,
		Routes:    route.NewService(route.ServiceConfig{Graphs: graphs, Logger: log}),
		Validator: validator,
		Logger:    log,
	})

	refreshCfg := worker.DefaultRefreshConfig()
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, parseErr := time.ParseDuration(v); parseErr == nil {
			refreshCfg.Interval = d
		}
	}

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  refreshCfg,
		Logger:  log,
		Planner: p,
	})

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Prefer Pub/Sub triggered jobs when a subscription is configured;
	// otherwise fall back to a local interval schedule.
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        os.Getenv("GCP_PROJECT_ID"),
			SubscriptionName: subscription,
			RefreshJob:       refreshJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
		log.Info().Str("subscription", subscription).Msg("worker waiting for jobs")
	} else {
		go refreshJob.RunPeriodic(ctx)
		log.Info().Dur("interval", refreshCfg.Interval).Msg("worker running on local schedule")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
