package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// RefreshMessage represents a worker job message.
type RefreshMessage struct {
	JobType   string `json:"job_type"`
	SkipGraph bool   `json:"skip_graph,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	// Parse message.
	var refreshMsg RefreshMessage
	if err := json.Unmarshal(msg.Data, &refreshMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	// Handle based on job type.
	var err error
	switch refreshMsg.JobType {
	case "graph_refresh":
		err = h.handleGraphRefresh(ctx, refreshMsg)
	case "health_check":
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", refreshMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", refreshMsg.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleGraphRefresh(ctx context.Context, msg RefreshMessage) error {
	h.logger.Info().
		Bool("skip_graph", msg.SkipGraph).
		Msg("starting graph refresh")

	job := h.refreshJob
	if msg.SkipGraph {
		// Trip checks only; reuse the configured job with the rebuild off.
		cfg := job.config
		cfg.RefreshGraph = false
		job = NewRefreshJob(RefreshJobConfig{
			Config:  cfg,
			Logger:  h.logger,
			Planner: job.planner,
		})
	}

	result := job.Run(ctx)

	h.logger.Info().
		Dur("duration", result.Duration).
		Bool("graph_refreshed", result.GraphRefreshed).
		Int("trips_checked", result.TripsChecked).
		Int("trips_failed", result.TripsFailed).
		Msg("graph refresh completed")

	if !msg.SkipGraph && !result.GraphRefreshed {
		return fmt.Errorf("graph rebuild failed: %d errors", len(result.Errors))
	}
	if result.TripsChecked > 0 && result.TripsFailed == result.TripsChecked {
		return fmt.Errorf("all %d watched trip checks failed", result.TripsChecked)
	}

	return nil
}

func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	// Verify a graph snapshot is live and the provider is reachable.
	if !h.refreshJob.planner.Ready() {
		if err := h.refreshJob.planner.Warm(ctx); err != nil {
			return fmt.Errorf("graph not available: %w", err)
		}
	}

	if _, err := h.refreshJob.planner.AvailableAirports(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}
