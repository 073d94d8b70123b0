package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/planner"
)

// RefreshJob rebuilds the flight graph and re-checks watched trips against
// live offers.
type RefreshJob struct {
	config  RefreshConfig
	logger  zerolog.Logger
	planner *planner.Planner

	metrics *RefreshMetrics

	// now is swappable for tests.
	now func() time.Time
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns      int64
	GraphRefreshes int64
	FailedRuns     int64
	TripsChecked   int64
	TripsFailed    int64
	RoutesFound    int64
	RoutesBookable int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Logger  zerolog.Logger
	Planner *planner.Planner

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshConfig().Timeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		planner: cfg.Planner,
		metrics: &RefreshMetrics{},
		now:     now,
	}
}

// RefreshResult contains the result of one refresh run.
type RefreshResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	GraphRefreshed bool
	GraphVersion   string
	TripsChecked   int
	TripsFailed    int
	RoutesFound    int
	RoutesBookable int
	Errors         []RefreshError
}

// RefreshError represents an error during a refresh run.
type RefreshError struct {
	Stage string
	Trip  string
	Error string
}

// Run executes one full refresh: graph rebuild first, then watched trips.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := j.now()
	result := &RefreshResult{StartTime: startTime}

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.logger.Info().
		Bool("refresh_graph", j.config.RefreshGraph).
		Int("watched_trips", len(j.config.Trips)).
		Msg("starting refresh job")

	if j.config.RefreshGraph {
		if err := j.planner.RefreshGraph(runCtx); err != nil {
			result.Errors = append(result.Errors, RefreshError{
				Stage: "graph",
				Error: err.Error(),
			})
		} else {
			result.GraphRefreshed = true
		}
	}
	result.GraphVersion = j.planner.GraphVersion()

	if j.config.CheckTrips {
		for _, trip := range j.config.SortedTrips() {
			if runCtx.Err() != nil {
				break
			}
			j.checkTrip(runCtx, trip, result)
		}
	}

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Bool("graph_refreshed", result.GraphRefreshed).
		Str("graph_version", result.GraphVersion).
		Int("trips_checked", result.TripsChecked).
		Int("trips_failed", result.TripsFailed).
		Int("routes_found", result.RoutesFound).
		Int("routes_bookable", result.RoutesBookable).
		Msg("refresh job completed")

	return result
}

// RunPeriodic runs refresh cycles on the configured interval until the
// context is cancelled. The first run starts immediately.
func (j *RefreshJob) RunPeriodic(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *RefreshJob) checkTrip(ctx context.Context, trip WatchedTrip, result *RefreshResult) {
	windowDays := trip.WindowDays
	if windowDays <= 0 {
		windowDays = 30
	}
	departAfter := nextMidnightUTC(j.now())

	resp, err := j.planner.Search(ctx, planner.SearchRequest{
		Origin:       trip.Origin,
		Destinations: trip.Destinations,
		DepartAfter:  departAfter,
		ReturnBefore: departAfter.AddDate(0, 0, windowDays),
		MinStay:      trip.MinStay,
		Validate:     true,
	})

	result.TripsChecked++
	if err != nil {
		result.TripsFailed++
		result.Errors = append(result.Errors, RefreshError{
			Stage: "trip",
			Trip:  trip.Name,
			Error: err.Error(),
		})
		j.logger.Warn().
			Err(err).
			Str("trip", trip.Name).
			Str("origin", trip.Origin).
			Msg("watched trip check failed")
		return
	}

	bookable := 0
	for _, vr := range resp.Validated {
		if vr.Validation != nil && vr.Validation.Bookable() {
			bookable++
		}
	}
	result.RoutesFound += len(resp.Routes)
	result.RoutesBookable += bookable

	j.logger.Debug().
		Str("trip", trip.Name).
		Int("routes", len(resp.Routes)).
		Int("bookable", bookable).
		Msg("watched trip checked")
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if len(result.Errors) > 0 {
		j.metrics.FailedRuns++
	}
	if result.GraphRefreshed {
		j.metrics.GraphRefreshes++
	}
	j.metrics.TripsChecked += int64(result.TripsChecked)
	j.metrics.TripsFailed += int64(result.TripsFailed)
	j.metrics.RoutesFound += int64(result.RoutesFound)
	j.metrics.RoutesBookable += int64(result.RoutesBookable)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		GraphRefreshes:  j.metrics.GraphRefreshes,
		FailedRuns:      j.metrics.FailedRuns,
		TripsChecked:    j.metrics.TripsChecked,
		TripsFailed:     j.metrics.TripsFailed,
		RoutesFound:     j.metrics.RoutesFound,
		RoutesBookable:  j.metrics.RoutesBookable,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"graph_refreshes":   m.GraphRefreshes,
		"failed_runs":       m.FailedRuns,
		"trips_checked":     m.TripsChecked,
		"trips_failed":      m.TripsFailed,
		"routes_found":      m.RoutesFound,
		"routes_bookable":   m.RoutesBookable,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}

// nextMidnightUTC returns the first midnight UTC strictly after t.
func nextMidnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
