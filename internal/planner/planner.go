// Package planner is the application facade: it ties the flight graph
// cache, the route search, and live offer validation into one API used by
// the HTTP handlers and the background worker.
package planner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/graph"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/internal/validation"
)

// Config holds the planner's dependencies.
type Config struct {
	// Graphs is the flight graph cache (required).
	Graphs *graph.Cache

	// Routes is the route search service (required).
	Routes *route.Service

	// Validator checks found routes against live offers (optional; searches
	// requesting validation fail without one).
	Validator *validation.Service

	// Metrics records planner instruments (optional).
	Metrics *Metrics

	// Logger for planner operations.
	Logger zerolog.Logger
}

// Planner coordinates route search and live validation over the cached
// flight graph. Safe for concurrent use.
type Planner struct {
	graphs    *graph.Cache
	routes    *route.Service
	validator *validation.Service
	metrics   *Metrics
	logger    zerolog.Logger
}

// New creates a planner.
func New(cfg Config) *Planner {
	return &Planner{
		graphs:    cfg.Graphs,
		routes:    cfg.Routes,
		validator: cfg.Validator,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// SearchRequest describes one trip search.
type SearchRequest struct {
	// Origin is the round trip's start and end airport.
	Origin string

	// Destinations are the airports the trip must visit.
	Destinations []string

	// DepartAfter and ReturnBefore bound the whole trip.
	DepartAfter  time.Time
	ReturnBefore time.Time

	// MinStay is the minimum ground time at each destination.
	MinStay time.Duration

	// MaxStops caps intermediate stops; nil means unlimited.
	MaxStops *int

	// MaxPrice caps total route cost; 0 means unlimited.
	MaxPrice float64

	// Validate checks the found routes against live offers.
	Validate bool
}

// SearchResponse is the outcome of one trip search.
type SearchResponse struct {
	// Routes are the Pareto-optimal round trips, cheapest first.
	Routes []route.RouteResult

	// Validated carries live validation results when requested. Indexed
	// like Routes up to the validator's top-N cap.
	Validated []validation.ValidatedRoute

	// GraphVersion identifies the snapshot the search ran against.
	GraphVersion string
}

// Search finds Pareto-optimal round trips and optionally validates them
// against live offers.
func (p *Planner) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	results, err := p.routes.FindWindow(ctx, req.Origin, req.Destinations,
		req.DepartAfter, req.ReturnBefore, route.WindowOptions{
			MinStay:  req.MinStay,
			MaxStops: req.MaxStops,
			MaxPrice: req.MaxPrice,
		})
	p.metrics.RecordSearch(ctx, req.Origin, len(results), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Routes:       results,
		GraphVersion: p.graphs.Version(),
	}

	if req.Validate && p.validator != nil && len(results) > 0 {
		validated, err := p.validator.ValidateRoutes(ctx, results, departureDate(req.DepartAfter))
		if err != nil {
			// validation is best effort on top of a successful search
			p.logger.Warn().Err(err).Msg("route validation failed")
		} else {
			resp.Validated = validated
			p.metrics.RecordValidations(ctx, validated)
		}
	}

	return resp, nil
}

// SearchRaw runs a search with raw epoch-minute constraints, without
// validation.
func (p *Planner) SearchRaw(ctx context.Context, c route.TravelConstraints) ([]route.RouteResult, error) {
	start := time.Now()
	results, err := p.routes.Find(ctx, c)
	p.metrics.RecordSearch(ctx, c.Origin, len(results), time.Since(start), err)
	return results, err
}

// ValidateRoutes validates a batch of previously found routes.
func (p *Planner) ValidateRoutes(ctx context.Context, routes []route.RouteResult, departDate time.Time) ([]validation.ValidatedRoute, error) {
	if p.validator == nil {
		return nil, validation.ErrClosed
	}
	results, err := p.validator.ValidateRoutes(ctx, routes, departureDate(departDate))
	if err != nil {
		return nil, err
	}
	p.metrics.RecordValidations(ctx, results)
	return results, nil
}

// ValidateRouteOnDemand validates a single route against live offers.
func (p *Planner) ValidateRouteOnDemand(ctx context.Context, r route.RouteResult, departDate time.Time) (validation.RouteValidation, error) {
	if p.validator == nil {
		return validation.RouteValidation{}, validation.ErrClosed
	}
	return p.validator.ValidateRouteOnDemand(ctx, r, departureDate(departDate))
}

// AvailableAirports returns every airport in the current graph snapshot.
func (p *Planner) AvailableAirports(ctx context.Context) ([]string, error) {
	return p.routes.AvailableAirports(ctx)
}

// HasRoute reports whether a direct flight exists between two airports.
func (p *Planner) HasRoute(ctx context.Context, origin, destination string) (bool, error) {
	return p.routes.HasRoute(ctx, origin, destination)
}

// Warm builds the flight graph ahead of the first search.
func (p *Planner) Warm(ctx context.Context) error {
	return p.graphs.Warm(ctx)
}

// Ready reports whether a graph snapshot is available.
func (p *Planner) Ready() bool {
	return p.graphs.Ready()
}

// RefreshGraph rebuilds the flight graph from the provider now, blocking
// until the new snapshot is live.
func (p *Planner) RefreshGraph(ctx context.Context) error {
	return p.graphs.Refresh(ctx)
}

// GraphVersion identifies the current snapshot, or "" before warm-up.
func (p *Planner) GraphVersion() string {
	return p.graphs.Version()
}

// Close releases the planner's resources.
func (p *Planner) Close() {
	if p.validator != nil {
		p.validator.Close()
	}
	p.graphs.Close()
}

// departureDate truncates a departure bound to its calendar date in UTC.
func departureDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
