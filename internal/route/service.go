package route

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/graph"
	"github.com/skyloop/skyloop/pkg/epoch"
)

// GraphSource supplies the flight graph snapshot for a search. Satisfied by
// *graph.Cache.
type GraphSource interface {
	Get(ctx context.Context) (*graph.Graph, error)
}

// ServiceConfig holds configuration for the route search service.
type ServiceConfig struct {
	// Graphs supplies graph snapshots (required).
	Graphs GraphSource

	// Finder runs the search; a default finder is created when nil.
	Finder *Finder

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service is the route search service: it validates constraints, fetches
// the cached graph, delegates to the finder, and applies post-filters.
// Stateless and safe for concurrent use.
type Service struct {
	graphs GraphSource
	finder *Finder
	logger zerolog.Logger
}

// NewService creates a route search service.
func NewService(cfg ServiceConfig) *Service {
	finder := cfg.Finder
	if finder == nil {
		finder = NewFinder(FinderConfig{Logger: cfg.Logger})
	}
	return &Service{
		graphs: cfg.Graphs,
		finder: finder,
		logger: cfg.Logger,
	}
}

// Find runs a search with raw epoch-minute constraints.
func (s *Service) Find(ctx context.Context, c TravelConstraints) ([]RouteResult, error) {
	start := time.Now()

	g, err := s.graphs.Get(ctx)
	if err != nil {
		return nil, err
	}

	results, err := s.finder.Find(g, c)
	if err != nil {
		return nil, err
	}

	results = applyMaxPrice(results, c.MaxPrice)

	s.logger.Info().
		Str("origin", c.Origin).
		Strs("destinations", c.Required).
		Int("routes", len(results)).
		Dur("elapsed", time.Since(start)).
		Str("graph_version", g.Version()).
		Msg("route search completed")

	return results, nil
}

// FindWindow runs a search with wall-clock bounds, converting them to the
// epoch-minute timeline.
func (s *Service) FindWindow(ctx context.Context, origin string, destinations []string, departAfter, returnBefore time.Time, opts WindowOptions) ([]RouteResult, error) {
	c := TravelConstraints{
		Origin:         origin,
		Required:       destinations,
		TMin:           epoch.FromTime(departAfter),
		TMax:           epoch.FromTime(returnBefore),
		MinStayMinutes: int64(opts.MinStay / time.Minute),
		MaxStops:       opts.MaxStops,
		MaxPrice:       opts.MaxPrice,
	}
	return s.Find(ctx, c)
}

// WindowOptions are the optional knobs of a wall-clock search.
type WindowOptions struct {
	MinStay  time.Duration
	MaxStops *int
	MaxPrice float64
}

// AvailableAirports returns every airport in the current snapshot, sorted.
func (s *Service) AvailableAirports(ctx context.Context) ([]string, error) {
	g, err := s.graphs.Get(ctx)
	if err != nil {
		return nil, err
	}
	return g.Airports(), nil
}

// HasRoute reports whether a direct flight exists in the current snapshot.
func (s *Service) HasRoute(ctx context.Context, origin, destination string) (bool, error) {
	g, err := s.graphs.Get(ctx)
	if err != nil {
		return false, err
	}
	return g.HasRoute(origin, destination), nil
}

// applyMaxPrice drops routes above the price cap. Applied after the search:
// the cap does not change the Pareto frontier, only truncates it.
func applyMaxPrice(results []RouteResult, maxPrice float64) []RouteResult {
	if maxPrice <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.TotalCost() <= maxPrice {
			kept = append(kept, r)
		}
	}
	return kept
}
