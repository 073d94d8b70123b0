package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/flights"
)

// CacheConfig holds configuration for the graph cache.
type CacheConfig struct {
	// Provider is the flight data source (required).
	Provider flights.Provider

	// Logger for cache operations.
	Logger zerolog.Logger

	// TTL is how long a snapshot is served before a background rebuild is
	// triggered (default: 1 hour).
	TTL time.Duration

	// RebuildTimeout bounds a single background rebuild (default: 2 minutes).
	RebuildTimeout time.Duration
}

// Cache owns the current flight graph snapshot and refreshes it from the
// provider on a TTL using a double-buffer protocol: a new snapshot is built
// off to the side and the current-snapshot pointer is swapped atomically, so
// readers never block after the first successful load and never observe a
// partially built graph.
type Cache struct {
	provider       flights.Provider
	logger         zerolog.Logger
	ttl            time.Duration
	rebuildTimeout time.Duration

	current atomic.Pointer[Graph]

	// mu guards the cold-start load; refreshing guards against a second
	// concurrent background rebuild.
	mu         sync.Mutex
	refreshing atomic.Bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// NewCache creates a graph cache. No data is loaded until Warm or the first
// Get call.
func NewCache(cfg CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	rebuildTimeout := cfg.RebuildTimeout
	if rebuildTimeout == 0 {
		rebuildTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Cache{
		provider:       cfg.Provider,
		logger:         cfg.Logger,
		ttl:            ttl,
		rebuildTimeout: rebuildTimeout,
		baseCtx:        ctx,
		cancel:         cancel,
	}
}

// Get returns the current snapshot. The first call blocks while the initial
// graph is built; afterwards Get never blocks on I/O. A stale snapshot is
// returned immediately while at most one background rebuild runs.
func (c *Cache) Get(ctx context.Context) (*Graph, error) {
	if g := c.current.Load(); g != nil {
		if c.isStale(g) && !c.closed.Load() {
			c.triggerRefresh()
		}
		return g, nil
	}

	// Cold start: build under the lock, re-checking after acquisition so
	// concurrent callers share one load.
	c.mu.Lock()
	defer c.mu.Unlock()

	if g := c.current.Load(); g != nil {
		return g, nil
	}
	if c.closed.Load() {
		return nil, fmt.Errorf("%w: cache closed", ErrNotInitialized)
	}

	g, err := c.build(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("provider", c.provider.Name()).
			Msg("cold start graph load failed")
		return nil, fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}

	c.current.Store(g)
	c.logger.Info().
		Int("flights", g.Len()).
		Int("airports", len(g.airports)).
		Str("version", g.Version()).
		Msg("initial flight graph loaded")
	return g, nil
}

// Warm performs the cold-start load eagerly. Safe to call more than once.
func (c *Cache) Warm(ctx context.Context) error {
	_, err := c.Get(ctx)
	return err
}

// Ready reports whether a snapshot has been loaded.
func (c *Cache) Ready() bool {
	return c.current.Load() != nil
}

// Version returns the version hash of the current snapshot, or "" if none.
func (c *Cache) Version() string {
	if g := c.current.Load(); g != nil {
		return g.Version()
	}
	return ""
}

// ForceRefresh triggers an immediate background rebuild.
func (c *Cache) ForceRefresh() {
	if c.current.Load() == nil || c.closed.Load() {
		return
	}
	c.triggerRefresh()
}

// Refresh rebuilds the snapshot synchronously and reports the build error.
// Returns nil without rebuilding when a background refresh is already in
// flight.
func (c *Cache) Refresh(ctx context.Context) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.refreshing.Store(false)

	start := time.Now()
	g, err := c.build(ctx)
	if err != nil {
		return err
	}
	c.current.Store(g)
	c.logger.Info().
		Int("flights", g.Len()).
		Int("airports", len(g.airports)).
		Str("version", g.Version()).
		Dur("elapsed", time.Since(start)).
		Msg("flight graph refreshed")
	return nil
}

// Invalidate drops the current snapshot; the next Get performs a blocking
// cold-start load.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// Close cancels any in-flight background rebuild and waits for it to
// finish. The cache keeps serving its last snapshot but will not refresh.
func (c *Cache) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()
	c.wg.Wait()
}

func (c *Cache) isStale(g *Graph) bool {
	return time.Since(g.BuiltAt()) > c.ttl
}

// triggerRefresh starts a background rebuild unless one is already in
// flight.
func (c *Cache) triggerRefresh() {
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.refreshing.Store(false)

		ctx, cancel := context.WithTimeout(c.baseCtx, c.rebuildTimeout)
		defer cancel()

		start := time.Now()
		g, err := c.build(ctx)
		if err != nil {
			// Keep serving the last good snapshot.
			c.logger.Error().Err(err).
				Str("provider", c.provider.Name()).
				Dur("elapsed", time.Since(start)).
				Msg("background graph rebuild failed, serving stale snapshot")
			return
		}

		c.current.Store(g)
		c.logger.Info().
			Int("flights", g.Len()).
			Int("airports", len(g.airports)).
			Str("version", g.Version()).
			Dur("elapsed", time.Since(start)).
			Msg("flight graph refreshed")
	}()
}

// build fetches a snapshot from the provider and constructs a frozen graph.
func (c *Cache) build(ctx context.Context) (*Graph, error) {
	records, err := c.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading flight data: %w", err)
	}
	g, err := New(records)
	if err != nil {
		return nil, fmt.Errorf("building flight graph: %w", err)
	}
	return g, nil
}
