package validation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyloop/skyloop/internal/liveoffers"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/pkg/epoch"
)

// mockSource serves canned offers per leg and records call pressure.
type mockSource struct {
	mu     sync.Mutex
	offers map[string][]liveoffers.Offer
	dates  map[string]time.Time
	err    error
	delay  time.Duration

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (m *mockSource) Search(ctx context.Context, q liveoffers.Query) ([]liveoffers.Offer, error) {
	m.calls.Add(1)
	cur := m.active.Add(1)
	for {
		prev := m.maxActive.Load()
		if cur <= prev || m.maxActive.CompareAndSwap(prev, cur) {
			break
		}
	}
	defer m.active.Add(-1)

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}

	key := q.DepartureAirport + "-" + q.ArrivalAirport
	m.mu.Lock()
	if m.dates == nil {
		m.dates = make(map[string]time.Time)
	}
	m.dates[key] = q.DepartureDate
	offers := m.offers[key]
	m.mu.Unlock()
	return offers, nil
}

func (m *mockSource) Name() string { return "mock" }

// round trip WAW -> LHR (day 0, 10:00) -> WAW (day 2, 09:00)
func testRoute() route.RouteResult {
	return route.RouteResult{
		RouteID: 1,
		Segments: []route.RouteSegment{
			{SegmentIndex: 0, DepartureAirport: "WAW", ArrivalAirport: "LHR",
				DepTime: 10 * 60, ArrTime: 12 * 60, Price: 100, CarrierCode: "LO"},
			{SegmentIndex: 1, DepartureAirport: "LHR", ArrivalAirport: "WAW",
				DepTime: 2*24*60 + 9*60, ArrTime: 2*24*60 + 11*60, Price: 120, CarrierCode: "BA"},
		},
		VisitedCities: []string{"LHR"},
	}
}

func matchingOffers() map[string][]liveoffers.Offer {
	return map[string][]liveoffers.Offer{
		"WAW-LHR": {{ID: "off_out", CarrierCode: "LO", Price: 100,
			DepartureTime: epoch.ToTime(10 * 60), ArrivalTime: epoch.ToTime(12 * 60)}},
		"LHR-WAW": {{ID: "off_back", CarrierCode: "BA", Price: 120,
			DepartureTime: epoch.ToTime(2*24*60 + 9*60), ArrivalTime: epoch.ToTime(2*24*60 + 11*60)}},
	}
}

func newTestService(src liveoffers.Source, cfg Config) *Service {
	return NewService(ServiceConfig{Source: src, Config: cfg, Logger: zerolog.Nop()})
}

func TestValidateRouteConfirmed(t *testing.T) {
	src := &mockSource{offers: matchingOffers()}
	svc := newTestService(src, Config{})

	dep := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	v, err := svc.ValidateRouteOnDemand(context.Background(), testRoute(), dep)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, v.Status)
	assert.Equal(t, 100.0, v.Confidence)
	assert.True(t, v.Bookable())
	assert.Equal(t, 220.0, v.QuotedTotal)
	require.NotNil(t, v.LiveTotal)
	assert.Equal(t, 220.0, *v.LiveTotal)
	require.Len(t, v.Segments, 2)
	assert.Equal(t, "off_out", v.Segments[0].MatchedOfferID)
}

func TestValidateRoutePriceChanged(t *testing.T) {
	offers := matchingOffers()
	offers["WAW-LHR"][0].Price = 112 // +12%
	src := &mockSource{offers: offers}
	svc := newTestService(src, Config{})

	v, err := svc.ValidateRouteOnDemand(context.Background(), testRoute(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusPriceChanged, v.Status)
	assert.True(t, v.Bookable())
	require.NotNil(t, v.LiveTotal)
	assert.Equal(t, 232.0, *v.LiveTotal)
	assert.InDelta(t, 5.45, v.PriceDriftPct(), 0.01)
}

func TestValidateRouteWorstStatusWins(t *testing.T) {
	offers := matchingOffers()
	delete(offers, "LHR-WAW") // return leg has no live offers
	src := &mockSource{offers: offers}
	svc := newTestService(src, Config{})

	v, err := svc.ValidateRouteOnDemand(context.Background(), testRoute(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, v.Segments[0].Status)
	assert.Equal(t, StatusUnavailable, v.Segments[1].Status)
	assert.Equal(t, StatusUnavailable, v.Status)
	assert.False(t, v.Bookable())
	assert.Equal(t, 0.0, v.Confidence, "route confidence is the minimum segment confidence")
	assert.Nil(t, v.LiveTotal)
}

func TestValidateRouteSourceError(t *testing.T) {
	src := &mockSource{err: errors.New("upstream down")}
	svc := newTestService(src, Config{})

	v, err := svc.ValidateRouteOnDemand(context.Background(), testRoute(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusAPIError, v.Status)
	assert.False(t, v.Bookable())
	assert.Nil(t, v.LiveTotal)
}

func TestValidateRouteDissimilarOfferUnavailable(t *testing.T) {
	offers := matchingOffers()
	// wrong carrier, +50% price, far departure hour
	offers["WAW-LHR"] = []liveoffers.Offer{{
		ID: "off_far", CarrierCode: "FR", Price: 150, Stops: 1,
		DepartureTime: epoch.ToTime(18 * 60), ArrivalTime: epoch.ToTime(21 * 60),
	}}
	src := &mockSource{offers: offers}
	svc := newTestService(src, Config{})

	v, err := svc.ValidateRouteOnDemand(context.Background(), testRoute(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusUnavailable, v.Segments[0].Status)
}

func TestValidateRouteMajorPriceDriftUnavailable(t *testing.T) {
	offers := matchingOffers()
	// Same carrier, exact hour, non-stop, but 50% over quote: similar enough
	// to match, too expensive to count as a price change.
	offers["WAW-LHR"][0].Price = 150
	src := &mockSource{offers: offers}
	svc := newTestService(src, Config{})

	v, err := svc.ValidateRouteOnDemand(context.Background(), testRoute(), time.Now())
	require.NoError(t, err)

	seg := v.Segments[0]
	assert.Equal(t, StatusUnavailable, seg.Status)
	assert.GreaterOrEqual(t, seg.Confidence, 30.0, "the offer itself still matches")
	assert.Equal(t, StatusUnavailable, v.Status)
	assert.False(t, v.Bookable())
}

func TestValidateRoutePlaceholderOffersDiscarded(t *testing.T) {
	offers := matchingOffers()
	// A perfect match on paper, but operated by the placeholder carrier.
	offers["WAW-LHR"] = []liveoffers.Offer{{
		ID: "off_zz", CarrierCode: "ZZ", Price: 100,
		DepartureTime: epoch.ToTime(10 * 60), ArrivalTime: epoch.ToTime(12 * 60),
	}}
	src := &mockSource{offers: offers}
	svc := newTestService(src, Config{})

	v, err := svc.ValidateRouteOnDemand(context.Background(), testRoute(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusUnavailable, v.Segments[0].Status)
	assert.Empty(t, v.Segments[0].MatchedOfferID)
}

func TestValidateRoutesTopN(t *testing.T) {
	src := &mockSource{offers: matchingOffers()}
	svc := newTestService(src, Config{ValidateTopN: 2})

	routes := []route.RouteResult{testRoute(), testRoute(), testRoute(), testRoute()}
	results, err := svc.ValidateRoutes(context.Background(), routes, time.Now())
	require.NoError(t, err)

	// Every route comes back; only the first two carry a validation.
	require.Len(t, results, 4)
	assert.NotNil(t, results[0].Validation)
	assert.NotNil(t, results[1].Validation)
	assert.Nil(t, results[2].Validation)
	assert.Nil(t, results[3].Validation)
	assert.Equal(t, int32(4), src.calls.Load(), "only top-N routes hit the live source")
}

func TestValidateRoutesEmpty(t *testing.T) {
	svc := newTestService(&mockSource{}, Config{})
	_, err := svc.ValidateRoutes(context.Background(), nil, time.Now())
	assert.ErrorIs(t, err, ErrNoRoutes)
}

func TestValidateRoutesConcurrencyBounded(t *testing.T) {
	src := &mockSource{offers: matchingOffers(), delay: 20 * time.Millisecond}
	svc := newTestService(src, Config{MaxConcurrent: 2})

	routes := []route.RouteResult{testRoute(), testRoute(), testRoute()}
	_, err := svc.ValidateRoutes(context.Background(), routes, time.Now())
	require.NoError(t, err)

	assert.Equal(t, int32(6), src.calls.Load())
	assert.LessOrEqual(t, src.maxActive.Load(), int32(2),
		"live requests must share one concurrency bound across routes")
}

func TestSegmentDateFollowsTimeline(t *testing.T) {
	src := &mockSource{offers: matchingOffers()}
	svc := newTestService(src, Config{})

	dep := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.ValidateRouteOnDemand(context.Background(), testRoute(), dep)
	require.NoError(t, err)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, dep, src.dates["WAW-LHR"])
	// return leg departs two timeline days after the first leg
	assert.Equal(t, dep.AddDate(0, 0, 2), src.dates["LHR-WAW"])
}

func TestServiceClosed(t *testing.T) {
	svc := newTestService(&mockSource{}, Config{})
	svc.Close()

	_, err := svc.ValidateRoutes(context.Background(), []route.RouteResult{testRoute()}, time.Now())
	assert.ErrorIs(t, err, ErrClosed)

	_, err = svc.ValidateRouteOnDemand(context.Background(), testRoute(), time.Now())
	assert.ErrorIs(t, err, ErrClosed)
}
