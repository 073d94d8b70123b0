package validation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/skyloop/skyloop/internal/flights"
	"github.com/skyloop/skyloop/internal/liveoffers"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/pkg/epoch"
)

const minutesPerDay = 24 * 60

// ServiceConfig holds dependencies for the validation service.
type ServiceConfig struct {
	// Source provides live offers (required).
	Source liveoffers.Source

	// Config tunes thresholds and concurrency (zero values use defaults).
	Config Config

	// Weights override the match scoring weights (optional).
	Weights MatchWeights

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service validates found routes against live offers. Live requests are
// bounded by a single semaphore shared across all concurrent validations.
type Service struct {
	source liveoffers.Source
	cfg    Config
	sc     scorer
	sem    *semaphore.Weighted
	logger zerolog.Logger
	closed atomic.Bool

	now func() time.Time
}

// NewService creates a validation service.
func NewService(cfg ServiceConfig) *Service {
	conf := cfg.Config.withDefaults()
	weights := cfg.Weights
	if weights == (MatchWeights{}) {
		weights = DefaultWeights()
	}
	return &Service{
		source: cfg.Source,
		cfg:    conf,
		sc: scorer{
			weights:   weights,
			tolerance: conf.PriceTolerancePct,
			majorPct:  conf.MajorPriceChangePct,
		},
		sem:    semaphore.NewWeighted(int64(conf.MaxConcurrent)),
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// ValidateRoutes validates a batch of routes against live offers, in input
// order. When ValidateTopN is set, only the first N routes are checked; the
// rest are returned with a nil Validation. departureDate is the calendar
// date of each route's first departure.
func (s *Service) ValidateRoutes(ctx context.Context, routes []route.RouteResult, departureDate time.Time) ([]ValidatedRoute, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}
	checked := len(routes)
	if n := s.cfg.ValidateTopN; n > 0 && n < checked {
		checked = n
	}

	start := s.now()
	results := make([]ValidatedRoute, len(routes))
	var wg sync.WaitGroup
	for i, r := range routes {
		if i >= checked {
			results[i] = ValidatedRoute{Route: r}
			continue
		}
		wg.Add(1)
		go func(i int, r route.RouteResult) {
			defer wg.Done()
			v := s.validateRoute(ctx, r, departureDate)
			results[i] = ValidatedRoute{Route: r, Validation: &v}
		}(i, r)
	}
	wg.Wait()

	s.logger.Info().
		Int("routes", len(routes)).
		Int("checked", checked).
		Dur("elapsed", s.now().Sub(start)).
		Msg("validated route batch")
	return results, nil
}

// ValidateRouteOnDemand validates a single route against live offers.
func (s *Service) ValidateRouteOnDemand(ctx context.Context, r route.RouteResult, departureDate time.Time) (RouteValidation, error) {
	if s.closed.Load() {
		return RouteValidation{}, ErrClosed
	}
	return s.validateRoute(ctx, r, departureDate), nil
}

// Close stops the service. In-flight validations finish; later calls return
// ErrClosed.
func (s *Service) Close() {
	s.closed.Store(true)
}

// validateRoute checks every segment of a route concurrently and aggregates
// the outcomes: worst segment status wins and route confidence is the
// minimum segment confidence.
func (s *Service) validateRoute(ctx context.Context, r route.RouteResult, departureDate time.Time) RouteValidation {
	segs := make([]SegmentValidation, len(r.Segments))
	var wg sync.WaitGroup
	for i, seg := range r.Segments {
		wg.Add(1)
		go func(i int, seg route.RouteSegment) {
			defer wg.Done()
			segs[i] = s.validateSegment(ctx, r.Segments[0], seg, departureDate)
		}(i, seg)
	}
	wg.Wait()

	v := RouteValidation{
		RouteID:     r.RouteID,
		Status:      StatusConfirmed,
		Confidence:  100,
		QuotedTotal: r.TotalCost(),
		Segments:    segs,
		ValidatedAt: s.now().UTC(),
	}

	liveTotal := 0.0
	haveAllPrices := true
	for _, sv := range segs {
		v.Status = v.Status.Worse(sv.Status)
		if sv.Confidence < v.Confidence {
			v.Confidence = sv.Confidence
		}
		if sv.LivePrice == nil {
			haveAllPrices = false
		} else {
			liveTotal += *sv.LivePrice
		}
	}
	if haveAllPrices && len(segs) > 0 {
		v.LiveTotal = &liveTotal
	}
	return v
}

// validateSegment queries live offers for one leg and scores the closest
// match against the quote.
func (s *Service) validateSegment(ctx context.Context, first, seg route.RouteSegment, departureDate time.Time) SegmentValidation {
	sv := SegmentValidation{
		SegmentIndex: seg.SegmentIndex,
		QuotedPrice:  seg.Price,
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		sv.Status = StatusAPIError
		sv.Message = "validation cancelled"
		return sv
	}
	defer s.sem.Release(1)

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	offers, err := s.source.Search(reqCtx, liveoffers.Query{
		DepartureAirport: seg.DepartureAirport,
		ArrivalAirport:   seg.ArrivalAirport,
		DepartureDate:    segmentDate(first, seg, departureDate),
	})
	if err != nil {
		s.logger.Warn().
			Str("leg", seg.DepartureAirport+"->"+seg.ArrivalAirport).
			Err(err).
			Msg("live offer search failed")
		sv.Status = StatusAPIError
		sv.Message = fmt.Sprintf("live offer search failed: %v", err)
		return sv
	}
	offers = dropPlaceholderOffers(offers)
	if len(offers) == 0 {
		sv.Status = StatusUnavailable
		sv.Message = "no live offers for this leg"
		return sv
	}

	best, score, _ := s.sc.bestMatch(seg, offers)
	sv.Confidence = s.sc.confidence(seg, score)
	sv.LivePrice = &best.Price
	sv.PriceDiffPct = priceDiffPct(seg.Price, best.Price)
	sv.MatchedOfferID = best.ID
	sv.LiveCarrier = best.CarrierCode

	switch {
	case sv.Confidence < s.cfg.MinConfidence:
		sv.Status = StatusUnavailable
		sv.Message = "no sufficiently similar live offer"
	case sv.PriceDiffPct <= s.cfg.PriceTolerancePct:
		sv.Status = StatusConfirmed
	case sv.PriceDiffPct <= s.cfg.MajorPriceChangePct:
		sv.Status = StatusPriceChanged
		sv.Message = fmt.Sprintf("price moved %.1f%% from quote", sv.PriceDiffPct)
	default:
		// The quote no longer resembles what is bookable.
		sv.Status = StatusUnavailable
		sv.Message = fmt.Sprintf("price moved %.1f%% from quote", sv.PriceDiffPct)
	}
	return sv
}

// dropPlaceholderOffers removes offers operated by the placeholder carrier;
// they carry no bookable airline and cannot confirm a quote.
func dropPlaceholderOffers(offers []liveoffers.Offer) []liveoffers.Offer {
	kept := offers[:0]
	for _, o := range offers {
		if o.CarrierCode == flights.PlaceholderCarrier {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

// segmentDate maps a segment's timeline departure onto a calendar date:
// departureDate shifted by the whole days between the route's first
// departure and this segment's.
func segmentDate(first, seg route.RouteSegment, departureDate time.Time) time.Time {
	offset := epoch.DayIndex(seg.DepTime) - epoch.DayIndex(first.DepTime)
	return departureDate.AddDate(0, 0, int(offset))
}
