// Package validation checks previously found routes against live offer data
// and scores how well each quoted segment matches what is bookable now.
package validation

import (
	"errors"
	"time"

	"github.com/skyloop/skyloop/internal/route"
)

// Sentinel errors for the validation service.
var (
	// ErrClosed indicates the service has been shut down.
	ErrClosed = errors.New("validation service is closed")
	// ErrNoRoutes indicates an empty validation request.
	ErrNoRoutes = errors.New("no routes to validate")
)

// Status describes the outcome of validating a segment or route.
type Status string

const (
	// StatusConfirmed means a live offer closely matches the quoted segment.
	StatusConfirmed Status = "confirmed"
	// StatusPriceChanged means a matching offer exists at a different price.
	StatusPriceChanged Status = "price_changed"
	// StatusUnavailable means no acceptable live offer was found.
	StatusUnavailable Status = "unavailable"
	// StatusAPIError means the live offer source could not be queried.
	StatusAPIError Status = "api_error"
)

// severity orders statuses from best to worst. Route aggregation takes the
// worst segment status.
func (s Status) severity() int {
	switch s {
	case StatusConfirmed:
		return 0
	case StatusPriceChanged:
		return 1
	case StatusUnavailable:
		return 2
	default:
		return 3
	}
}

// Worse returns the more severe of two statuses.
func (s Status) Worse(other Status) Status {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// Config holds validation service configuration.
type Config struct {
	// PriceTolerancePct is the relative price difference (percent) still
	// counted as confirmed.
	PriceTolerancePct float64

	// MajorPriceChangePct is the relative price difference (percent) above
	// which an offer scores as a poor price match.
	MajorPriceChangePct float64

	// MinConfidence is the confidence floor below which a segment is
	// reported unavailable rather than price-changed.
	MinConfidence float64

	// MaxConcurrent bounds in-flight live offer requests across the whole
	// service, not per route.
	MaxConcurrent int

	// RequestTimeout is the per-segment live search timeout.
	RequestTimeout time.Duration

	// ValidateTopN caps how many routes of a batch are validated;
	// 0 validates all of them.
	ValidateTopN int
}

// DefaultConfig returns the standard validation configuration.
func DefaultConfig() Config {
	return Config{
		PriceTolerancePct:   5,
		MajorPriceChangePct: 25,
		MinConfidence:       30,
		MaxConcurrent:       3,
		RequestTimeout:      10 * time.Second,
		ValidateTopN:        0,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PriceTolerancePct <= 0 {
		c.PriceTolerancePct = def.PriceTolerancePct
	}
	if c.MajorPriceChangePct <= 0 {
		c.MajorPriceChangePct = def.MajorPriceChangePct
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = def.MinConfidence
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ValidateTopN < 0 {
		c.ValidateTopN = 0
	}
	return c
}

// MatchWeights are the scoring weights for comparing a live offer against a
// quoted segment.
type MatchWeights struct {
	CarrierMatch    float64
	CarrierMismatch float64
	DepHourExact    float64
	DepHourClose    float64
	DepHourFar      float64
	PriceClose      float64
	PriceNear       float64
	PriceFar        float64
	NonStopBonus    float64
	PerStopPenalty  float64
}

// DefaultWeights returns the standard match weights.
func DefaultWeights() MatchWeights {
	return MatchWeights{
		CarrierMatch:    50,
		CarrierMismatch: -20,
		DepHourExact:    30,
		DepHourClose:    20,
		DepHourFar:      -30,
		PriceClose:      30,
		PriceNear:       15,
		PriceFar:        -50,
		NonStopBonus:    20,
		PerStopPenalty:  -10,
	}
}

// MaxScore is the best achievable score: carrier match, exact departure
// hour, close price, non-stop.
func (w MatchWeights) MaxScore() float64 {
	return w.CarrierMatch + w.DepHourExact + w.PriceClose + w.NonStopBonus
}

// SegmentValidation is the live validation outcome for one route segment.
type SegmentValidation struct {
	SegmentIndex int     `json:"segment_index"`
	Status       Status  `json:"status"`
	Confidence   float64 `json:"confidence"`

	QuotedPrice  float64  `json:"quoted_price"`
	LivePrice    *float64 `json:"live_price,omitempty"`
	PriceDiffPct float64  `json:"price_diff_pct"`

	MatchedOfferID string `json:"matched_offer_id,omitempty"`
	LiveCarrier    string `json:"live_carrier,omitempty"`
	Message        string `json:"message,omitempty"`
}

// RouteValidation is the aggregated live validation outcome for one route.
type RouteValidation struct {
	RouteID     int                 `json:"route_id"`
	Status      Status              `json:"status"`
	Confidence  float64             `json:"confidence"`
	QuotedTotal float64             `json:"quoted_total"`
	LiveTotal   *float64            `json:"live_total,omitempty"`
	Segments    []SegmentValidation `json:"segments"`
	ValidatedAt time.Time           `json:"validated_at"`
}

// Bookable reports whether every segment of the route can still be booked,
// possibly at a changed price.
func (v RouteValidation) Bookable() bool {
	return v.Status == StatusConfirmed || v.Status == StatusPriceChanged
}

// PriceDriftPct returns the relative difference between the live and quoted
// totals in percent, or 0 when no live total is known.
func (v RouteValidation) PriceDriftPct() float64 {
	if v.LiveTotal == nil || v.QuotedTotal == 0 {
		return 0
	}
	return (*v.LiveTotal - v.QuotedTotal) / v.QuotedTotal * 100
}

// ValidatedRoute pairs a found route with its live validation result.
// Validation is nil for routes that fell outside the top-N cap and were
// passed through unchecked.
type ValidatedRoute struct {
	Route      route.RouteResult `json:"route"`
	Validation *RouteValidation  `json:"validation,omitempty"`
}
