package models

import (
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/internal/validation"
	"github.com/skyloop/skyloop/pkg/epoch"
)

// TripSearchRequest is the body of POST /v1/trips:search.
type TripSearchRequest struct {
	// Origin is the IATA code the round trip starts and ends at.
	Origin string `json:"origin"`

	// Destinations are the IATA codes the trip must visit.
	Destinations []string `json:"destinations"`

	// DepartAfter and ReturnBefore bound the whole trip.
	DepartAfter  Timestamp `json:"departAfter"`
	ReturnBefore Timestamp `json:"returnBefore"`

	// MinStayMinutes is the minimum ground time at each destination.
	MinStayMinutes int64 `json:"minStayMinutes,omitempty"`

	// MaxStops caps intermediate stops; absent means unlimited.
	MaxStops *int `json:"maxStops,omitempty"`

	// MaxPrice caps total route price; absent means unlimited.
	MaxPrice float64 `json:"maxPrice,omitempty"`

	// ValidateLive checks found routes against live offers.
	ValidateLive bool `json:"validateLive,omitempty"`
}

// FieldErrors returns structural problems with the request body.
func (r *TripSearchRequest) FieldErrors() []FieldError {
	var errs []FieldError
	if r.Origin == "" {
		errs = append(errs, FieldError{Field: "origin", Message: "origin is required"})
	}
	if len(r.Destinations) == 0 {
		errs = append(errs, FieldError{Field: "destinations", Message: "at least one destination is required"})
	}
	if r.DepartAfter.Time().IsZero() {
		errs = append(errs, FieldError{Field: "departAfter", Message: "departAfter is required"})
	}
	if r.ReturnBefore.Time().IsZero() {
		errs = append(errs, FieldError{Field: "returnBefore", Message: "returnBefore is required"})
	}
	if !r.DepartAfter.Time().IsZero() && !r.ReturnBefore.Time().IsZero() &&
		!r.ReturnBefore.Time().After(r.DepartAfter.Time()) {
		errs = append(errs, FieldError{Field: "returnBefore", Message: "returnBefore must be after departAfter"})
	}
	if r.MinStayMinutes < 0 {
		errs = append(errs, FieldError{Field: "minStayMinutes", Message: "minStayMinutes must not be negative"})
	}
	if r.MaxPrice < 0 {
		errs = append(errs, FieldError{Field: "maxPrice", Message: "maxPrice must not be negative"})
	}
	return errs
}

// FlightSegment is one leg of a found route.
type FlightSegment struct {
	SegmentIndex    int       `json:"segmentIndex"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	DepartsAt       Timestamp `json:"departsAt"`
	ArrivesAt       Timestamp `json:"arrivesAt"`
	DurationMinutes int64     `json:"durationMinutes"`
	Price           float64   `json:"price"`
	CarrierCode     string    `json:"carrierCode,omitempty"`
	CarrierName     string    `json:"carrierName,omitempty"`
}

// TripRoute is one Pareto-optimal round trip.
type TripRoute struct {
	RouteID       int              `json:"routeId"`
	Segments      []FlightSegment  `json:"segments"`
	VisitedCities []string         `json:"visitedCities"`
	TotalPrice    float64          `json:"totalPrice"`
	TotalMinutes  int64            `json:"totalMinutes"`
	Validation    *RouteValidation `json:"validation,omitempty"`
}

// TripSearchResponse is the body returned by POST /v1/trips:search.
type TripSearchResponse struct {
	Routes       []TripRoute `json:"routes"`
	Count        int         `json:"count"`
	GraphVersion string      `json:"graphVersion"`
}

// SegmentValidation is the live check outcome for one leg.
type SegmentValidation struct {
	SegmentIndex   int      `json:"segmentIndex"`
	Status         string   `json:"status"`
	Confidence     float64  `json:"confidence"`
	QuotedPrice    float64  `json:"quotedPrice"`
	LivePrice      *float64 `json:"livePrice,omitempty"`
	PriceDiffPct   float64  `json:"priceDiffPct"`
	MatchedOfferID string   `json:"matchedOfferId,omitempty"`
	LiveCarrier    string   `json:"liveCarrier,omitempty"`
	Message        string   `json:"message,omitempty"`
}

// RouteValidation is the aggregated live check outcome for one route.
type RouteValidation struct {
	RouteID     int                 `json:"routeId"`
	Status      string              `json:"status"`
	Confidence  float64             `json:"confidence"`
	Bookable    bool                `json:"bookable"`
	QuotedTotal float64             `json:"quotedTotal"`
	LiveTotal   *float64            `json:"liveTotal,omitempty"`
	Segments    []SegmentValidation `json:"segments"`
	ValidatedAt Timestamp           `json:"validatedAt"`
}

// TripValidateRequest is the body of POST /v1/trips:validate. It re-checks
// previously returned routes against live offers.
type TripValidateRequest struct {
	Routes []TripRoute `json:"routes"`
}

// FieldErrors returns structural problems with the request body.
func (r *TripValidateRequest) FieldErrors() []FieldError {
	var errs []FieldError
	if len(r.Routes) == 0 {
		errs = append(errs, FieldError{Field: "routes", Message: "at least one route is required"})
	}
	for _, rt := range r.Routes {
		if len(rt.Segments) == 0 {
			errs = append(errs, FieldError{Field: "routes", Message: "every route needs at least one segment"})
			break
		}
	}
	return errs
}

// TripValidateResponse is the body returned by POST /v1/trips:validate.
// Results mirror the request routes in order; entries past the validation
// cap carry no validation block.
type TripValidateResponse struct {
	Results []TripRoute `json:"results"`
}

// AirportsResponse lists the airports in the current flight graph.
type AirportsResponse struct {
	Airports     []string `json:"airports"`
	Count        int      `json:"count"`
	GraphVersion string   `json:"graphVersion"`
}

// NewTripRoute converts a search result to its wire form.
func NewTripRoute(r route.RouteResult) TripRoute {
	segs := make([]FlightSegment, len(r.Segments))
	for i, s := range r.Segments {
		segs[i] = FlightSegment{
			SegmentIndex:    s.SegmentIndex,
			From:            s.DepartureAirport,
			To:              s.ArrivalAirport,
			DepartsAt:       Timestamp(epoch.ToTime(s.DepTime)),
			ArrivesAt:       Timestamp(epoch.ToTime(s.ArrTime)),
			DurationMinutes: s.Duration(),
			Price:           s.Price,
			CarrierCode:     s.CarrierCode,
			CarrierName:     s.CarrierName,
		}
	}
	return TripRoute{
		RouteID:       r.RouteID,
		Segments:      segs,
		VisitedCities: r.VisitedCities,
		TotalPrice:    r.TotalCost(),
		TotalMinutes:  r.TotalTime(),
	}
}

// RouteResult converts a wire route back to the search result form used by
// the validator.
func (t TripRoute) RouteResult() route.RouteResult {
	segs := make([]route.RouteSegment, len(t.Segments))
	for i, s := range t.Segments {
		segs[i] = route.RouteSegment{
			SegmentIndex:     s.SegmentIndex,
			DepartureAirport: s.From,
			ArrivalAirport:   s.To,
			DepTime:          epoch.FromTime(s.DepartsAt.Time()),
			ArrTime:          epoch.FromTime(s.ArrivesAt.Time()),
			Price:            s.Price,
			CarrierCode:      s.CarrierCode,
			CarrierName:      s.CarrierName,
		}
	}
	return route.RouteResult{
		RouteID:       t.RouteID,
		Segments:      segs,
		VisitedCities: t.VisitedCities,
	}
}

// NewRouteValidation converts a validation outcome to its wire form.
func NewRouteValidation(v validation.RouteValidation) *RouteValidation {
	segs := make([]SegmentValidation, len(v.Segments))
	for i, s := range v.Segments {
		segs[i] = SegmentValidation{
			SegmentIndex:   s.SegmentIndex,
			Status:         string(s.Status),
			Confidence:     s.Confidence,
			QuotedPrice:    s.QuotedPrice,
			LivePrice:      s.LivePrice,
			PriceDiffPct:   s.PriceDiffPct,
			MatchedOfferID: s.MatchedOfferID,
			LiveCarrier:    s.LiveCarrier,
			Message:        s.Message,
		}
	}
	return &RouteValidation{
		RouteID:     v.RouteID,
		Status:      string(v.Status),
		Confidence:  v.Confidence,
		Bookable:    v.Bookable(),
		QuotedTotal: v.QuotedTotal,
		LiveTotal:   v.LiveTotal,
		Segments:    segs,
		ValidatedAt: Timestamp(v.ValidatedAt),
	}
}
