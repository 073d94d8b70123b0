// Package route provides the multi-city route model and the Pareto-optimal
// route search over a flight graph snapshot.
package route

import (
	"errors"
	"fmt"
	"slices"
)

// Sentinel errors for route searches.
var (
	// ErrInvalidConstraints indicates malformed search constraints.
	ErrInvalidConstraints = errors.New("invalid travel constraints")
	// ErrUnknownAirport indicates a referenced airport is absent from the
	// current flight graph.
	ErrUnknownAirport = errors.New("airport not found in flight graph")
)

// MaxRequiredDestinations caps the destination count. The search state space
// grows as 2^n in the number of required destinations, so the cap bounds
// worst-case runtime and memory.
const MaxRequiredDestinations = 20

// RouteSegment is one flight leg of a found route.
type RouteSegment struct {
	SegmentIndex     int     `json:"segment_index"`
	DepartureAirport string  `json:"departure_airport"`
	ArrivalAirport   string  `json:"arrival_airport"`
	DepTime          int64   `json:"dep_time"`
	ArrTime          int64   `json:"arr_time"`
	Price            float64 `json:"price"`
	CarrierCode      string  `json:"carrier_code,omitempty"`
	CarrierName      string  `json:"carrier_name,omitempty"`
}

// Duration returns the leg's flight time in minutes.
func (s RouteSegment) Duration() int64 {
	return s.ArrTime - s.DepTime
}

// RouteResult is a complete round trip: a closed walk starting and ending at
// the origin that visits every required destination. Results are immutable
// once produced; they hold no references into the graph snapshot.
type RouteResult struct {
	RouteID       int            `json:"route_id"`
	Segments      []RouteSegment `json:"segments"`
	VisitedCities []string       `json:"visited_cities"`
}

// TotalCost returns the sum of segment prices.
func (r RouteResult) TotalCost() float64 {
	var total float64
	for _, s := range r.Segments {
		total += s.Price
	}
	return total
}

// TotalTime returns the elapsed minutes from first departure to last
// arrival.
func (r RouteResult) TotalTime() int64 {
	if len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].ArrTime - r.Segments[0].DepTime
}

// NumSegments returns the number of flight legs.
func (r RouteResult) NumSegments() int {
	return len(r.Segments)
}

// StartCity returns the origin airport.
func (r RouteResult) StartCity() string {
	if len(r.Segments) == 0 {
		return ""
	}
	return r.Segments[0].DepartureAirport
}

// EndCity returns the final arrival airport.
func (r RouteResult) EndCity() string {
	if len(r.Segments) == 0 {
		return ""
	}
	return r.Segments[len(r.Segments)-1].ArrivalAirport
}

// DepartureTime returns the first segment's departure minute.
func (r RouteResult) DepartureTime() int64 {
	if len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[0].DepTime
}

// ArrivalTime returns the last segment's arrival minute.
func (r RouteResult) ArrivalTime() int64 {
	if len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].ArrTime
}

// RouteCities returns the ordered airport sequence of the walk: the first
// departure followed by every arrival. For a valid round trip the first and
// last entries are the origin.
func (r RouteResult) RouteCities() []string {
	if len(r.Segments) == 0 {
		return nil
	}
	cities := make([]string, 0, len(r.Segments)+1)
	cities = append(cities, r.Segments[0].DepartureAirport)
	for _, s := range r.Segments {
		cities = append(cities, s.ArrivalAirport)
	}
	return cities
}

// Dominates reports whether r is no worse than other in both total cost and
// total time, and strictly better in at least one.
func (r RouteResult) Dominates(other RouteResult) bool {
	rc, oc := r.TotalCost(), other.TotalCost()
	rt, ot := r.TotalTime(), other.TotalTime()
	return rc <= oc && rt <= ot && (rc < oc || rt < ot)
}

// TravelConstraints are the validated parameters of one route search.
// Times are epoch minutes.
type TravelConstraints struct {
	// Origin is the round trip's start and end airport.
	Origin string

	// Required is the set of airports that must be visited.
	Required []string

	// TMin is the earliest allowed departure of the first leg.
	TMin int64

	// TMax is the latest allowed arrival of the last leg.
	TMax int64

	// MinStayMinutes is the minimum ground time at each required
	// destination before the onward flight (0 = no constraint).
	MinStayMinutes int64

	// MaxStops caps intermediate stops; nil means unlimited.
	MaxStops *int

	// MaxPrice caps total route cost; 0 means unlimited.
	MaxPrice float64
}

// Validate checks the constraints before a search runs.
func (c TravelConstraints) Validate() error {
	if c.Origin == "" {
		return fmt.Errorf("%w: origin is empty", ErrInvalidConstraints)
	}
	if c.TMin > c.TMax {
		return fmt.Errorf("%w: t_min (%d) after t_max (%d)", ErrInvalidConstraints, c.TMin, c.TMax)
	}
	if slices.Contains(c.Required, c.Origin) {
		return fmt.Errorf("%w: origin %s listed as destination", ErrInvalidConstraints, c.Origin)
	}
	if len(c.Required) > MaxRequiredDestinations {
		return fmt.Errorf("%w: %d destinations exceeds limit of %d",
			ErrInvalidConstraints, len(c.Required), MaxRequiredDestinations)
	}
	if c.MinStayMinutes < 0 {
		return fmt.Errorf("%w: negative min stay", ErrInvalidConstraints)
	}
	if c.MaxStops != nil && *c.MaxStops < 0 {
		return fmt.Errorf("%w: negative max stops", ErrInvalidConstraints)
	}
	if c.MaxPrice < 0 {
		return fmt.Errorf("%w: negative max price", ErrInvalidConstraints)
	}
	return nil
}

// RequiredSet returns the deduplicated required destinations.
func (c TravelConstraints) RequiredSet() []string {
	out := slices.Clone(c.Required)
	slices.Sort(out)
	return slices.Compact(out)
}
