package route

import (
	"container/heap"
	"fmt"
	"slices"
	"sort"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/flights"
	"github.com/skyloop/skyloop/internal/graph"
)

// label is one partial-search state: a position in (airport, visited-subset)
// space with its accumulated cost and time, chained to its predecessor for
// path reconstruction.
type label struct {
	city    string
	time    int64
	cost    float64
	visited uint64
	legs    int

	prev   *label
	flight flights.FlightRecord
	taken  bool // whether this label was reached by a flight
}

// dominatesLabel reports strict Pareto dominance: a is no worse than b on
// both axes and strictly better on at least one. Exact ties are mutually
// non-dominated, so equal-cost equal-time alternative routings survive.
func dominatesLabel(a, b *label) bool {
	if a.time > b.time || a.cost > b.cost {
		return false
	}
	return a.time < b.time || a.cost < b.cost
}

// closesFreeCycle reports whether cand returned to an ancestor state without
// spending any time or money. Such labels tie with their ancestor and would
// loop forever once ties survive dominance. Time and cost only grow along a
// chain, so the walk stops at the first ancestor that differs on either.
func closesFreeCycle(cand *label) bool {
	for l := cand.prev; l != nil; l = l.prev {
		if l.time != cand.time || l.cost != cand.cost {
			return false
		}
		if l.city == cand.city && l.visited == cand.visited {
			return true
		}
	}
	return false
}

// labelQueue is a min-heap over labels ordered by (time, cost). Time leads
// so a label is only expanded once every earlier-arriving alternative has
// been processed.
type labelQueue []*label

func (q labelQueue) Len() int { return len(q) }

func (q labelQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].cost < q[j].cost
}

func (q labelQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *labelQueue) Push(x any) { *q = append(*q, x.(*label)) }

func (q *labelQueue) Pop() any {
	old := *q
	n := len(old)
	l := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return l
}

type stateKey struct {
	city    string
	visited uint64
}

// FinderConfig holds configuration for the route finder.
type FinderConfig struct {
	// Logger for search diagnostics.
	Logger zerolog.Logger

	// DefensiveCopy makes every search run against a private writable copy
	// of the graph instead of the shared frozen snapshot. O(n) per search;
	// only needed for algorithms that cannot guarantee non-mutation.
	DefensiveCopy bool

	// PruneHops restricts the search to airports within this many hops of
	// the origin and required destinations (default: 2; negative disables).
	PruneHops int
}

// Finder runs the Pareto-optimal multi-city search: a multi-criteria
// label-setting algorithm over (airport, visited-destination-subset) states.
// All working state is private per Find call, so one Finder may serve
// concurrent searches.
type Finder struct {
	logger        zerolog.Logger
	defensiveCopy bool
	pruneHops     int
}

// NewFinder creates a route finder.
func NewFinder(cfg FinderConfig) *Finder {
	pruneHops := cfg.PruneHops
	if pruneHops == 0 {
		pruneHops = 2
	}
	return &Finder{
		logger:        cfg.Logger,
		defensiveCopy: cfg.DefensiveCopy,
		pruneHops:     pruneHops,
	}
}

// Find returns the Pareto frontier of round trips satisfying the
// constraints: no returned route is dominated by another in (total cost,
// total time), and every feasible non-dominated route inside the time
// window appears. Results are sorted by ascending total cost, ties by
// ascending total time; route IDs follow that order. No feasible route
// yields an empty slice, not an error.
func (f *Finder) Find(g *graph.Graph, c TravelConstraints) ([]RouteResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	required := c.RequiredSet()
	if !g.HasAirport(c.Origin) {
		return nil, fmt.Errorf("%w: origin %s", ErrUnknownAirport, c.Origin)
	}
	for _, city := range required {
		if !g.HasAirport(city) {
			return nil, fmt.Errorf("%w: destination %s", ErrUnknownAirport, city)
		}
	}

	if f.defensiveCopy {
		g = g.DefensiveCopy()
	}

	// Bitset over required destinations.
	requiredBit := make(map[string]int, len(required))
	for i, city := range required {
		requiredBit[city] = i
	}
	fullMask := uint64(0)
	if len(required) > 0 {
		fullMask = (1 << uint(len(required))) - 1
	}

	allowed := reachableAirports(g, append([]string{c.Origin}, required...), f.pruneHops)

	maxLegs := -1
	if c.MaxStops != nil {
		maxLegs = *c.MaxStops + 1
	}

	frontiers := make(map[stateKey][]*label)
	pq := &labelQueue{}

	start := &label{city: c.Origin, time: c.TMin, visited: 0}
	frontiers[stateKey{c.Origin, 0}] = []*label{start}
	heap.Push(pq, start)

	var solutions []*label
	expanded := 0

	for pq.Len() > 0 {
		l := heap.Pop(pq).(*label)

		if l.time > c.TMax {
			continue
		}

		// A completed round trip needs an outbound and a return leg; a
		// single origin-to-origin hop does not count.
		if l.city == c.Origin && l.visited == fullMask && l.legs >= 2 {
			solutions = append(solutions, l)
			continue
		}

		if maxLegs >= 0 && l.legs >= maxLegs {
			continue
		}

		// Minimum ground time applies at required destinations only, never
		// at the origin or at transit airports.
		minDep := l.time
		if c.MinStayMinutes > 0 && l.city != c.Origin {
			if _, ok := requiredBit[l.city]; ok {
				minDep += c.MinStayMinutes
			}
		}

		view := g.FlightsForCity(l.city)
		// Flights per city are ordered by departure time; skip straight to
		// the first feasible departure.
		lo := sort.Search(view.Len(), func(i int) bool {
			return view.At(i).DepTime >= minDep
		})

		for i := lo; i < view.Len(); i++ {
			rec := view.At(i)
			if rec.ArrTime > c.TMax {
				continue
			}
			if allowed != nil {
				if _, ok := allowed[rec.ArrivalAirport]; !ok {
					continue
				}
			}

			visited := l.visited
			if bit, ok := requiredBit[rec.ArrivalAirport]; ok {
				visited |= 1 << uint(bit)
			}

			cand := &label{
				city:    rec.ArrivalAirport,
				time:    rec.ArrTime,
				cost:    l.cost + rec.Price,
				visited: visited,
				legs:    l.legs + 1,
				prev:    l,
				flight:  rec,
				taken:   true,
			}

			if closesFreeCycle(cand) {
				continue
			}

			key := stateKey{cand.city, cand.visited}
			if insertLabel(frontiers, key, cand) {
				heap.Push(pq, cand)
				expanded++
			}
		}
	}

	results := buildResults(paretoFilter(solutions))

	f.logger.Debug().
		Str("origin", c.Origin).
		Strs("required", required).
		Int("labels_expanded", expanded).
		Int("solutions", len(solutions)).
		Int("pareto_routes", len(results)).
		Msg("route search completed")

	return results, nil
}

// insertLabel adds cand to the frontier at key unless an existing label
// strictly dominates it; labels the candidate strictly dominates are
// evicted. Tied labels coexist on the frontier.
func insertLabel(frontiers map[stateKey][]*label, key stateKey, cand *label) bool {
	existing := frontiers[key]
	for _, l := range existing {
		if dominatesLabel(l, cand) {
			return false
		}
	}
	kept := existing[:0]
	for _, l := range existing {
		if dominatesLabel(cand, l) {
			continue // evicted
		}
		kept = append(kept, l)
	}
	frontiers[key] = append(kept, cand)
	return true
}

// paretoFilter keeps only the non-dominated terminal labels.
func paretoFilter(solutions []*label) []*label {
	var pareto []*label
	for _, l := range solutions {
		dominated := false
		for _, p := range pareto {
			if p.time <= l.time && p.cost <= l.cost && (p.time < l.time || p.cost < l.cost) {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}
		// Evict anything the new solution dominates.
		kept := make([]*label, 0, len(pareto)+1)
		for _, p := range pareto {
			if l.time <= p.time && l.cost <= p.cost && (l.time < p.time || l.cost < p.cost) {
				continue
			}
			kept = append(kept, p)
		}
		pareto = append(kept, l)
	}
	return pareto
}

// buildResults reconstructs segment chains from terminal labels, orders the
// routes, and assigns IDs in discovery order.
func buildResults(solutions []*label) []RouteResult {
	results := make([]RouteResult, 0, len(solutions))

	for _, sol := range solutions {
		var legs []flights.FlightRecord
		for l := sol; l != nil; l = l.prev {
			if l.taken {
				legs = append(legs, l.flight)
			}
		}
		if len(legs) == 0 {
			continue
		}
		slices.Reverse(legs)

		segments := make([]RouteSegment, len(legs))
		visited := make(map[string]struct{}, len(legs))
		for i, rec := range legs {
			segments[i] = RouteSegment{
				SegmentIndex:     i,
				DepartureAirport: rec.DepartureAirport,
				ArrivalAirport:   rec.ArrivalAirport,
				DepTime:          rec.DepTime,
				ArrTime:          rec.ArrTime,
				Price:            rec.Price,
				CarrierCode:      rec.CarrierCode,
				CarrierName:      rec.CarrierName,
			}
			visited[rec.ArrivalAirport] = struct{}{}
		}
		// The walk closes at the origin; it is not a visited destination.
		delete(visited, legs[0].DepartureAirport)

		cities := make([]string, 0, len(visited))
		for city := range visited {
			cities = append(cities, city)
		}
		slices.Sort(cities)

		results = append(results, RouteResult{Segments: segments, VisitedCities: cities})
	}

	// Stable ordering contract: ascending total cost, ties by total time.
	sort.SliceStable(results, func(i, j int) bool {
		ci, cj := results[i].TotalCost(), results[j].TotalCost()
		if ci != cj {
			return ci < cj
		}
		return results[i].TotalTime() < results[j].TotalTime()
	})
	for i := range results {
		results[i].RouteID = i
	}

	return results
}
