// Package graph provides the immutable flight graph snapshot and its
// double-buffered cache. A snapshot owns one contiguous, airport-sorted
// record store plus a per-airport index, and is shared read-only between all
// concurrent searches until the cache swaps in a newer one.
package graph

import (
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"time"

	"github.com/skyloop/skyloop/internal/flights"
)

// Sentinel errors for graph operations.
var (
	// ErrNotInitialized indicates the cold-start load failed and no snapshot
	// has ever been built for this cache instance.
	ErrNotInitialized = errors.New("flight graph not initialized")
	// ErrMutationGuard indicates code attempted to write into a frozen
	// snapshot. This is a programming error; callers needing a writable
	// graph must request DefensiveCopy.
	ErrMutationGuard = errors.New("mutation attempted on frozen flight store")
)

// CityIndex is a half-open [Start, End) range into the airport-sorted record
// store covering all flights departing from one airport.
type CityIndex struct {
	Start int
	End   int
}

// RecordStore is the backing storage for one graph snapshot. Once frozen,
// every write attempt fails with ErrMutationGuard; reads return records by
// value so callers can never reach the shared memory.
type RecordStore struct {
	records []flights.FlightRecord
	frozen  bool
}

// Len returns the number of records in the store.
func (s *RecordStore) Len() int {
	return len(s.records)
}

// At returns a copy of the record at index i.
func (s *RecordStore) At(i int) flights.FlightRecord {
	return s.records[i]
}

// Set overwrites the record at index i. Fails with ErrMutationGuard on a
// frozen store.
func (s *RecordStore) Set(i int, rec flights.FlightRecord) error {
	if s.frozen {
		return fmt.Errorf("%w: index %d", ErrMutationGuard, i)
	}
	if i < 0 || i >= len(s.records) {
		return fmt.Errorf("record index %d out of range [0,%d)", i, len(s.records))
	}
	s.records[i] = rec
	return nil
}

// Frozen reports whether the store rejects writes.
func (s *RecordStore) Frozen() bool {
	return s.frozen
}

// View is a zero-copy window over a contiguous run of store records.
// The zero value is an empty view.
type View struct {
	store *RecordStore
	start int
	end   int
}

// Len returns the number of records in the view.
func (v View) Len() int {
	return v.end - v.start
}

// At returns a copy of the i-th record in the view.
func (v View) At(i int) flights.FlightRecord {
	return v.store.At(v.start + i)
}

// Set writes through to the backing store. On a frozen store this returns
// ErrMutationGuard; it exists so algorithms that need in-place edits fail
// loudly instead of corrupting the shared snapshot.
func (v View) Set(i int, rec flights.FlightRecord) error {
	if i < 0 || i >= v.Len() {
		return fmt.Errorf("view index %d out of range [0,%d)", i, v.Len())
	}
	return v.store.Set(v.start+i, rec)
}

// Graph is one immutable flight graph snapshot: records sorted by departure
// airport (then departure time) with an index for O(1) per-airport lookup.
type Graph struct {
	store    *RecordStore
	index    map[string]CityIndex
	airports map[string]struct{}
	routes   map[string]struct{}
	builtAt  time.Time
	version  string
}

// New builds a snapshot from provider records. The input is validated,
// copied, sorted, indexed, and frozen; the caller's slice is not retained.
func New(records []flights.FlightRecord) (*Graph, error) {
	if err := flights.ValidateRecords(records); err != nil {
		return nil, err
	}

	sorted := make([]flights.FlightRecord, len(records))
	copy(sorted, records)
	slices.SortStableFunc(sorted, func(a, b flights.FlightRecord) int {
		if c := strings.Compare(a.DepartureAirport, b.DepartureAirport); c != 0 {
			return c
		}
		switch {
		case a.DepTime < b.DepTime:
			return -1
		case a.DepTime > b.DepTime:
			return 1
		default:
			return 0
		}
	})

	index := buildCityIndex(sorted)

	airports := make(map[string]struct{}, len(index))
	routes := make(map[string]struct{})
	for _, rec := range sorted {
		airports[rec.DepartureAirport] = struct{}{}
		airports[rec.ArrivalAirport] = struct{}{}
		routes[routeKey(rec.DepartureAirport, rec.ArrivalAirport)] = struct{}{}
	}

	return &Graph{
		store:    &RecordStore{records: sorted, frozen: true},
		index:    index,
		airports: airports,
		routes:   routes,
		builtAt:  time.Now(),
		version:  versionHash(sorted),
	}, nil
}

// buildCityIndex scans the sorted records once and records the half-open
// boundary of each departure airport's run. The resulting ranges partition
// the store exactly.
func buildCityIndex(sorted []flights.FlightRecord) map[string]CityIndex {
	index := make(map[string]CityIndex)
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].DepartureAirport != sorted[start].DepartureAirport {
			index[sorted[start].DepartureAirport] = CityIndex{Start: start, End: i}
			start = i
		}
	}
	return index
}

// FlightsForCity returns a zero-copy view of flights departing from the
// given airport, ordered by departure time. Unknown airports yield an empty
// view, not an error.
func (g *Graph) FlightsForCity(code string) View {
	idx, ok := g.index[code]
	if !ok {
		return View{store: g.store}
	}
	return View{store: g.store, start: idx.Start, end: idx.End}
}

// HasCity reports whether the airport has any departing flights.
func (g *Graph) HasCity(code string) bool {
	_, ok := g.index[code]
	return ok
}

// HasAirport reports whether the airport appears anywhere in the snapshot,
// as a departure or an arrival.
func (g *Graph) HasAirport(code string) bool {
	_, ok := g.airports[code]
	return ok
}

// HasRoute reports whether a direct flight exists between the two airports.
func (g *Graph) HasRoute(origin, destination string) bool {
	_, ok := g.routes[routeKey(origin, destination)]
	return ok
}

// Airports returns all airport codes in the snapshot, sorted.
func (g *Graph) Airports() []string {
	out := make([]string, 0, len(g.airports))
	for code := range g.airports {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}

// DepartureAirports returns all airports with at least one departing flight,
// sorted.
func (g *Graph) DepartureAirports() []string {
	out := make([]string, 0, len(g.index))
	for code := range g.index {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}

// Index returns the city index range for an airport.
func (g *Graph) Index(code string) (CityIndex, bool) {
	idx, ok := g.index[code]
	return idx, ok
}

// Len returns the number of flight records in the snapshot.
func (g *Graph) Len() int {
	return g.store.Len()
}

// BuiltAt returns the snapshot build timestamp.
func (g *Graph) BuiltAt() time.Time {
	return g.builtAt
}

// Version returns a short content hash used to detect snapshot changes.
func (g *Graph) Version() string {
	return g.version
}

// Records returns the frozen backing store.
func (g *Graph) Records() *RecordStore {
	return g.store
}

// DefensiveCopy returns a deep, writable copy of the snapshot for
// algorithms that cannot guarantee non-mutation. The copy shares nothing
// with the original; building it costs O(n).
func (g *Graph) DefensiveCopy() *Graph {
	records := make([]flights.FlightRecord, g.store.Len())
	copy(records, g.store.records)

	index := make(map[string]CityIndex, len(g.index))
	for k, v := range g.index {
		index[k] = v
	}
	airports := make(map[string]struct{}, len(g.airports))
	for k := range g.airports {
		airports[k] = struct{}{}
	}
	routes := make(map[string]struct{}, len(g.routes))
	for k := range g.routes {
		routes[k] = struct{}{}
	}

	return &Graph{
		store:    &RecordStore{records: records, frozen: false},
		index:    index,
		airports: airports,
		routes:   routes,
		builtAt:  g.builtAt,
		version:  g.version,
	}
}

func routeKey(origin, destination string) string {
	return origin + ">" + destination
}

// versionHash computes a short content hash over the sorted records.
func versionHash(records []flights.FlightRecord) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", len(records))
	for _, rec := range records {
		fmt.Fprintf(h, "|%s>%s@%d-%d:%.2f",
			rec.DepartureAirport, rec.ArrivalAirport, rec.DepTime, rec.ArrTime, rec.Price)
	}
	return fmt.Sprintf("%012x", h.Sum64())[:12]
}
