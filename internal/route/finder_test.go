package route_test

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyloop/skyloop/internal/flights"
	"github.com/skyloop/skyloop/internal/graph"
	"github.com/skyloop/skyloop/internal/route"
)

const day = int64(24 * 60)

func newFinder() *route.Finder {
	return route.NewFinder(route.FinderConfig{Logger: zerolog.New(io.Discard)})
}

func buildGraph(t *testing.T, records []flights.FlightRecord) *graph.Graph {
	t.Helper()
	g, err := graph.New(records)
	require.NoError(t, err)
	return g
}

// roundTripFlights is the minimal feasible schedule: out on day 0, back on
// day 2.
func roundTripFlights() []flights.FlightRecord {
	return []flights.FlightRecord{
		{DepartureAirport: "WAW", ArrivalAirport: "LHR",
			DepTime: 10 * 60, ArrTime: 12*60 + 15, Price: 100, CarrierCode: "LO"},
		{DepartureAirport: "LHR", ArrivalAirport: "WAW",
			DepTime: 2*day + 9*60, ArrTime: 2*day + 11*60, Price: 120, CarrierCode: "BA"},
	}
}

func weekWindow() route.TravelConstraints {
	return route.TravelConstraints{
		Origin:   "WAW",
		Required: []string{"LHR"},
		TMin:     0,
		TMax:     7 * day,
	}
}

func TestFind_RoundTrip(t *testing.T) {
	g := buildGraph(t, roundTripFlights())

	results, err := newFinder().Find(g, weekWindow())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 0, r.RouteID)
	assert.Equal(t, 2, r.NumSegments())
	assert.Equal(t, "WAW", r.StartCity())
	assert.Equal(t, "WAW", r.EndCity())
	assert.Equal(t, []string{"LHR"}, r.VisitedCities)
	assert.Equal(t, 220.0, r.TotalCost())
	assert.Equal(t, 2*day+11*60-10*60, r.TotalTime())

	// Segment indices follow leg order.
	assert.Equal(t, 0, r.Segments[0].SegmentIndex)
	assert.Equal(t, 1, r.Segments[1].SegmentIndex)
	assert.Equal(t, "LO", r.Segments[0].CarrierCode)
}

func TestFind_ParetoFrontier(t *testing.T) {
	// A same-day expensive round trip alongside the cheap two-day one:
	// faster but pricier, so both survive.
	records := append(roundTripFlights(),
		flights.FlightRecord{DepartureAirport: "WAW", ArrivalAirport: "LHR",
			DepTime: 8 * 60, ArrTime: 10 * 60, Price: 200, CarrierCode: "LO"},
		flights.FlightRecord{DepartureAirport: "LHR", ArrivalAirport: "WAW",
			DepTime: 15 * 60, ArrTime: 17 * 60, Price: 200, CarrierCode: "BA"},
	)
	g := buildGraph(t, records)

	results, err := newFinder().Find(g, weekWindow())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Cheapest first.
	assert.Equal(t, 220.0, results[0].TotalCost())
	assert.Equal(t, 400.0, results[1].TotalCost())
	assert.Less(t, results[1].TotalTime(), results[0].TotalTime())

	// The frontier is mutually non-dominated.
	assert.False(t, results[0].Dominates(results[1]))
	assert.False(t, results[1].Dominates(results[0]))

	// Route IDs follow the output order.
	assert.Equal(t, 0, results[0].RouteID)
	assert.Equal(t, 1, results[1].RouteID)
}

func TestFind_DominatedRouteExcluded(t *testing.T) {
	// A second return leg at the same time but a higher price can only form
	// dominated routes.
	records := append(roundTripFlights(),
		flights.FlightRecord{DepartureAirport: "LHR", ArrivalAirport: "WAW",
			DepTime: 2*day + 9*60, ArrTime: 2*day + 11*60, Price: 500, CarrierCode: "ZZ"},
	)
	g := buildGraph(t, records)

	results, err := newFinder().Find(g, weekWindow())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 220.0, results[0].TotalCost())
}

func TestFind_TiedRoutesBothReturned(t *testing.T) {
	// Two return legs with identical schedule and price but different
	// carriers are mutually non-dominated.
	records := append(roundTripFlights(),
		flights.FlightRecord{DepartureAirport: "LHR", ArrivalAirport: "WAW",
			DepTime: 2*day + 9*60, ArrTime: 2*day + 11*60, Price: 120, CarrierCode: "W6"},
	)
	g := buildGraph(t, records)

	results, err := newFinder().Find(g, weekWindow())
	require.NoError(t, err)
	require.Len(t, results, 2)

	carriers := []string{results[0].Segments[1].CarrierCode, results[1].Segments[1].CarrierCode}
	assert.ElementsMatch(t, []string{"BA", "W6"}, carriers)
	for _, rt := range results {
		assert.Equal(t, 220.0, rt.TotalCost())
	}
}

func TestFind_MultiCityVisitsAllDestinations(t *testing.T) {
	records := []flights.FlightRecord{
		{DepartureAirport: "WAW", ArrivalAirport: "LHR",
			DepTime: 10 * 60, ArrTime: 12 * 60, Price: 100, CarrierCode: "LO"},
		{DepartureAirport: "LHR", ArrivalAirport: "CDG",
			DepTime: day + 10*60, ArrTime: day + 11*60, Price: 50, CarrierCode: "AF"},
		{DepartureAirport: "CDG", ArrivalAirport: "WAW",
			DepTime: 2*day + 10*60, ArrTime: 2*day + 12*60, Price: 80, CarrierCode: "LO"},
	}
	g := buildGraph(t, records)

	results, err := newFinder().Find(g, route.TravelConstraints{
		Origin:   "WAW",
		Required: []string{"CDG", "LHR"},
		TMin:     0,
		TMax:     7 * day,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, []string{"CDG", "LHR"}, r.VisitedCities)
	assert.Equal(t, []string{"WAW", "LHR", "CDG", "WAW"}, r.RouteCities())
	assert.Equal(t, 230.0, r.TotalCost())
}

func TestFind_InfeasibleWindow(t *testing.T) {
	g := buildGraph(t, roundTripFlights())

	c := weekWindow()
	c.TMax = day // return leg lands on day 2

	results, err := newFinder().Find(g, c)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFind_MinStay(t *testing.T) {
	g := buildGraph(t, roundTripFlights())

	// Ground time at LHR is 2685 minutes (arrival 12:15 day 0, departure
	// 09:00 day 2).
	c := weekWindow()
	c.MinStayMinutes = 2000
	results, err := newFinder().Find(g, c)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	c.MinStayMinutes = 3000
	results, err = newFinder().Find(g, c)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFind_MinStayNotAppliedAtTransit(t *testing.T) {
	// LHR is reached via a tight connection in AMS; the stay minimum binds
	// at the required destination only.
	records := []flights.FlightRecord{
		{DepartureAirport: "WAW", ArrivalAirport: "AMS",
			DepTime: 8 * 60, ArrTime: 10 * 60, Price: 60, CarrierCode: "KL"},
		{DepartureAirport: "AMS", ArrivalAirport: "LHR",
			DepTime: 10*60 + 30, ArrTime: 11*60 + 30, Price: 40, CarrierCode: "KL"},
		{DepartureAirport: "LHR", ArrivalAirport: "WAW",
			DepTime: 2*day + 9*60, ArrTime: 2*day + 11*60, Price: 120, CarrierCode: "BA"},
	}
	g := buildGraph(t, records)

	c := weekWindow()
	c.MinStayMinutes = 12 * 60 // far above the 30 minute AMS connection
	results, err := newFinder().Find(g, c)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].NumSegments())
}

func TestFind_MaxStops(t *testing.T) {
	// Direct round trip plus a cheaper but slower one-stop outbound via AMS.
	records := append(roundTripFlights(),
		flights.FlightRecord{DepartureAirport: "WAW", ArrivalAirport: "AMS",
			DepTime: 6 * 60, ArrTime: 8 * 60, Price: 30, CarrierCode: "KL"},
		flights.FlightRecord{DepartureAirport: "AMS", ArrivalAirport: "LHR",
			DepTime: 13 * 60, ArrTime: 14 * 60, Price: 30, CarrierCode: "KL"},
	)
	g := buildGraph(t, records)

	unlimited, err := newFinder().Find(g, weekWindow())
	require.NoError(t, err)
	require.Len(t, unlimited, 2)
	assert.Equal(t, 180.0, unlimited[0].TotalCost()) // via AMS
	assert.Equal(t, 220.0, unlimited[1].TotalCost()) // direct

	c := weekWindow()
	maxStops := 1
	c.MaxStops = &maxStops
	capped, err := newFinder().Find(g, c)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, 220.0, capped[0].TotalCost())
}

func TestFind_UnknownAirport(t *testing.T) {
	g := buildGraph(t, roundTripFlights())
	f := newFinder()

	c := weekWindow()
	c.Origin = "XXX"
	_, err := f.Find(g, c)
	assert.ErrorIs(t, err, route.ErrUnknownAirport)

	c = weekWindow()
	c.Required = []string{"XXX"}
	_, err = f.Find(g, c)
	assert.ErrorIs(t, err, route.ErrUnknownAirport)
}

func TestFind_InvalidConstraints(t *testing.T) {
	g := buildGraph(t, roundTripFlights())
	f := newFinder()

	tests := []struct {
		name   string
		mutate func(*route.TravelConstraints)
	}{
		{"empty origin", func(c *route.TravelConstraints) { c.Origin = "" }},
		{"window inverted", func(c *route.TravelConstraints) { c.TMin = 10; c.TMax = 5 }},
		{"origin as destination", func(c *route.TravelConstraints) { c.Required = []string{"WAW"} }},
		{"negative min stay", func(c *route.TravelConstraints) { c.MinStayMinutes = -1 }},
		{"negative max price", func(c *route.TravelConstraints) { c.MaxPrice = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := weekWindow()
			tt.mutate(&c)
			_, err := f.Find(g, c)
			assert.ErrorIs(t, err, route.ErrInvalidConstraints)
		})
	}
}

func TestFind_TooManyDestinations(t *testing.T) {
	g := buildGraph(t, roundTripFlights())

	c := weekWindow()
	c.Required = make([]string, route.MaxRequiredDestinations+1)
	for i := range c.Required {
		c.Required[i] = "LHR"
	}

	_, err := newFinder().Find(g, c)
	assert.ErrorIs(t, err, route.ErrInvalidConstraints)
}

func TestConstraints_RequiredSetDeduplicates(t *testing.T) {
	c := route.TravelConstraints{Required: []string{"LHR", "CDG", "LHR"}}
	assert.Equal(t, []string{"CDG", "LHR"}, c.RequiredSet())
}
