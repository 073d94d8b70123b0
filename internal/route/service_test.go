package route_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyloop/skyloop/internal/flights"
	"github.com/skyloop/skyloop/internal/graph"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/pkg/epoch"
)

func newTestService(t *testing.T, records []flights.FlightRecord) *route.Service {
	t.Helper()
	logger := zerolog.New(io.Discard)
	graphs := graph.NewCache(graph.CacheConfig{
		Provider: flights.NewStaticProvider("static", records),
		Logger:   logger,
	})
	t.Cleanup(graphs.Close)
	return route.NewService(route.ServiceConfig{Graphs: graphs, Logger: logger})
}

func TestService_FindWindow(t *testing.T) {
	svc := newTestService(t, roundTripFlights())

	results, err := svc.FindWindow(context.Background(),
		"WAW", []string{"LHR"},
		epoch.Reference, epoch.Reference.Add(7*24*time.Hour),
		route.WindowOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 220.0, results[0].TotalCost())

	// The wall-clock window converts to the minute timeline: a bound just
	// before the return arrival excludes the trip.
	results, err = svc.FindWindow(context.Background(),
		"WAW", []string{"LHR"},
		epoch.Reference, epoch.Reference.Add(48*time.Hour+10*time.Hour),
		route.WindowOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_MaxPriceTruncatesFrontier(t *testing.T) {
	records := append(roundTripFlights(),
		flights.FlightRecord{DepartureAirport: "WAW", ArrivalAirport: "LHR",
			DepTime: 8 * 60, ArrTime: 10 * 60, Price: 200, CarrierCode: "LO"},
		flights.FlightRecord{DepartureAirport: "LHR", ArrivalAirport: "WAW",
			DepTime: 15 * 60, ArrTime: 17 * 60, Price: 200, CarrierCode: "BA"},
	)
	svc := newTestService(t, records)

	results, err := svc.FindWindow(context.Background(),
		"WAW", []string{"LHR"},
		epoch.Reference, epoch.Reference.Add(7*24*time.Hour),
		route.WindowOptions{MaxPrice: 300})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 220.0, results[0].TotalCost())
}

func TestService_AvailableAirports(t *testing.T) {
	svc := newTestService(t, roundTripFlights())

	airports, err := svc.AvailableAirports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"LHR", "WAW"}, airports)
}

func TestService_HasRoute(t *testing.T) {
	svc := newTestService(t, roundTripFlights())

	ok, err := svc.HasRoute(context.Background(), "WAW", "LHR")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasRoute(context.Background(), "LHR", "CDG")
	require.NoError(t, err)
	assert.False(t, ok)
}
