package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyloop/skyloop/internal/api"
	"github.com/skyloop/skyloop/internal/api/models"
	"github.com/skyloop/skyloop/internal/flights"
	"github.com/skyloop/skyloop/internal/graph"
	"github.com/skyloop/skyloop/internal/planner"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/pkg/epoch"
)

const day = int64(24 * 60)

// testFlights is a tiny schedule: a WAW<->LHR round trip plus an unrelated
// leg, all on the minute timeline starting at the epoch.
func testFlights() []flights.FlightRecord {
	return []flights.FlightRecord{
		{DepartureAirport: "WAW", ArrivalAirport: "LHR",
			DepTime: 10 * 60, ArrTime: 12*60 + 15, Price: 100, CarrierCode: "LO", CarrierName: "LOT Polish Airlines"},
		{DepartureAirport: "LHR", ArrivalAirport: "WAW",
			DepTime: 2*day + 9*60, ArrTime: 2*day + 11*60, Price: 120, CarrierCode: "BA", CarrierName: "British Airways"},
		{DepartureAirport: "LHR", ArrivalAirport: "CDG",
			DepTime: day + 8*60, ArrTime: day + 9*60, Price: 60, CarrierCode: "AF", CarrierName: "Air France"},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zerolog.New(io.Discard)

	graphs := graph.NewCache(graph.CacheConfig{
		Provider: flights.NewStaticProvider("static", testFlights()),
		Logger:   logger,
	})
	t.Cleanup(graphs.Close)
	require.NoError(t, graphs.Warm(context.Background()))

	p := planner.New(planner.Config{
		Graphs: graphs,
		Routes: route.NewService(route.ServiceConfig{Graphs: graphs, Logger: logger}),
		Logger: logger,
	})

	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    logger,
		Planner:   p,
	})
}

func searchBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(models.TripSearchRequest{
		Origin:       "WAW",
		Destinations: []string{"LHR"},
		DepartAfter:  models.Timestamp(epoch.Reference),
		ReturnBefore: models.Timestamp(epoch.Reference.Add(7 * 24 * time.Hour)),
	})
	require.NoError(t, err)
	return body
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.NotEmpty(t, health.Time)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.True(t, status.Graph.Ready)
	assert.NotEmpty(t, status.Graph.Version)
}

func TestRouter_GraphRefresh(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ops/graph:refresh", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.GraphStatus
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)
	assert.True(t, status.Ready)
}

func TestRouter_Airports(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/airports", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.AirportsResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.Equal(t, []string{"CDG", "LHR", "WAW"}, resp.Airports)
	assert.Equal(t, 3, resp.Count)
	assert.NotEmpty(t, resp.GraphVersion)
}

func TestRouter_TripSearch(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/trips:search", bytes.NewReader(searchBody(t)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.TripSearchResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)

	require.Equal(t, 1, resp.Count)
	rt := resp.Routes[0]
	assert.Equal(t, 220.0, rt.TotalPrice)
	assert.Equal(t, []string{"LHR"}, rt.VisitedCities)
	require.Len(t, rt.Segments, 2)
	assert.Equal(t, "WAW", rt.Segments[0].From)
	assert.Equal(t, "LHR", rt.Segments[0].To)
	assert.Equal(t, "WAW", rt.Segments[1].To)
	assert.Nil(t, rt.Validation)
	assert.NotEmpty(t, resp.GraphVersion)
}

func TestRouter_TripSearch_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	// missing origin and bounds
	body, _ := json.Marshal(models.TripSearchRequest{Destinations: []string{"LHR"}})

	req := httptest.NewRequest(http.MethodPost, "/v1/trips:search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)

	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.NotEmpty(t, problem.TraceID)
	assert.NotEmpty(t, problem.Errors)
}

func TestRouter_TripSearch_UnknownAirport(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(models.TripSearchRequest{
		Origin:       "XXX",
		Destinations: []string{"LHR"},
		DepartAfter:  models.Timestamp(epoch.Reference),
		ReturnBefore: models.Timestamp(epoch.Reference.Add(7 * 24 * time.Hour)),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/trips:search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_TripValidate_NoValidator(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(models.TripValidateRequest{
		Routes: []models.TripRoute{{
			RouteID: 0,
			Segments: []models.FlightSegment{{
				From: "WAW", To: "LHR",
				DepartsAt: models.Timestamp(epoch.ToTime(10 * 60)),
				ArrivesAt: models.Timestamp(epoch.ToTime(12 * 60)),
				Price:     100, CarrierCode: "LO",
			}},
		}},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/trips:validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// the test planner has no live offer source configured
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
