package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/skyloop/skyloop/internal/api/models"
	"github.com/skyloop/skyloop/internal/api/response"
	"github.com/skyloop/skyloop/internal/graph"
	"github.com/skyloop/skyloop/internal/planner"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/internal/validation"
)

// TripHandler handles route search and live validation endpoints.
type TripHandler struct {
	planner *planner.Planner
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(p *planner.Planner) *TripHandler {
	return &TripHandler{planner: p}
}

// Search handles POST /v1/trips:search - find Pareto-optimal round trips.
func (h *TripHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.TripSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := req.FieldErrors(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid search request", errs)
		return
	}

	result, err := h.planner.Search(r.Context(), planner.SearchRequest{
		Origin:       req.Origin,
		Destinations: req.Destinations,
		DepartAfter:  req.DepartAfter.Time(),
		ReturnBefore: req.ReturnBefore.Time(),
		MinStay:      time.Duration(req.MinStayMinutes) * time.Minute,
		MaxStops:     req.MaxStops,
		MaxPrice:     req.MaxPrice,
		Validate:     req.ValidateLive,
	})
	if err != nil {
		writeSearchError(w, r, err)
		return
	}

	routes := make([]models.TripRoute, len(result.Routes))
	for i, rt := range result.Routes {
		routes[i] = models.NewTripRoute(rt)
	}
	for _, vr := range result.Validated {
		if vr.Validation == nil {
			continue
		}
		id := vr.Validation.RouteID
		if id >= 0 && id < len(routes) {
			routes[id].Validation = models.NewRouteValidation(*vr.Validation)
		}
	}

	response.JSON(w, r, http.StatusOK, models.TripSearchResponse{
		Routes:       routes,
		Count:        len(routes),
		GraphVersion: result.GraphVersion,
	})
}

// Validate handles POST /v1/trips:validate - re-check previously found
// routes against live offers.
func (h *TripHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.TripValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := req.FieldErrors(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid validation request", errs)
		return
	}

	routes := make([]route.RouteResult, len(req.Routes))
	for i, rt := range req.Routes {
		routes[i] = rt.RouteResult()
	}
	departDate := req.Routes[0].Segments[0].DepartsAt.Time()

	results, err := h.planner.ValidateRoutes(r.Context(), routes, departDate)
	if err != nil {
		if errors.Is(err, validation.ErrClosed) {
			response.ServiceUnavailable(w, r, "live validation is not available")
			return
		}
		response.InternalError(w, r, "route validation failed")
		return
	}

	// Routes past the validation cap come back unchecked, without a
	// validation block.
	out := make([]models.TripRoute, len(results))
	for i, vr := range results {
		out[i] = models.NewTripRoute(vr.Route)
		if vr.Validation != nil {
			out[i].Validation = models.NewRouteValidation(*vr.Validation)
		}
	}
	response.JSON(w, r, http.StatusOK, models.TripValidateResponse{Results: out})
}

// Airports handles GET /v1/airports - list airports in the current graph.
func (h *TripHandler) Airports(w http.ResponseWriter, r *http.Request) {
	airports, err := h.planner.AvailableAirports(r.Context())
	if err != nil {
		writeSearchError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.AirportsResponse{
		Airports:     airports,
		Count:        len(airports),
		GraphVersion: h.planner.GraphVersion(),
	})
}

// writeSearchError maps search failures onto problem responses.
func writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, route.ErrInvalidConstraints):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, route.ErrUnknownAirport):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, graph.ErrNotInitialized):
		response.ServiceUnavailable(w, r, "flight data is not available yet")
	default:
		response.InternalError(w, r, "route search failed")
	}
}
