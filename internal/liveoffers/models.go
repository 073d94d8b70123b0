// Package liveoffers defines the live flight offer model and the source
// port used to reconcile cached routes against current market prices.
package liveoffers

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for live offer sources.
var (
	// ErrRateLimited indicates the source rejected the request after all
	// rate-limit retries were exhausted.
	ErrRateLimited = errors.New("live offer source rate limited")
	// ErrUnavailable indicates the source failed or timed out.
	ErrUnavailable = errors.New("live offer source unavailable")
	// ErrBadRequest indicates the source rejected the query as malformed.
	ErrBadRequest = errors.New("live offer query rejected")
)

// Offer is one live one-way offer returned by a source.
type Offer struct {
	ID            string
	CarrierCode   string
	CarrierName   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	Price         float64
	Currency      string
	Stops         int
}

// NonStop reports whether the offer has no intermediate stops.
func (o Offer) NonStop() bool {
	return o.Stops == 0
}

// Query asks a source for live offers on one leg and date.
type Query struct {
	DepartureAirport string
	ArrivalAirport   string
	DepartureDate    time.Time // date portion only
}

// Source is the port for live offer lookups. Implementations handle their
// own transient-failure retries; errors returned here are final for the
// request.
type Source interface {
	// Search returns live offers for the leg, possibly empty.
	Search(ctx context.Context, q Query) ([]Offer, error)
	// Name returns the source identifier for logging and metrics.
	Name() string
}

// Error provides detailed error information from a live offer source.
type Error struct {
	Source  string // Source that generated the error
	Code    string // Error code from the source
	Message string // Human-readable error message
	Err     error  // Underlying sentinel error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether the error is a rate-limit rejection.
func (e *Error) IsRateLimit() bool {
	return errors.Is(e.Err, ErrRateLimited)
}
