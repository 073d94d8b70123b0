// Package flights defines the flight schedule data model and the provider
// port used to load schedule snapshots into the graph cache.
package flights

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for flight data loading.
var (
	// ErrNoData indicates the provider returned an empty schedule.
	ErrNoData = errors.New("flight data source returned no records")
	// ErrInvalidRecord indicates a record failed consistency checks.
	ErrInvalidRecord = errors.New("invalid flight record")
)

// PlaceholderCarrier is the carrier code data sources use for synthetic
// routes that are not served by a real airline.
const PlaceholderCarrier = "ZZ"

// FlightRecord is one scheduled flight leg. Times are whole minutes since
// the epoch reference (see pkg/epoch). Records are passed by value and never
// modified after a snapshot is built.
type FlightRecord struct {
	DepartureAirport string
	ArrivalAirport   string
	DepTime          int64
	ArrTime          int64
	Price            float64
	CarrierCode      string
	CarrierName      string
}

// Duration returns the flight time in minutes.
func (f FlightRecord) Duration() int64 {
	return f.ArrTime - f.DepTime
}

// Validate checks internal consistency of a single record.
func (f FlightRecord) Validate() error {
	if f.DepartureAirport == "" || f.ArrivalAirport == "" {
		return fmt.Errorf("%w: missing airport code", ErrInvalidRecord)
	}
	if f.DepartureAirport == f.ArrivalAirport {
		return fmt.Errorf("%w: %s departs and arrives at the same airport",
			ErrInvalidRecord, f.DepartureAirport)
	}
	if f.ArrTime < f.DepTime {
		return fmt.Errorf("%w: %s->%s arrives at %d before departing at %d",
			ErrInvalidRecord, f.DepartureAirport, f.ArrivalAirport, f.ArrTime, f.DepTime)
	}
	if f.Price < 0 {
		return fmt.Errorf("%w: %s->%s has negative price %.2f",
			ErrInvalidRecord, f.DepartureAirport, f.ArrivalAirport, f.Price)
	}
	return nil
}

// ValidateRecords checks every record in a snapshot. The whole snapshot is
// rejected on the first inconsistency so a partially bad load never replaces
// a good graph.
func ValidateRecords(records []FlightRecord) error {
	if len(records) == 0 {
		return ErrNoData
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// Provider is the port for loading a complete schedule snapshot.
// Implementations must return internally consistent data or an error;
// ValidateRecords is applied by the graph cache on every load.
type Provider interface {
	// Load fetches all flight records for a fresh graph snapshot.
	Load(ctx context.Context) ([]FlightRecord, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}
