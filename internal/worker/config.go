// Package worker provides background job processing for SkyLoop.
package worker

import (
	"sort"
	"time"
)

// WatchedTrip represents a trip whose routes and live prices are checked
// on every refresh cycle.
type WatchedTrip struct {
	// Name is the human-readable name of the watch.
	Name string

	// Origin is the airport the round trip starts and ends at.
	Origin string

	// Destinations are the airports the trip must visit.
	Destinations []string

	// WindowDays bounds the trip: depart after the next midnight UTC and
	// return within this many days.
	// Default: 30
	WindowDays int

	// MinStay is the minimum ground time at each destination.
	MinStay time.Duration

	// Priority determines check order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Trips are the watched trips checked after each graph rebuild.
	Trips []WatchedTrip

	// Interval is the period between scheduled refresh runs.
	// Default: 1 hour
	Interval time.Duration

	// Timeout is the timeout for a full refresh run.
	// Default: 5 minutes
	Timeout time.Duration

	// RefreshGraph enables the flight graph rebuild.
	// Default: true
	RefreshGraph bool

	// CheckTrips enables watched trip checks.
	// Default: true
	CheckTrips bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:     time.Hour,
		Timeout:      5 * time.Minute,
		RefreshGraph: true,
		CheckTrips:   true,
	}
}

// SortedTrips returns the watched trips ordered by priority.
func (c RefreshConfig) SortedTrips() []WatchedTrip {
	trips := make([]WatchedTrip, len(c.Trips))
	copy(trips, c.Trips)
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].Priority < trips[j].Priority
	})
	return trips
}
