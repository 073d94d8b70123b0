package flights

import (
	"context"
	"sync"
)

// StaticProvider serves a fixed set of records from memory. Used in tests
// and single-process demos; Replace swaps the dataset for cache refresh
// scenarios.
type StaticProvider struct {
	mu      sync.RWMutex
	records []FlightRecord
	name    string
}

// NewStaticProvider creates a provider over a copy of the given records.
func NewStaticProvider(name string, records []FlightRecord) *StaticProvider {
	cp := make([]FlightRecord, len(records))
	copy(cp, records)
	return &StaticProvider{records: cp, name: name}
}

// Load returns a copy of the current dataset.
func (p *StaticProvider) Load(_ context.Context) ([]FlightRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.records) == 0 {
		return nil, ErrNoData
	}
	cp := make([]FlightRecord, len(p.records))
	copy(cp, p.records)
	return cp, nil
}

// Name returns the provider identifier.
func (p *StaticProvider) Name() string {
	if p.name == "" {
		return "static"
	}
	return p.name
}

// Replace swaps the dataset served by subsequent Load calls.
func (p *StaticProvider) Replace(records []FlightRecord) {
	cp := make([]FlightRecord, len(records))
	copy(cp, records)
	p.mu.Lock()
	p.records = cp
	p.mu.Unlock()
}
