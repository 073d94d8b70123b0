package flights

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/pkg/epoch"
)

const (
	minutesPerDay  = int64(24 * 60)
	minutesPerWeek = 7 * minutesPerDay
)

// BaseWeek is the Monday-to-Sunday week the collected schedule covers, in
// epoch minutes. The epoch reference falls on a Monday, so week boundaries
// are multiples of minutesPerWeek.
type BaseWeek struct {
	Start int64
	End   int64
}

// BaseWeekOf derives the base week from a schedule snapshot: the week
// containing the earliest departure.
func BaseWeekOf(records []FlightRecord) BaseWeek {
	if len(records) == 0 {
		return BaseWeek{}
	}
	earliest := records[0].DepTime
	for _, rec := range records[1:] {
		if rec.DepTime < earliest {
			earliest = rec.DepTime
		}
	}
	week := earliest / minutesPerWeek
	if earliest < 0 && earliest%minutesPerWeek != 0 {
		week--
	}
	start := week * minutesPerWeek
	return BaseWeek{Start: start, End: start + minutesPerWeek - 1}
}

// Offsets returns the day offsets (multiples of 7) at which shifted copies
// of the base week overlap [tMin, tMax]. Offset 0 is the base week itself.
func (w BaseWeek) Offsets(tMin, tMax int64) []int64 {
	weeksBefore := int64(0)
	if tMin < w.Start {
		weeksBefore = (w.Start-tMin)/minutesPerWeek + 1
	}
	weeksAfter := int64(0)
	if tMax > w.End {
		weeksAfter = (tMax-w.End)/minutesPerWeek + 1
	}

	var offsets []int64
	for wk := -weeksBefore; wk <= weeksAfter; wk++ {
		shift := wk * minutesPerWeek
		if w.End+shift >= tMin && w.Start+shift <= tMax {
			offsets = append(offsets, wk*7)
		}
	}
	return offsets
}

// ExpandWeekly extrapolates one base week of schedule data across every week
// overlapping [tMin, tMax]: each needed week gets a copy of the base records
// with departure and arrival times shifted by whole weeks. When the range
// fits inside the base week the input is returned unchanged.
func ExpandWeekly(records []FlightRecord, week BaseWeek, tMin, tMax int64) []FlightRecord {
	if len(records) == 0 {
		return records
	}
	offsets := week.Offsets(tMin, tMax)
	if len(offsets) == 1 && offsets[0] == 0 {
		return records
	}

	expanded := make([]FlightRecord, 0, len(records)*len(offsets))
	for _, offsetDays := range offsets {
		shift := offsetDays * minutesPerDay
		if shift == 0 {
			expanded = append(expanded, records...)
			continue
		}
		for _, rec := range records {
			rec.DepTime += shift
			rec.ArrTime += shift
			expanded = append(expanded, rec)
		}
	}
	return expanded
}

// ExpandingProviderConfig holds configuration for ExpandingProvider.
type ExpandingProviderConfig struct {
	// WeeksAhead is how many weeks past the load time the expanded schedule
	// must cover (default 8).
	WeeksAhead int

	// Now is the clock anchoring the coverage window (optional).
	Now func() time.Time

	// Logger for expansion diagnostics.
	Logger zerolog.Logger
}

// ExpandingProvider decorates a Provider holding one representative week of
// schedule data and extrapolates it weekly, so that graph snapshots cover
// searches on dates outside the collection period.
type ExpandingProvider struct {
	inner      Provider
	weeksAhead int64
	now        func() time.Time
	logger     zerolog.Logger
}

// NewExpandingProvider wraps a provider with weekly expansion.
func NewExpandingProvider(inner Provider, cfg ExpandingProviderConfig) *ExpandingProvider {
	weeksAhead := cfg.WeeksAhead
	if weeksAhead <= 0 {
		weeksAhead = 8
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ExpandingProvider{
		inner:      inner,
		weeksAhead: int64(weeksAhead),
		now:        now,
		logger:     cfg.Logger,
	}
}

// Name returns the provider identifier.
func (p *ExpandingProvider) Name() string {
	return p.inner.Name() + "+weekly"
}

// Load fetches the base schedule and expands it from the current time
// through the configured horizon.
func (p *ExpandingProvider) Load(ctx context.Context) ([]FlightRecord, error) {
	base, err := p.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	week := BaseWeekOf(base)
	tMin := epoch.FromTime(p.now())
	tMax := tMin + p.weeksAhead*minutesPerWeek

	expanded := ExpandWeekly(base, week, tMin, tMax)
	if len(expanded) != len(base) {
		p.logger.Info().
			Str("provider", p.inner.Name()).
			Int("base_records", len(base)).
			Int("expanded_records", len(expanded)).
			Msg("expanded base week schedule")
	}
	return expanded, nil
}
