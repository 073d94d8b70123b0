package planner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/skyloop/skyloop/internal/validation"
)

const meterName = "github.com/skyloop/skyloop/internal/planner"

// Metrics holds the OpenTelemetry instruments for trip planning.
type Metrics struct {
	searchDuration  metric.Float64Histogram
	searchTotal     metric.Int64Counter
	routesFound     metric.Int64Histogram
	validationTotal metric.Int64Counter
}

// NewMetrics creates a Metrics instance with initialized instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	searchDuration, err := meter.Float64Histogram(
		"planner.search.duration",
		metric.WithDescription("Duration of route searches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchTotal, err := meter.Int64Counter(
		"planner.search.total",
		metric.WithDescription("Total number of route searches"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, err
	}

	routesFound, err := meter.Int64Histogram(
		"planner.search.routes",
		metric.WithDescription("Number of Pareto-optimal routes per search"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	validationTotal, err := meter.Int64Counter(
		"planner.validation.total",
		metric.WithDescription("Total number of validated routes by outcome"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		searchDuration:  searchDuration,
		searchTotal:     searchTotal,
		routesFound:     routesFound,
		validationTotal: validationTotal,
	}, nil
}

// RecordSearch records the outcome of one route search.
func (m *Metrics) RecordSearch(ctx context.Context, origin string, routes int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("search.origin", origin),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	m.searchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.searchTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err == nil {
		m.routesFound.Record(ctx, int64(routes), metric.WithAttributes(attrs...))
	}
}

// RecordValidations records validated route outcomes by status.
func (m *Metrics) RecordValidations(ctx context.Context, results []validation.ValidatedRoute) {
	if m == nil {
		return
	}
	for _, r := range results {
		if r.Validation == nil {
			continue
		}
		m.validationTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("validation.status", string(r.Validation.Status)),
		))
	}
}
