// Package postgres provides a PostgreSQL-backed flight data provider.
// The offers table is populated by the external ingestion pipeline; this
// provider only reads full schedule snapshots.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyloop/skyloop/internal/flights"
)

// ProviderName identifies this flight data provider.
const ProviderName = "postgres"

// Provider loads flight schedule snapshots from PostgreSQL.
type Provider struct {
	pool *pgxpool.Pool
}

// NewProvider creates a provider over an existing connection pool.
func NewProvider(pool *pgxpool.Pool) *Provider {
	return &Provider{pool: pool}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

// Load fetches the full schedule, ordered for deterministic snapshots.
func (p *Provider) Load(ctx context.Context) ([]flights.FlightRecord, error) {
	query := `
		SELECT
			departure_airport, arrival_airport,
			dep_time, arr_time, price,
			carrier_code, carrier_name
		FROM flight_offers
		ORDER BY departure_airport, dep_time
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying flight offers: %w", err)
	}
	defer rows.Close()

	var records []flights.FlightRecord
	for rows.Next() {
		var rec flights.FlightRecord
		if err := rows.Scan(
			&rec.DepartureAirport,
			&rec.ArrivalAirport,
			&rec.DepTime,
			&rec.ArrTime,
			&rec.Price,
			&rec.CarrierCode,
			&rec.CarrierName,
		); err != nil {
			return nil, fmt.Errorf("scanning flight offer: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading flight offers: %w", err)
	}

	if len(records) == 0 {
		return nil, flights.ErrNoData
	}

	return records, nil
}
