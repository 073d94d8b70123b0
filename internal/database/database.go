// Package database manages the PostgreSQL pool behind the flight schedule
// store. Both binaries share it: the API reads schedule snapshots into graph
// caches, the worker writes refreshed search results back.
package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL pool settings. Pool sizing follows pgx naming:
// MaxConns caps the pool and MinConns is kept warm so the first search after
// an idle period does not pay connection setup.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	AppName  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	maxConns, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_CONNS", "10"))
	minConns, _ := strconv.Atoi(getEnvOrDefault("DB_MIN_CONNS", "2"))
	lifetime, _ := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "5m"))

	return Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "skyloop"),
		Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
		Database:        getEnvOrDefault("DB_NAME", "skyloop"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		AppName:         getEnvOrDefault("DB_APP_NAME", "skyloop"),
		MaxConns:        int32(maxConns), //nolint:gosec // small operator-supplied value
		MinConns:        int32(minConns), //nolint:gosec // small operator-supplied value
		MaxConnLifetime: lifetime,
	}
}

// ConnectionString returns the PostgreSQL connection URL. The password is
// escaped so generated secrets with URL-significant characters work, and
// application_name is set so pool connections are attributable in
// pg_stat_activity.
func (c Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&application_name=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Database, c.SSLMode, url.QueryEscape(c.AppName),
	)
}

// Connect creates the connection pool and verifies it with a ping, so a
// misconfigured database fails at startup instead of on the first search.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
