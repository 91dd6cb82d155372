// Package database provides the PostgreSQL location source: venue records
// stored in public.locations with a jsonb attribute column, read through a
// pooled connection with health checks.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/location"
)

// Client wraps a PostgreSQL database connection
type Client struct {
	db *sql.DB
}

// Location represents a venue row from the database
type Location struct {
	ID         string
	Name       string
	Latitude   float64
	Longitude  float64
	Properties map[string]string
	UpdatedAt  time.Time
}

// NewClient creates a new database client with connection pooling
func NewClient(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (also failed to close: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// GetLocations retrieves every venue in insertion order
func (c *Client) GetLocations(ctx context.Context) ([]Location, error) {
	query := `
		SELECT id, name, latitude, longitude, properties, updated_at
		FROM public.locations
		ORDER BY sort_order ASC, id ASC
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }() // nolint:errcheck // Close in defer, error not actionable

	var locations []Location
	for rows.Next() {
		var loc Location
		var name sql.NullString
		var properties []byte

		err := rows.Scan(
			&loc.ID,
			&name,
			&loc.Latitude,
			&loc.Longitude,
			&properties,
			&loc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		// Convert NULL values to zero values
		if name.Valid {
			loc.Name = name.String
		}

		loc.Properties, err = decodeProperties(properties)
		if err != nil {
			return nil, fmt.Errorf("location %s: %w", loc.ID, err)
		}

		locations = append(locations, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return locations, nil
}

// HealthCheck verifies database connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Record converts a row to a location record. The id and name columns fill
// in the id and Name properties when the jsonb attributes lack them.
func (l Location) Record() location.Record {
	props := make(map[string]string, len(l.Properties)+2)
	for k, v := range l.Properties {
		props[k] = v
	}
	if _, ok := props[location.KeyID]; !ok && l.ID != "" {
		props[location.KeyID] = l.ID
	}
	if _, ok := props[location.KeyName]; !ok && l.Name != "" {
		props[location.KeyName] = l.Name
	}
	return location.NewRecord(calculator.NewPoint(l.Latitude, l.Longitude), props)
}

func decodeProperties(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var values map[string]interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("invalid properties: %w", err)
	}
	return location.NormalizeProperties(values), nil
}
