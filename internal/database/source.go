package database

import (
	"context"

	"github.com/stuartshay/gobebop/internal/location"
)

// Schema creates the locations table read by GetLocations.
const Schema = `
CREATE TABLE IF NOT EXISTS public.locations (
	id          TEXT PRIMARY KEY,
	name        TEXT,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	properties  JSONB NOT NULL DEFAULT '{}'::jsonb,
	sort_order  INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Querier is the subset of Client the location source needs.
type Querier interface {
	GetLocations(ctx context.Context) ([]Location, error)
	HealthCheck(ctx context.Context) error
}

// Source adapts the database to location.Source.
type Source struct {
	DB Querier
}

// Name implements location.Source.
func (s Source) Name() string { return "postgres:public.locations" }

// Fetch implements location.Source.
func (s Source) Fetch(ctx context.Context) ([]location.Record, error) {
	rows, err := s.DB.GetLocations(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]location.Record, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}

// HealthCheck reports whether the database is reachable.
func (s Source) HealthCheck(ctx context.Context) error {
	return s.DB.HealthCheck(ctx)
}

// EnsureSchema creates the locations table if it is missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, Schema)
	return err
}
