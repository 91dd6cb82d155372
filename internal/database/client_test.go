package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/gobebop/internal/location"
)

// Note: These are unit tests that need no database.
// Integration tests with a real PostgreSQL instance are in client_integration_test.go

func TestLocationRecord(t *testing.T) {
	loc := Location{
		ID:        "artis",
		Name:      "Artis",
		Latitude:  52.3661,
		Longitude: 4.9166,
		Properties: map[string]string{
			location.KeyPrimaryCategory: "Zoo",
			location.KeyAgeSmall:        "TRUE",
		},
	}

	r := loc.Record()
	if r.ID() != "artis" {
		t.Errorf("expected ID 'artis', got '%s'", r.ID())
	}
	if r.Name() != "Artis" {
		t.Errorf("expected Name 'Artis', got '%s'", r.Name())
	}
	if r.Category() != "Zoo" {
		t.Errorf("expected Category 'Zoo', got '%s'", r.Category())
	}
	if r.Position.Lat() != 52.3661 || r.Position.Lon() != 4.9166 {
		t.Errorf("unexpected position %v", r.Position)
	}
	if !r.HasFlag(location.KeyAgeSmall) {
		t.Error("expected age_small flag")
	}
}

func TestLocationRecord_PropertiesWin(t *testing.T) {
	loc := Location{
		ID:         "row-1",
		Name:       "Column Name",
		Properties: map[string]string{location.KeyID: "prop-id", location.KeyName: "Prop Name"},
	}

	r := loc.Record()
	assert.Equal(t, "prop-id", r.ID())
	assert.Equal(t, "Prop Name", r.Name())
}

func TestDecodeProperties(t *testing.T) {
	props, err := decodeProperties([]byte(`{"age_small": true, "age_large": false, "rating": 4.5, "website": "artis.nl", "gone": null}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"age_small": "TRUE",
		"age_large": "FALSE",
		"rating":    "4.5",
		"website":   "artis.nl",
	}, props)

	props, err = decodeProperties(nil)
	require.NoError(t, err)
	assert.Empty(t, props)

	_, err = decodeProperties([]byte(`[1,2`))
	assert.Error(t, err)
}

type fakeQuerier struct {
	rows    []Location
	err     error
	pingErr error
}

func (f fakeQuerier) GetLocations(_ context.Context) ([]Location, error) {
	return f.rows, f.err
}

func (f fakeQuerier) HealthCheck(_ context.Context) error {
	return f.pingErr
}

func TestSource_Fetch(t *testing.T) {
	src := Source{DB: fakeQuerier{rows: []Location{
		{ID: "b", Name: "Second", Latitude: 52.1, Longitude: 4.1},
		{ID: "a", Name: "First", Latitude: 52.2, Longitude: 4.2},
	}}}

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Second", records[0].Name(), "row order is kept")
	assert.Equal(t, "postgres:public.locations", src.Name())
}

func TestSource_FetchError(t *testing.T) {
	src := Source{DB: fakeQuerier{err: errors.New("connection refused")}}

	s := location.NewStore()
	err := s.Load(context.Background(), src)
	assert.Error(t, err)
	assert.False(t, s.Ready())
}

func TestSource_HealthCheck(t *testing.T) {
	assert.NoError(t, Source{DB: fakeQuerier{}}.HealthCheck(context.Background()))

	err := Source{DB: fakeQuerier{pingErr: errors.New("connection refused")}}.HealthCheck(context.Background())
	assert.EqualError(t, err, "connection refused")
}

func TestNewClient_InvalidDSN(t *testing.T) {
	_, err := NewClient("invalid-dsn")
	if err == nil {
		t.Error("expected error for invalid DSN, got nil")
	}
}
