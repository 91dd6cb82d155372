package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/gobebop/internal/calculator"
)

type countingSource struct {
	calls   int
	records []Record
	err     error
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Fetch(_ context.Context) ([]Record, error) {
	c.calls++
	return c.records, c.err
}

func named(name string, lat, lon float64) Record {
	return NewRecord(calculator.NewPoint(lat, lon), map[string]string{KeyName: name})
}

func TestStore_NotReady(t *testing.T) {
	s := NewStore()

	assert.False(t, s.Ready())
	_, err := s.Records()
	assert.ErrorIs(t, err, ErrNotReady)
	_, _, err = s.FindByName("anything")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.Nearby(52.37, 4.90, 1000)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestStore_LoadOnce(t *testing.T) {
	src := &countingSource{records: []Record{named("A", 52.37, 4.90)}}
	s := NewStore()

	require.NoError(t, s.Load(context.Background(), src))
	require.NoError(t, s.Load(context.Background(), src))
	assert.Equal(t, 1, src.calls)

	records, err := s.Records()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStore_LoadFailureStaysUnset(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	s := NewStore()

	err := s.Load(context.Background(), src)
	require.Error(t, err)
	assert.False(t, s.Ready())

	_, err = s.Records()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestStore_WaitReady(t *testing.T) {
	s := NewStore()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, s.WaitReady(ctx))

	go s.Set([]Record{named("A", 52.37, 4.90)})
	require.NoError(t, s.WaitReady(context.Background()))
	assert.True(t, s.Ready())
}

func TestStore_FindByName(t *testing.T) {
	s := NewStore()
	s.Set([]Record{
		NewRecord(calculator.NewPoint(52.37, 4.90), map[string]string{KeyNameEn: "Artis Zoo", KeyName: "Artis"}),
		named("Vondelpark", 52.358, 4.868),
	})

	r, ok, err := s.FindByName("Artis Zoo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Artis Zoo", r.Name())

	_, ok, err = s.FindByName("Artis")
	require.NoError(t, err)
	assert.False(t, ok, "name_en wins over Name when both are set")

	_, ok, err = s.FindByName("vondelpark")
	require.NoError(t, err)
	assert.False(t, ok, "match is exact")
}

func TestStore_FindByID(t *testing.T) {
	s := NewStore()
	s.Set([]Record{
		NewRecord(calculator.NewPoint(52.37, 4.90), map[string]string{KeyID: "42", KeyName: "Artis"}),
		named("Vondelpark", 52.358, 4.868),
	})

	r, ok, err := s.FindByID("42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Artis", r.Name())

	r, ok, err = s.FindByID("Vondelpark")
	require.NoError(t, err)
	require.True(t, ok, "records without id fall back to their name")
	assert.Equal(t, "Vondelpark", r.Name())

	_, ok, err = s.FindByID("Artis")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Nearby(t *testing.T) {
	s := NewStore()
	s.Set([]Record{
		named("Far", 51.9244, 4.4777),
		named("Near", 52.3680, 4.9045),
		named("Mid", 52.3580, 4.8686),
	})

	got, err := s.Nearby(52.3676, 4.9041, 5000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Near", got[0].Record.Name())
	assert.Equal(t, "Mid", got[1].Record.Name())
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleCollection), 0o600))

	records, err := FileSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.geojson")}.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/locations.geojson" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleCollection)) //nolint:errcheck
	}))
	defer srv.Close()

	records, err := HTTPSource{URL: srv.URL + "/locations.geojson"}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = HTTPSource{URL: srv.URL + "/nope"}.Fetch(context.Background())
	assert.Error(t, err)
}
