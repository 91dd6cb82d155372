package location

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotReady is returned by reads made before the collection has loaded.
// Callers treat it as "try again later", never as an empty collection.
var ErrNotReady = errors.New("location data not loaded yet")

// Source fetches the full venue collection.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Record, error)
}

// Store holds the venue collection for the lifetime of the process.
type Store struct {
	mu      sync.RWMutex
	records []Record
	index   *Index
	ready   bool

	loadOnce sync.Once
	loadErr  error
	readyCh  chan struct{}
}

// NewStore creates an empty, not-yet-ready store.
func NewStore() *Store {
	return &Store{readyCh: make(chan struct{})}
}

// Load fetches the collection from src exactly once. Later calls return the
// first call's result without fetching again. On failure the store stays
// unset and the error is logged.
func (s *Store) Load(ctx context.Context, src Source) error {
	s.loadOnce.Do(func() {
		records, err := src.Fetch(ctx)
		if err != nil {
			log.Error().Err(err).Str("source", src.Name()).Msg("Failed to load locations data")
			s.loadErr = fmt.Errorf("load from %s: %w", src.Name(), err)
			return
		}
		s.set(records)
		log.Info().
			Str("source", src.Name()).
			Int("locations", len(records)).
			Msg("Locations data loaded")
	})
	return s.loadErr
}

// Set installs records directly, marking the store ready. Only the first
// Set or successful Load takes effect.
func (s *Store) Set(records []Record) {
	s.loadOnce.Do(func() {
		s.set(records)
	})
}

func (s *Store) set(records []Record) {
	cp := append([]Record(nil), records...)
	idx := NewIndex(cp)

	s.mu.Lock()
	s.records = cp
	s.index = idx
	s.ready = true
	s.mu.Unlock()

	close(s.readyCh)
}

// Ready reports whether the collection is available.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// WaitReady blocks until the collection is loaded or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Records returns the collection in load order.
func (s *Store) Records() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	return s.records, nil
}

// FindByName returns the first record whose name (name_en, then Name) equals name exactly.
func (s *Store) FindByName(name string) (Record, bool, error) {
	records, err := s.Records()
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range records {
		if r.Name() == name {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

// FindByID returns the first record whose identifier (id, then name_en,
// then Name) equals id.
func (s *Store) FindByID(id string) (Record, bool, error) {
	records, err := s.Records()
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range records {
		if r.ID() == id {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

// Nearby returns records within radiusM metres of center, closest first.
func (s *Store) Nearby(lat, lon, radiusM float64) ([]Neighbour, error) {
	s.mu.RLock()
	idx, ready := s.index, s.ready
	s.mu.RUnlock()
	if !ready {
		return nil, ErrNotReady
	}
	return idx.Within(lat, lon, radiusM), nil
}
