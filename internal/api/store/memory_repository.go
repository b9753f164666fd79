package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/xco2/tripspot/internal/types"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps everything in process memory. It backs ephemeral CLI
// runs and tests and follows the same route-clearing rules as PostgresRepository.
type MemoryRepository struct {
	mu       sync.RWMutex
	places   []types.Place
	route    *types.Route
	settings *types.Settings
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) ListPlaces(_ context.Context) ([]types.Place, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.Place{}, m.places...), nil
}

func (m *MemoryRepository) GetPlace(_ context.Context, id string) (*types.Place, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		p := m.places[i]
		return &p, nil
	}
	return nil, fmt.Errorf("place %s: %w", id, types.ErrNotFound)
}

func (m *MemoryRepository) InsertPlace(_ context.Context, p types.Place) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index(p.ID) >= 0 {
		return fmt.Errorf("insert place: duplicate id: %w", types.ErrInvalidInput)
	}
	m.places = append(m.places, p)
	m.route = nil
	return nil
}

func (m *MemoryRepository) UpdatePlace(_ context.Context, p types.Place) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(p.ID)
	if i < 0 {
		return fmt.Errorf("place %s: %w", p.ID, types.ErrNotFound)
	}
	m.places[i] = p
	m.route = nil
	return nil
}

func (m *MemoryRepository) DeletePlace(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("place %s: %w", id, types.ErrNotFound)
	}
	m.places = slices.Delete(m.places, i, i+1)
	m.route = nil
	return nil
}

func (m *MemoryRepository) ReplacePlaces(_ context.Context, places []types.Place, route *types.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.places = append([]types.Place{}, places...)
	m.route = cloneRoute(route)
	return nil
}

func (m *MemoryRepository) GetRoute(_ context.Context) (*types.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRoute(m.route), nil
}

func (m *MemoryRepository) SaveRoute(_ context.Context, r types.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range r.Sequence {
		if m.index(id) < 0 {
			return fmt.Errorf("place %s: %w", id, types.ErrStaleRoute)
		}
	}
	m.route = cloneRoute(&r)
	return nil
}

func (m *MemoryRepository) ClearRoute(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route = nil
	return nil
}

func (m *MemoryRepository) GetSettings(_ context.Context) (*types.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, fmt.Errorf("settings: %w", types.ErrNotFound)
	}
	s := *m.settings
	return &s, nil
}

func (m *MemoryRepository) SaveSettings(_ context.Context, s types.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *MemoryRepository) index(id string) int {
	return slices.IndexFunc(m.places, func(p types.Place) bool { return p.ID == id })
}

func cloneRoute(r *types.Route) *types.Route {
	if r == nil {
		return nil
	}
	c := *r
	c.Sequence = slices.Clone(r.Sequence)
	if c.Sequence == nil {
		c.Sequence = []string{}
	}
	return &c
}
