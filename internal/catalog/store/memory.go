package store

import (
	"context"
	"sort"
	"sync"

	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
)

// InMemorySizes serves size data from a map. It backs tests and single-node
// deployments seeded at startup.
type InMemorySizes struct {
	mu    sync.RWMutex
	sizes map[int]models.Size
}

func NewInMemorySizes() *InMemorySizes {
	return &InMemorySizes{sizes: make(map[int]models.Size)}
}

// Seed adds or replaces a size.
func (s *InMemorySizes) Seed(size models.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes[size.ID] = size
}

func (s *InMemorySizes) GetByID(ctx context.Context, id int) (models.Size, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	size, ok := s.sizes[id]
	if !ok {
		return models.Size{}, sentinel.ErrNotFound
	}
	return size, nil
}

func (s *InMemorySizes) GetByIDs(ctx context.Context, ids []int) (map[int]models.Size, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := make(map[int]models.Size, len(ids))
	for _, id := range ids {
		if size, ok := s.sizes[id]; ok {
			found[id] = size
		}
	}
	return found, nil
}

// InMemoryCountries serves country reference data.
type InMemoryCountries struct {
	mu        sync.RWMutex
	countries map[int]models.Country
}

func NewInMemoryCountries() *InMemoryCountries {
	return &InMemoryCountries{countries: make(map[int]models.Country)}
}

// Seed adds or replaces a country.
func (s *InMemoryCountries) Seed(c models.Country) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countries[c.ID] = c
}

func (s *InMemoryCountries) GetByID(ctx context.Context, id int) (models.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.countries[id]
	if !ok {
		return models.Country{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *InMemoryCountries) ListActive(ctx context.Context) ([]models.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []models.Country
	for _, c := range s.countries {
		if c.IsActive {
			active = append(active, c)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Position != active[j].Position {
			return active[i].Position < active[j].Position
		}
		return active[i].Name < active[j].Name
	})
	return active, nil
}

// InMemoryCardTypes serves the card type list.
type InMemoryCardTypes struct {
	mu    sync.RWMutex
	types []models.CardType
}

func NewInMemoryCardTypes(types ...models.CardType) *InMemoryCardTypes {
	return &InMemoryCardTypes{types: append([]models.CardType(nil), types...)}
}

func (s *InMemoryCardTypes) List(ctx context.Context) ([]models.CardType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CardType(nil), s.types...), nil
}
