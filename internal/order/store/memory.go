package store

import (
	"context"
	"sync"

	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
)

type InMemory struct {
	mu     sync.RWMutex
	orders map[int64]models.Order
	nextID int64
}

func NewInMemory() *InMemory {
	return &InMemory{orders: make(map[int64]models.Order), nextID: 1}
}

func (s *InMemory) Insert(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = s.nextID
	s.nextID++
	s.orders[order.ID] = *order
	return nil
}

func (s *InMemory) GetByID(ctx context.Context, id int64) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, sentinel.ErrNotFound
	}
	return order, nil
}

// Count reports how many orders have been inserted. Test helper.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
