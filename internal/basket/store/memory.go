package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	baskets map[uuid.UUID]models.Basket
}

func NewInMemory() *InMemory {
	return &InMemory{baskets: make(map[uuid.UUID]models.Basket)}
}

func (s *InMemory) GetByID(ctx context.Context, id uuid.UUID) (models.Basket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	basket, ok := s.baskets[id]
	if !ok {
		return models.Basket{}, sentinel.ErrNotFound
	}
	return copyBasket(basket), nil
}

func (s *InMemory) CurrentForUser(ctx context.Context, userID uuid.UUID) (models.Basket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var current models.Basket
	found := false
	for _, b := range s.baskets {
		if b.UserID != userID || b.OrderID != 0 {
			continue
		}
		if !found || b.CreatedAt.After(current.CreatedAt) {
			current = b
			found = true
		}
	}
	if !found {
		return models.Basket{}, sentinel.ErrNotFound
	}
	return copyBasket(current), nil
}

func (s *InMemory) Create(ctx context.Context, basket models.Basket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.baskets[basket.ID]; exists {
		return sentinel.ErrConflict
	}
	s.baskets[basket.ID] = copyBasket(basket)
	return nil
}

func (s *InMemory) Save(ctx context.Context, basket models.Basket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.baskets[basket.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.baskets[basket.ID] = copyBasket(basket)
	return nil
}

func (s *InMemory) DeleteItem(ctx context.Context, basketID, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	basket, ok := s.baskets[basketID]
	if !ok {
		return sentinel.ErrNotFound
	}
	items := basket.Items[:0:0]
	for _, item := range basket.Items {
		if item.ID != itemID {
			items = append(items, item)
		}
	}
	basket.Items = items
	s.baskets[basketID] = basket
	return nil
}

func (s *InMemory) AttachToOrder(ctx context.Context, basketID uuid.UUID, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	basket, ok := s.baskets[basketID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if basket.OrderID != 0 {
		return sentinel.ErrInvalidState
	}
	basket.OrderID = orderID
	s.baskets[basketID] = basket
	return nil
}

func copyBasket(b models.Basket) models.Basket {
	b.Items = append([]models.BasketItem(nil), b.Items...)
	return b
}
