package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
)

type InMemory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[uuid.UUID]models.User)}
}

func (s *InMemory) Save(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, sentinel.ErrNotFound
	}
	return user, nil
}
