// Package session maps opaque session tokens onto user IDs. The binding is
// the only server-side session state the checkout core needs.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"emporia/pkg/platform/sentinel"
)

// Store binds session tokens to user IDs.
type Store interface {
	Bind(ctx context.Context, token string, userID uuid.UUID) error
	Lookup(ctx context.Context, token string) (uuid.UUID, error)
}

type InMemory struct {
	mu       sync.RWMutex
	bindings map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{bindings: make(map[string]uuid.UUID)}
}

func (s *InMemory) Bind(ctx context.Context, token string, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[token] = userID
	return nil
}

func (s *InMemory) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.bindings[token]
	if !ok {
		return uuid.Nil, sentinel.ErrNotFound
	}
	return userID, nil
}

// Redis keeps session bindings in Redis so they survive restarts and are
// shared across instances.
type Redis struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedis(client *goredis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(token string) string { return "session:" + token }

func (s *Redis) Bind(ctx context.Context, token string, userID uuid.UUID) error {
	if err := s.client.Set(ctx, key(token), userID.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	return nil
}

func (s *Redis) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := s.client.Get(ctx, key(token)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return uuid.Nil, sentinel.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lookup session: %w", err)
	}
	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt session binding: %w", err)
	}
	return userID, nil
}
