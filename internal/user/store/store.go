package store

import (
	"context"

	"github.com/google/uuid"

	"emporia/internal/shop/models"
)

type UserStore interface {
	Save(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (models.User, error)
}
