package store

import (
	"context"

	"github.com/google/uuid"

	"emporia/internal/shop/models"
)

// BasketStore owns basket persistence. A user's current basket is their
// most recent basket that no order has consumed yet.
type BasketStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.Basket, error)
	CurrentForUser(ctx context.Context, userID uuid.UUID) (models.Basket, error)
	Create(ctx context.Context, basket models.Basket) error
	// Save persists the basket header and its full item set.
	Save(ctx context.Context, basket models.Basket) error
	DeleteItem(ctx context.Context, basketID, itemID uuid.UUID) error
	// AttachToOrder transfers ownership of the basket to the given order.
	AttachToOrder(ctx context.Context, basketID uuid.UUID, orderID int64) error
}
