package store

import (
	"context"

	"emporia/internal/shop/models"
)

// OrderStore persists placed orders. Insert assigns the order its
// storage-generated ID; the placement flow needs that ID before the request
// finishes, which is why the commit is explicit rather than deferred.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (models.Order, error)
}
