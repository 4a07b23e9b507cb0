// Package store provides read access to catalog reference data: sizes,
// countries, and card types. The checkout core never writes these.
package store

import (
	"context"

	"emporia/internal/shop/models"
)

type SizeStore interface {
	GetByID(ctx context.Context, id int) (models.Size, error)
	// GetByIDs returns the sizes it finds keyed by id; missing ids are
	// simply absent.
	GetByIDs(ctx context.Context, ids []int) (map[int]models.Size, error)
}

type CountryStore interface {
	GetByID(ctx context.Context, id int) (models.Country, error)
	// ListActive returns active countries in display order.
	ListActive(ctx context.Context) ([]models.Country, error)
}

type CardTypeStore interface {
	List(ctx context.Context) ([]models.CardType, error)
}
