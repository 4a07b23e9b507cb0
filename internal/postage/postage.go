// Package postage computes shipping cost from basket weight and the
// destination country.
package postage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	catalogstore "emporia/internal/catalog/store"
	"emporia/internal/shop/models"
	dErrors "emporia/pkg/domain-errors"
	"emporia/pkg/platform/sentinel"
)

// Service is the calculator contract the checkout core consumes.
type Service interface {
	// CalculateFor computes the order's postage from its basket and
	// destination and writes it onto the order.
	CalculateFor(ctx context.Context, order *models.Order) error
}

// Calculator prices postage as ceil(total weight) units at the base rate,
// scaled by the destination country's multiplier.
type Calculator struct {
	sizes     catalogstore.SizeStore
	countries catalogstore.CountryStore
	baseRate  decimal.Decimal
}

func NewCalculator(sizes catalogstore.SizeStore, countries catalogstore.CountryStore, baseRate decimal.Decimal) *Calculator {
	return &Calculator{sizes: sizes, countries: countries, baseRate: baseRate}
}

func (c *Calculator) CalculateFor(ctx context.Context, order *models.Order) error {
	if len(order.Basket.Items) == 0 {
		order.Postage = decimal.Zero
		return nil
	}

	country, err := c.countries.GetByID(ctx, order.Basket.CountryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeDomainRule, "no postage rate configured for country %d", order.Basket.CountryID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve destination country")
	}
	if !country.IsActive {
		return dErrors.Newf(dErrors.CodeDomainRule, "no postage rate available for %s", country.Name)
	}

	ids := make([]int, 0, len(order.Basket.Items))
	for _, item := range order.Basket.Items {
		ids = append(ids, item.SizeID)
	}
	sizes, err := c.sizes.GetByIDs(ctx, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not load basket sizes")
	}

	weight := order.Basket.TotalWeight(sizes)
	// Partial units are charged as whole units.
	units := weight.Ceil()
	order.Postage = c.baseRate.Mul(units).Mul(country.PostageMultiplier).Round(2)
	return nil
}
