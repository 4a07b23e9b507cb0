// Package service implements basket mutation: adding sizes, adjusting
// quantities, removing lines, and switching the destination country. Every
// mutation is one transactional unit of read-current-basket, mutate,
// persist.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"emporia/internal/basket/metrics"
	basketstore "emporia/internal/basket/store"
	catalogstore "emporia/internal/catalog/store"
	"emporia/internal/shop/models"
	usersvc "emporia/internal/user/service"
	dErrors "emporia/pkg/domain-errors"
	"emporia/pkg/platform/sentinel"
	"emporia/pkg/platform/tx"
	"emporia/pkg/requestcontext"
)

// IdentityService is the slice of the user service basket mutation needs:
// guests must be promoted to persisted customers before their basket can be
// stored.
type IdentityService interface {
	Promote(ctx context.Context, ident models.Identity) (usersvc.Promotion, error)
}

type Service struct {
	baskets          basketstore.BasketStore
	sizes            catalogstore.SizeStore
	countries        catalogstore.CountryStore
	identities       IdentityService
	runner           tx.Runner
	defaultCountryID int
	metrics          *metrics.Metrics
	logger           *slog.Logger
	tracer           trace.Tracer
}

func New(
	baskets basketstore.BasketStore,
	sizes catalogstore.SizeStore,
	countries catalogstore.CountryStore,
	identities IdentityService,
	runner tx.Runner,
	defaultCountryID int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		baskets:          baskets,
		sizes:            sizes,
		countries:        countries,
		identities:       identities,
		runner:           runner,
		defaultCountryID: defaultCountryID,
		metrics:          m,
		logger:           logger,
		tracer:           otel.Tracer("emporia/basket"),
	}
}

// UpdateResult reports a basket mutation. A non-empty Message is a domain
// rule refusal (out of stock); the basket is unchanged in that case.
type UpdateResult struct {
	Basket models.Basket
	User   models.User
	// AuthCookie is set when the mutation promoted a guest; the transport
	// layer turns it into a cookie.
	AuthCookie string
	Message    string
}

// CurrentBasket returns the identity's active basket. Placeholder guests
// get a transient empty basket; persisted users with no active basket get a
// fresh one created.
func (s *Service) CurrentBasket(ctx context.Context, ident models.Identity) (models.Basket, error) {
	if ident.User.IsPlaceholder() {
		return models.Basket{CountryID: s.defaultCountryID}, nil
	}
	basket, err := s.baskets.CurrentForUser(ctx, ident.User.ID)
	if err == nil {
		return basket, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Basket{}, fmt.Errorf("load current basket: %w", err)
	}
	basket = s.newBasketFor(ctx, ident.User.ID)
	if err := s.baskets.Create(ctx, basket); err != nil {
		return models.Basket{}, fmt.Errorf("create basket: %w", err)
	}
	return basket, nil
}

// Update adds quantity of a size to the identity's basket, incrementing the
// existing line when one exists. Guests are promoted first so the basket
// survives the session re-bind.
func (s *Service) Update(ctx context.Context, ident models.Identity, sizeID, quantity int) (UpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "basket.Update")
	defer span.End()

	if sizeID <= 0 || quantity <= 0 {
		return UpdateResult{}, dErrors.New(dErrors.CodeBadRequest, "sizeid and quantity must be positive")
	}

	promo, err := s.identities.Promote(ctx, ident)
	if err != nil {
		return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not establish customer identity")
	}
	ident.User = promo.User

	size, err := s.sizes.GetByID(ctx, sizeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return UpdateResult{}, dErrors.Newf(dErrors.CodeNotFound, "size %d not found", sizeID)
		}
		return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up size")
	}

	if !size.Available() {
		basket, berr := s.CurrentBasket(ctx, ident)
		if berr != nil {
			return UpdateResult{}, dErrors.Wrap(berr, dErrors.CodeInternal, "could not load basket")
		}
		s.metrics.IncrementUpdate("out_of_stock")
		return UpdateResult{
			Basket:     basket,
			User:       ident.User,
			AuthCookie: promo.AuthCookie,
			Message:    fmt.Sprintf("Sorry, %s, Size %s is out of stock.", size.Product.Name, size.Name),
		}, nil
	}

	var basket models.Basket
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		basket, err = s.CurrentBasket(ctx, ident)
		if err != nil {
			return err
		}
		if item := basket.ItemFor(sizeID); item != nil {
			item.Quantity += quantity
		} else {
			basket.Items = append(basket.Items, models.BasketItem{
				ID:       uuid.New(),
				SizeID:   sizeID,
				Quantity: quantity,
			})
		}
		return s.baskets.Save(ctx, basket)
	})
	if err != nil {
		return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not update basket")
	}

	s.metrics.IncrementUpdate("added")
	s.logger.InfoContext(ctx, "basket updated",
		"basket_id", basket.ID,
		"size_id", sizeID,
		"quantity", quantity,
		"request_id", requestcontext.RequestID(ctx),
	)
	return UpdateResult{Basket: basket, User: ident.User, AuthCookie: promo.AuthCookie}, nil
}

// Remove deletes a basket line by ID. Removing an absent line, or a line
// that lives in someone else's basket, is a no-op.
func (s *Service) Remove(ctx context.Context, ident models.Identity, itemID uuid.UUID) (models.Basket, error) {
	ctx, span := s.tracer.Start(ctx, "basket.Remove")
	defer span.End()

	if ident.User.IsPlaceholder() {
		// Nothing persisted, nothing to remove.
		return models.Basket{CountryID: s.defaultCountryID}, nil
	}

	var basket models.Basket
	removed := false
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		basket, err = s.CurrentBasket(ctx, ident)
		if err != nil {
			return err
		}
		// Ownership check: only lines inside the caller's own basket are
		// deletable; anything else looks absent.
		found := false
		for _, item := range basket.Items {
			if item.ID == itemID {
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		if err := s.baskets.DeleteItem(ctx, basket.ID, itemID); err != nil {
			return err
		}
		removed = true
		basket, err = s.baskets.GetByID(ctx, basket.ID)
		return err
	})
	if err != nil {
		return models.Basket{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not remove basket item")
	}
	if removed {
		s.metrics.IncrementUpdate("removed")
	}
	return basket, nil
}

// SetCountry switches the basket's destination country.
func (s *Service) SetCountry(ctx context.Context, ident models.Identity, countryID int) (models.Basket, error) {
	country, err := s.countries.GetByID(ctx, countryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Basket{}, dErrors.Newf(dErrors.CodeNotFound, "country %d not found", countryID)
		}
		return models.Basket{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up country")
	}
	if !country.IsActive {
		return models.Basket{}, dErrors.Newf(dErrors.CodeDomainRule, "we do not ship to %s", country.Name)
	}

	promo, err := s.identities.Promote(ctx, ident)
	if err != nil {
		return models.Basket{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not establish customer identity")
	}
	ident.User = promo.User

	var basket models.Basket
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		basket, err = s.CurrentBasket(ctx, ident)
		if err != nil {
			return err
		}
		basket.CountryID = countryID
		return s.baskets.Save(ctx, basket)
	})
	if err != nil {
		return models.Basket{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not set basket country")
	}
	return basket, nil
}

// ReplaceForUser creates a fresh empty basket for the user. Order placement
// calls this inside its commit once the old basket has been attached to the
// order.
func (s *Service) ReplaceForUser(ctx context.Context, userID uuid.UUID, countryID int) (models.Basket, error) {
	basket := s.newBasketFor(ctx, userID)
	if countryID != 0 {
		basket.CountryID = countryID
	}
	if err := s.baskets.Create(ctx, basket); err != nil {
		return models.Basket{}, fmt.Errorf("replace basket: %w", err)
	}
	return basket, nil
}

func (s *Service) newBasketFor(ctx context.Context, userID uuid.UUID) models.Basket {
	return models.Basket{
		ID:        uuid.New(),
		UserID:    userID,
		CountryID: s.defaultCountryID,
		CreatedAt: requestcontext.Now(ctx),
	}
}
