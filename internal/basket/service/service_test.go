package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"emporia/internal/basket/metrics"
	basketstore "emporia/internal/basket/store"
	catalogstore "emporia/internal/catalog/store"
	"emporia/internal/shop/models"
	"emporia/internal/user/session"
	userservice "emporia/internal/user/service"
	userstore "emporia/internal/user/store"
	dErrors "emporia/pkg/domain-errors"
	"emporia/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite
	baskets   *basketstore.InMemory
	sizes     *catalogstore.InMemorySizes
	countries *catalogstore.InMemoryCountries
	users     *userstore.InMemory
	sessions  *session.InMemory
	identity  *userservice.Service
	metrics   *metrics.Metrics
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// SetupSuite registers the prometheus collectors once; promauto would panic
// on re-registration if this lived in SetupTest.
func (s *ServiceSuite) SetupSuite() {
	s.metrics = metrics.New()
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.baskets = basketstore.NewInMemory()
	s.sizes = catalogstore.NewInMemorySizes()
	s.countries = catalogstore.NewInMemoryCountries()
	s.users = userstore.NewInMemory()
	s.sessions = session.NewInMemory()
	s.identity = userservice.New(s.users, s.sessions, []byte("test-signing-key"), logger)
	s.service = New(s.baskets, s.sizes, s.countries, s.identity, tx.PassthroughRunner{}, 1, s.metrics, logger)

	tee := models.Product{ID: 1, Name: "Classic Tee", Price: decimal.NewFromFloat(18.50), Weight: decimal.NewFromFloat(0.3)}
	s.sizes.Seed(models.Size{ID: 1, Name: "S", IsInStock: true, IsActive: true, Product: tee})
	s.sizes.Seed(models.Size{ID: 2, Name: "L", IsInStock: false, IsActive: true, Product: tee})
	s.sizes.Seed(models.Size{ID: 3, Name: "M", IsInStock: true, IsActive: false, Product: tee})

	s.countries.Seed(models.Country{ID: 1, Name: "United Kingdom", IsActive: true, PostageMultiplier: decimal.NewFromInt(1)})
	s.countries.Seed(models.Country{ID: 2, Name: "Atlantis", IsActive: false, PostageMultiplier: decimal.NewFromInt(9)})
}

// guest returns an unauthenticated identity with a live session token.
func (s *ServiceSuite) guest() models.Identity {
	return models.Identity{SessionToken: uuid.NewString()}
}

// customer persists a user and binds a session for it.
func (s *ServiceSuite) customer() models.Identity {
	ctx := context.Background()
	user, err := s.identity.CreateNewCustomer(ctx)
	s.Require().NoError(err)
	token := uuid.NewString()
	s.Require().NoError(s.identity.SetContextUserTo(ctx, token, user))
	return models.Identity{SessionToken: token, User: user}
}

func (s *ServiceSuite) TestUpdate_AddAndIncrement() {
	ctx := context.Background()
	ident := s.customer()

	s.Run("first add creates a line", func() {
		result, err := s.service.Update(ctx, ident, 1, 2)
		s.Require().NoError(err)
		s.Empty(result.Message)
		s.Require().Len(result.Basket.Items, 1)
		s.Equal(2, result.Basket.Items[0].Quantity)
	})

	s.Run("adding the same size increments the existing line", func() {
		result, err := s.service.Update(ctx, ident, 1, 3)
		s.Require().NoError(err)
		s.Require().Len(result.Basket.Items, 1, "same size must not create a second line")
		s.Equal(5, result.Basket.Items[0].Quantity)
	})

	s.Run("a different size gets its own line", func() {
		s.sizes.Seed(models.Size{ID: 9, Name: "XL", IsInStock: true, IsActive: true,
			Product: models.Product{ID: 2, Name: "Harbour Hoodie", Price: decimal.NewFromInt(42), Weight: decimal.NewFromFloat(0.9)}})
		result, err := s.service.Update(ctx, ident, 9, 1)
		s.Require().NoError(err)
		s.Len(result.Basket.Items, 2)
	})
}

func (s *ServiceSuite) TestUpdate_OutOfStock() {
	ctx := context.Background()
	ident := s.customer()

	_, err := s.service.Update(ctx, ident, 1, 1)
	s.Require().NoError(err)

	s.Run("out of stock size is refused with a message", func() {
		result, err := s.service.Update(ctx, ident, 2, 1)
		s.Require().NoError(err, "a stock refusal is a message, not an error")
		s.Equal("Sorry, Classic Tee, Size L is out of stock.", result.Message)
		s.Len(result.Basket.Items, 1, "basket must be unchanged")
	})

	s.Run("inactive size is refused the same way", func() {
		result, err := s.service.Update(ctx, ident, 3, 1)
		s.Require().NoError(err)
		s.Equal("Sorry, Classic Tee, Size M is out of stock.", result.Message)
		s.Len(result.Basket.Items, 1)
	})

	s.Run("unknown size is not found", func() {
		_, err := s.service.Update(ctx, ident, 99, 1)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("non-positive quantity is rejected", func() {
		_, err := s.service.Update(ctx, ident, 1, 0)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestUpdate_PromotesGuest() {
	ctx := context.Background()
	ident := s.guest()

	result, err := s.service.Update(ctx, ident, 1, 1)
	s.Require().NoError(err)

	s.False(result.User.IsPlaceholder(), "first mutation must persist the guest")
	s.True(result.User.IsGuest)
	s.Equal(result.User.ID, result.Basket.UserID)

	// The session now resolves to the persisted user, and the basket
	// survives the re-bind.
	resolved, err := s.identity.CurrentIdentity(ctx, ident.SessionToken)
	s.Require().NoError(err)
	s.Equal(result.User.ID, resolved.User.ID)

	basket, err := s.service.CurrentBasket(ctx, resolved)
	s.Require().NoError(err)
	s.Equal(result.Basket.ID, basket.ID)
	s.Require().Len(basket.Items, 1)
	s.Equal(1, basket.Items[0].SizeID)
}

func (s *ServiceSuite) TestRemove() {
	ctx := context.Background()
	ident := s.customer()

	result, err := s.service.Update(ctx, ident, 1, 2)
	s.Require().NoError(err)
	itemID := result.Basket.Items[0].ID

	s.Run("removes an owned line", func() {
		basket, err := s.service.Remove(ctx, ident, itemID)
		s.Require().NoError(err)
		s.Empty(basket.Items)
	})

	s.Run("removing an absent line is a no-op", func() {
		basket, err := s.service.Remove(ctx, ident, uuid.New())
		s.Require().NoError(err)
		s.Empty(basket.Items)
	})

	s.Run("cannot reach into another user's basket", func() {
		victim := s.customer()
		victimResult, err := s.service.Update(ctx, victim, 1, 1)
		s.Require().NoError(err)
		victimItem := victimResult.Basket.Items[0].ID

		_, err = s.service.Remove(ctx, ident, victimItem)
		s.Require().NoError(err, "foreign item looks absent, not forbidden")

		untouched, err := s.service.CurrentBasket(ctx, victim)
		s.Require().NoError(err)
		s.Len(untouched.Items, 1)
	})

	s.Run("placeholder guest has nothing to remove", func() {
		basket, err := s.service.Remove(ctx, s.guest(), uuid.New())
		s.Require().NoError(err)
		s.Empty(basket.Items)
	})
}

func (s *ServiceSuite) TestMutationMetrics() {
	ctx := context.Background()
	ident := s.customer()

	// The collectors are suite-scoped, so assert on deltas.
	added := promtestutil.ToFloat64(s.metrics.Updates.WithLabelValues("added"))
	refused := promtestutil.ToFloat64(s.metrics.Updates.WithLabelValues("out_of_stock"))
	removed := promtestutil.ToFloat64(s.metrics.Updates.WithLabelValues("removed"))

	result, err := s.service.Update(ctx, ident, 1, 1)
	s.Require().NoError(err)
	s.Require().Empty(result.Message)

	outOfStock, err := s.service.Update(ctx, ident, 2, 1)
	s.Require().NoError(err)
	s.Require().NotEmpty(outOfStock.Message)

	_, err = s.service.Remove(ctx, ident, result.Basket.Items[0].ID)
	s.Require().NoError(err)

	// A miss deletes nothing and must not count as a removal.
	_, err = s.service.Remove(ctx, ident, uuid.New())
	s.Require().NoError(err)

	s.Equal(added+1, promtestutil.ToFloat64(s.metrics.Updates.WithLabelValues("added")))
	s.Equal(refused+1, promtestutil.ToFloat64(s.metrics.Updates.WithLabelValues("out_of_stock")))
	s.Equal(removed+1, promtestutil.ToFloat64(s.metrics.Updates.WithLabelValues("removed")))
}

func (s *ServiceSuite) TestSetCountry() {
	ctx := context.Background()
	ident := s.customer()

	s.Run("switches the destination", func() {
		basket, err := s.service.SetCountry(ctx, ident, 1)
		s.Require().NoError(err)
		s.Equal(1, basket.CountryID)
	})

	s.Run("inactive country is a domain rule refusal", func() {
		_, err := s.service.SetCountry(ctx, ident, 2)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeDomainRule))
	})

	s.Run("unknown country is not found", func() {
		_, err := s.service.SetCountry(ctx, ident, 99)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestReplaceForUser() {
	ctx := context.Background()
	ident := s.customer()

	old, err := s.service.Update(ctx, ident, 1, 1)
	s.Require().NoError(err)
	s.Require().NoError(s.baskets.AttachToOrder(ctx, old.Basket.ID, 42))

	fresh, err := s.service.ReplaceForUser(ctx, ident.User.ID, 2)
	s.Require().NoError(err)
	s.NotEqual(old.Basket.ID, fresh.ID)
	s.Empty(fresh.Items)
	s.Equal(2, fresh.CountryID, "destination carries over to the replacement")

	current, err := s.service.CurrentBasket(ctx, ident)
	s.Require().NoError(err)
	s.Equal(fresh.ID, current.ID, "the consumed basket is no longer current")
}

func (s *ServiceSuite) TestCurrentBasket_Placeholder() {
	basket, err := s.service.CurrentBasket(context.Background(), s.guest())
	s.Require().NoError(err)
	s.Equal(uuid.Nil, basket.ID, "guests browse with a transient basket")
	s.Equal(1, basket.CountryID)
	s.Empty(basket.Items)
}
