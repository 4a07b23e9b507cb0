//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"emporia/internal/basket/store"
	"emporia/internal/platform/postgres"
	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
	"emporia/pkg/platform/tx"
	"emporia/pkg/testutil/containers"
)

type PostgresBasketSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	runner   *tx.SQLRunner
}

func TestPostgresBasketSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresBasketSuite))
}

func (s *PostgresBasketSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
}

func (s *PostgresBasketSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "basket_items", "orders", "baskets", "users"))
}

func (s *PostgresBasketSuite) newUser() uuid.UUID {
	id := uuid.New()
	_, err := s.postgres.DB.ExecContext(context.Background(),
		`INSERT INTO users (id) VALUES ($1)`, id)
	s.Require().NoError(err)
	return id
}

func (s *PostgresBasketSuite) newBasket(userID uuid.UUID) models.Basket {
	basket := models.Basket{
		ID:        uuid.New(),
		UserID:    userID,
		CountryID: 1,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Create(context.Background(), basket))
	return basket
}

func (s *PostgresBasketSuite) TestRoundTrip() {
	ctx := context.Background()
	basket := s.newBasket(s.newUser())
	basket.Items = []models.BasketItem{
		{ID: uuid.New(), SizeID: 1, Quantity: 2},
		{ID: uuid.New(), SizeID: 3, Quantity: 1},
	}
	s.Require().NoError(s.store.Save(ctx, basket))

	loaded, err := s.store.GetByID(ctx, basket.ID)
	s.Require().NoError(err)
	s.Equal(basket.ID, loaded.ID)
	s.Equal(basket.UserID, loaded.UserID)
	s.Require().Len(loaded.Items, 2)
	s.Equal(2, loaded.Items[0].Quantity)

	s.Run("save rewrites the item set", func() {
		basket.Items = basket.Items[:1]
		basket.Items[0].Quantity = 5
		s.Require().NoError(s.store.Save(ctx, basket))

		loaded, err := s.store.GetByID(ctx, basket.ID)
		s.Require().NoError(err)
		s.Require().Len(loaded.Items, 1)
		s.Equal(5, loaded.Items[0].Quantity)
	})

	s.Run("saving an unknown basket is not found", func() {
		err := s.store.Save(ctx, models.Basket{ID: uuid.New()})
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *PostgresBasketSuite) TestCurrentForUser() {
	ctx := context.Background()
	userID := s.newUser()

	s.Run("no basket is not found", func() {
		_, err := s.store.CurrentForUser(ctx, userID)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	first := s.newBasket(userID)

	s.Run("finds the live basket", func() {
		current, err := s.store.CurrentForUser(ctx, userID)
		s.Require().NoError(err)
		s.Equal(first.ID, current.ID)
	})

	s.Run("a consumed basket is no longer current", func() {
		s.Require().NoError(s.store.AttachToOrder(ctx, first.ID, 42))

		replacement := s.newBasket(userID)
		current, err := s.store.CurrentForUser(ctx, userID)
		s.Require().NoError(err)
		s.Equal(replacement.ID, current.ID)
	})

	s.Run("row lock path inside a transaction", func() {
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			_, err := s.store.CurrentForUser(ctx, userID)
			return err
		})
		s.Require().NoError(err)
	})
}

func (s *PostgresBasketSuite) TestAttachToOrder() {
	ctx := context.Background()
	basket := s.newBasket(s.newUser())

	s.Require().NoError(s.store.AttachToOrder(ctx, basket.ID, 7))

	loaded, err := s.store.GetByID(ctx, basket.ID)
	s.Require().NoError(err)
	s.Equal(int64(7), loaded.OrderID)

	s.Run("a basket attaches to exactly one order", func() {
		err := s.store.AttachToOrder(ctx, basket.ID, 8)
		s.True(errors.Is(err, sentinel.ErrInvalidState))
	})
}

func (s *PostgresBasketSuite) TestTransactionRollback() {
	ctx := context.Background()
	basket := s.newBasket(s.newUser())

	boom := errors.New("boom")
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		basket.Items = []models.BasketItem{{ID: uuid.New(), SizeID: 1, Quantity: 1}}
		if err := s.store.Save(ctx, basket); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	loaded, err := s.store.GetByID(ctx, basket.ID)
	s.Require().NoError(err)
	s.Empty(loaded.Items, "failed transaction must leave no trace")
}
