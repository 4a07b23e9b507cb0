package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
	"emporia/pkg/platform/tx"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) GetByID(ctx context.Context, id uuid.UUID) (models.Basket, error) {
	q := tx.Q(ctx, s.db)
	basket, err := s.scanBasket(q.QueryRowContext(ctx,
		`SELECT id, user_id, country_id, COALESCE(order_id, 0), created_at
		 FROM baskets WHERE id = $1`, id))
	if err != nil {
		return models.Basket{}, err
	}
	basket.Items, err = s.loadItems(ctx, q, basket.ID)
	if err != nil {
		return models.Basket{}, err
	}
	return basket, nil
}

func (s *Postgres) CurrentForUser(ctx context.Context, userID uuid.UUID) (models.Basket, error) {
	q := tx.Q(ctx, s.db)
	// FOR UPDATE serializes concurrent mutations of the same user's basket
	// when called inside a transaction.
	query := `SELECT id, user_id, country_id, COALESCE(order_id, 0), created_at
		 FROM baskets
		 WHERE user_id = $1 AND order_id IS NULL
		 ORDER BY created_at DESC
		 LIMIT 1`
	if _, inTx := tx.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	basket, err := s.scanBasket(q.QueryRowContext(ctx, query, userID))
	if err != nil {
		return models.Basket{}, err
	}
	basket.Items, err = s.loadItems(ctx, q, basket.ID)
	if err != nil {
		return models.Basket{}, err
	}
	return basket, nil
}

func (s *Postgres) Create(ctx context.Context, basket models.Basket) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx,
		`INSERT INTO baskets (id, user_id, country_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		basket.ID, basket.UserID, basket.CountryID, basket.CreatedAt)
	if err != nil {
		return fmt.Errorf("create basket: %w", err)
	}
	return nil
}

// Save rewrites the basket header and item set. Item rows are replaced
// wholesale; the basket is small and this keeps quantities and removals in
// one code path.
func (s *Postgres) Save(ctx context.Context, basket models.Basket) error {
	q := tx.Q(ctx, s.db)
	res, err := q.ExecContext(ctx,
		`UPDATE baskets SET country_id = $2 WHERE id = $1`,
		basket.ID, basket.CountryID)
	if err != nil {
		return fmt.Errorf("save basket: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save basket: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}

	if _, err := q.ExecContext(ctx,
		`DELETE FROM basket_items WHERE basket_id = $1`, basket.ID); err != nil {
		return fmt.Errorf("save basket items: %w", err)
	}
	for _, item := range basket.Items {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO basket_items (id, basket_id, size_id, quantity)
			 VALUES ($1, $2, $3, $4)`,
			item.ID, basket.ID, item.SizeID, item.Quantity); err != nil {
			return fmt.Errorf("save basket item: %w", err)
		}
	}
	return nil
}

func (s *Postgres) DeleteItem(ctx context.Context, basketID, itemID uuid.UUID) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx,
		`DELETE FROM basket_items WHERE basket_id = $1 AND id = $2`,
		basketID, itemID)
	if err != nil {
		return fmt.Errorf("delete basket item: %w", err)
	}
	return nil
}

func (s *Postgres) AttachToOrder(ctx context.Context, basketID uuid.UUID, orderID int64) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx,
		`UPDATE baskets SET order_id = $2 WHERE id = $1 AND order_id IS NULL`,
		basketID, orderID)
	if err != nil {
		return fmt.Errorf("attach basket to order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach basket to order: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) scanBasket(row *sql.Row) (models.Basket, error) {
	var basket models.Basket
	err := row.Scan(&basket.ID, &basket.UserID, &basket.CountryID, &basket.OrderID, &basket.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Basket{}, sentinel.ErrNotFound
		}
		return models.Basket{}, fmt.Errorf("scan basket: %w", err)
	}
	return basket, nil
}

func (s *Postgres) loadItems(ctx context.Context, q tx.Querier, basketID uuid.UUID) ([]models.BasketItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, size_id, quantity FROM basket_items WHERE basket_id = $1 ORDER BY size_id`,
		basketID)
	if err != nil {
		return nil, fmt.Errorf("load basket items: %w", err)
	}
	defer rows.Close()

	var items []models.BasketItem
	for rows.Next() {
		var item models.BasketItem
		if err := rows.Scan(&item.ID, &item.SizeID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan basket item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load basket items: %w", err)
	}
	return items, nil
}
