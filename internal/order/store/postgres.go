package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
	"emporia/pkg/platform/tx"
)

// Postgres stores orders with the contact and card snapshots as JSONB:
// orders are immutable after commit, so there is nothing relational to
// update inside them.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Insert(ctx context.Context, order *models.Order) error {
	billing, err := json.Marshal(order.Billing)
	if err != nil {
		return fmt.Errorf("marshal billing contact: %w", err)
	}
	var delivery, card []byte
	if order.Delivery != nil {
		if delivery, err = json.Marshal(order.Delivery); err != nil {
			return fmt.Errorf("marshal delivery contact: %w", err)
		}
	}
	if order.Card != nil {
		if card, err = json.Marshal(order.Card); err != nil {
			return fmt.Errorf("marshal card: %w", err)
		}
	}

	err = tx.Q(ctx, s.db).QueryRowContext(ctx,
		`INSERT INTO orders (status, email, use_card_holder_contact, pay_by_telephone,
		                     basket_id, user_id, billing_contact, delivery_contact, card,
		                     postage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		order.Status, order.Email, order.UseCardHolderContact, order.PayByTelephone,
		order.Basket.ID, order.UserID, billing, nullable(delivery), nullable(card),
		order.Postage, order.CreatedAt).
		Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Postgres) GetByID(ctx context.Context, id int64) (models.Order, error) {
	var (
		order    models.Order
		billing  []byte
		delivery []byte
		card     []byte
	)
	err := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, status, email, use_card_holder_contact, pay_by_telephone,
		        basket_id, user_id, billing_contact, delivery_contact, card,
		        postage, created_at, dispatched_at
		 FROM orders WHERE id = $1`, id).
		Scan(&order.ID, &order.Status, &order.Email, &order.UseCardHolderContact,
			&order.PayByTelephone, &order.Basket.ID, &order.UserID,
			&billing, &delivery, &card,
			&order.Postage, &order.CreatedAt, &order.DispatchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Order{}, sentinel.ErrNotFound
		}
		return models.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}

	if err := json.Unmarshal(billing, &order.Billing); err != nil {
		return models.Order{}, fmt.Errorf("unmarshal billing contact: %w", err)
	}
	if len(delivery) > 0 {
		order.Delivery = &models.Contact{}
		if err := json.Unmarshal(delivery, order.Delivery); err != nil {
			return models.Order{}, fmt.Errorf("unmarshal delivery contact: %w", err)
		}
	}
	if len(card) > 0 {
		order.Card = &models.Card{}
		if err := json.Unmarshal(card, order.Card); err != nil {
			return models.Order{}, fmt.Errorf("unmarshal card: %w", err)
		}
	}
	return order, nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
