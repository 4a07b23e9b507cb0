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

func (s *Postgres) Save(ctx context.Context, user models.User) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, is_guest, signup_device, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   email = EXCLUDED.email,
		   first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name,
		   is_guest = EXCLUDED.is_guest`,
		user.ID, user.Email, user.FirstName, user.LastName, user.IsGuest, user.SignupDevice, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	err := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, is_guest, signup_device, created_at
		 FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.IsGuest, &user.SignupDevice, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, sentinel.ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
