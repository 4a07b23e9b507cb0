package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
	"emporia/pkg/platform/tx"
)

// PostgresSizes reads size rows joined with their product.
type PostgresSizes struct {
	db *sql.DB
}

func NewPostgresSizes(db *sql.DB) *PostgresSizes {
	return &PostgresSizes{db: db}
}

const sizeSelect = `
	SELECT s.id, s.name, s.is_in_stock, s.is_active,
	       p.id, p.name, p.price, p.weight
	FROM sizes s
	JOIN products p ON p.id = s.product_id`

func (s *PostgresSizes) GetByID(ctx context.Context, id int) (models.Size, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx, sizeSelect+` WHERE s.id = $1`, id)
	size, err := scanSize(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Size{}, sentinel.ErrNotFound
		}
		return models.Size{}, fmt.Errorf("get size %d: %w", id, err)
	}
	return size, nil
}

func (s *PostgresSizes) GetByIDs(ctx context.Context, ids []int) (map[int]models.Size, error) {
	found := make(map[int]models.Size, len(ids))
	for _, id := range ids {
		size, err := s.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		found[id] = size
	}
	return found, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSize(row rowScanner) (models.Size, error) {
	var size models.Size
	err := row.Scan(
		&size.ID, &size.Name, &size.IsInStock, &size.IsActive,
		&size.Product.ID, &size.Product.Name, &size.Product.Price, &size.Product.Weight,
	)
	return size, err
}

// PostgresCountries reads country reference data.
type PostgresCountries struct {
	db *sql.DB
}

func NewPostgresCountries(db *sql.DB) *PostgresCountries {
	return &PostgresCountries{db: db}
}

func (s *PostgresCountries) GetByID(ctx context.Context, id int) (models.Country, error) {
	var c models.Country
	err := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, name, is_active, position, postage_multiplier
		 FROM countries WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.IsActive, &c.Position, &c.PostageMultiplier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Country{}, sentinel.ErrNotFound
		}
		return models.Country{}, fmt.Errorf("get country %d: %w", id, err)
	}
	return c, nil
}

func (s *PostgresCountries) ListActive(ctx context.Context) ([]models.Country, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx,
		`SELECT id, name, is_active, position, postage_multiplier
		 FROM countries WHERE is_active ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	var countries []models.Country
	for rows.Next() {
		var c models.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.Position, &c.PostageMultiplier); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		countries = append(countries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return countries, nil
}

// PostgresCardTypes reads the card type list.
type PostgresCardTypes struct {
	db *sql.DB
}

func NewPostgresCardTypes(db *sql.DB) *PostgresCardTypes {
	return &PostgresCardTypes{db: db}
}

func (s *PostgresCardTypes) List(ctx context.Context) ([]models.CardType, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx,
		`SELECT id, name FROM card_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list card types: %w", err)
	}
	defer rows.Close()

	var types []models.CardType
	for rows.Next() {
		var t models.CardType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan card type: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list card types: %w", err)
	}
	return types, nil
}
