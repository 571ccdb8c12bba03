package postgres

import (
	"context"
	"errors"
	"fmt"

	"zimba-booking/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PropertyRepo implements ports.PropertyRepository.
type PropertyRepo struct {
	pool Pool
}

// NewPropertyRepo creates a new PropertyRepo.
func NewPropertyRepo(pool Pool) *PropertyRepo {
	return &PropertyRepo{pool: pool}
}

// GetByID fetches a catalog property. Returns nil, nil when absent.
func (r *PropertyRepo) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	query := `SELECT id, name, landlord_id, landlord_name, price, currency FROM properties WHERE id = $1`

	p := &domain.Property{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.LandlordID, &p.LandlordName, &p.Price.Amount, &p.Price.Currency,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get property: %w", err)
	}
	return p, nil
}

// Upsert writes a catalog property, replacing an existing row with the same id.
func (r *PropertyRepo) Upsert(ctx context.Context, p domain.Property) error {
	query := `
		INSERT INTO properties (id, name, landlord_id, landlord_name, price, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			landlord_id = EXCLUDED.landlord_id,
			landlord_name = EXCLUDED.landlord_name,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency`

	_, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.LandlordID, p.LandlordName, p.Price.Amount, p.Price.Currency)
	if err != nil {
		return fmt.Errorf("upsert property %s: %w", p.ID, err)
	}
	return nil
}
