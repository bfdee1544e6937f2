package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// StoreRepository encapsulates store lookups.
type StoreRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Store, error)
}

type storeRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository instantiates repository.
func NewStoreRepository(pool *pgxpool.Pool) StoreRepository {
	return &storeRepository{pool: pool}
}

func (r *storeRepository) GetByID(ctx context.Context, id string) (*domain.Store, error) {
	const query = `
        SELECT id, name, store_code, address, city, state, zip_code, coordinates,
               status, moderator_user_id, created_at, approved_at
        FROM stores WHERE id=$1`
	var store domain.Store
	var coords []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&store.ID,
		&store.Name,
		&store.StoreCode,
		&store.Address,
		&store.City,
		&store.State,
		&store.ZipCode,
		&coords,
		&store.Status,
		&store.ModeratorUserID,
		&store.CreatedAt,
		&store.ApprovedAt,
	); err != nil {
		return nil, err
	}
	if len(coords) > 0 {
		var parsed domain.Coordinates
		if err := json.Unmarshal(coords, &parsed); err == nil {
			store.Coordinates = &parsed
		}
	}
	return &store, nil
}
