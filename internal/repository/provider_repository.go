package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispatch-service/internal/domain"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

const providerColumns = `id, company_name, address, coordinates, company_code, skills,
               capacity_per_day, current_load, status, created_at, approved_at`

// ProviderRepository encapsulates service provider persistence. Load counters
// are only mutated through the atomic delta methods here so concurrent
// routing decisions never lose updates.
type ProviderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ServiceProvider, error)
	ListApprovedWithCapacity(ctx context.Context) ([]domain.ServiceProvider, error)
	// IncrementLoad atomically takes one capacity slot, refusing when the
	// provider is already at capacity.
	IncrementLoad(ctx context.Context, id string) error
	// DecrementLoad atomically releases one slot, never dropping below zero.
	DecrementLoad(ctx context.Context, id string) error
}

type providerRepository struct {
	pool *pgxpool.Pool
}

// NewProviderRepository instantiates repository.
func NewProviderRepository(pool *pgxpool.Pool) ProviderRepository {
	return &providerRepository{pool: pool}
}

func (r *providerRepository) GetByID(ctx context.Context, id string) (*domain.ServiceProvider, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_providers WHERE id=$1`, providerColumns)
	var provider domain.ServiceProvider
	if err := scanProvider(r.pool.QueryRow(ctx, query, id), &provider); err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *providerRepository) ListApprovedWithCapacity(ctx context.Context) ([]domain.ServiceProvider, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM service_providers
        WHERE status='APPROVED' AND current_load < capacity_per_day
        ORDER BY id`, providerColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ServiceProvider
	for rows.Next() {
		var provider domain.ServiceProvider
		if err := scanProvider(rows, &provider); err != nil {
			return nil, err
		}
		result = append(result, provider)
	}
	return result, rows.Err()
}

func (r *providerRepository) IncrementLoad(ctx context.Context, id string) error {
	return incrementProviderLoad(ctx, r.pool, id)
}

func (r *providerRepository) DecrementLoad(ctx context.Context, id string) error {
	return decrementProviderLoad(ctx, r.pool, id)
}

// execer lets load deltas run on either the pool or an open transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func incrementProviderLoad(ctx context.Context, db execer, id string) error {
	const query = `
        UPDATE service_providers SET current_load = current_load + 1
        WHERE id=$1 AND current_load < capacity_per_day`
	cmd, err := db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewRetryableConflict("provider has no spare capacity", map[string]any{"provider_id": id})
	}
	return nil
}

func decrementProviderLoad(ctx context.Context, db execer, id string) error {
	const query = `
        UPDATE service_providers SET current_load = GREATEST(current_load - 1, 0)
        WHERE id=$1`
	cmd, err := db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanProvider(row rowScanner, provider *domain.ServiceProvider) error {
	var coords []byte
	if err := row.Scan(
		&provider.ID,
		&provider.CompanyName,
		&provider.Address,
		&coords,
		&provider.CompanyCode,
		&provider.Skills,
		&provider.CapacityPerDay,
		&provider.CurrentLoad,
		&provider.Status,
		&provider.CreatedAt,
		&provider.ApprovedAt,
	); err != nil {
		return err
	}
	if len(coords) > 0 {
		var parsed domain.Coordinates
		// Malformed coordinates degrade to nil; distance scoring handles it.
		if err := json.Unmarshal(coords, &parsed); err == nil {
			provider.Coordinates = &parsed
		}
	}
	return nil
}
