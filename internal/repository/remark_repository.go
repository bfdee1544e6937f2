package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// RemarkRepository encapsulates the ticket audit trail.
type RemarkRepository interface {
	Create(ctx context.Context, remark *domain.Remark) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Remark, error)
}

type remarkRepository struct {
	pool *pgxpool.Pool
}

// NewRemarkRepository instantiates repository.
func NewRemarkRepository(pool *pgxpool.Pool) RemarkRepository {
	return &remarkRepository{pool: pool}
}

func (r *remarkRepository) Create(ctx context.Context, remark *domain.Remark) error {
	const query = `
        INSERT INTO remarks (ticket_id, user_id, remark_text)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		remark.TicketID,
		remark.UserID,
		remark.Text,
	).Scan(&remark.ID, &remark.CreatedAt)
}

func (r *remarkRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Remark, error) {
	const query = `
        SELECT id, ticket_id, user_id, remark_text, created_at
        FROM remarks WHERE ticket_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Remark
	for rows.Next() {
		var remark domain.Remark
		if err := rows.Scan(
			&remark.ID,
			&remark.TicketID,
			&remark.UserID,
			&remark.Text,
			&remark.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, remark)
	}
	return result, rows.Err()
}
