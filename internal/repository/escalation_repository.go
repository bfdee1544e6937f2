package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// EscalationRepository encapsulates escalation persistence.
type EscalationRepository interface {
	Create(ctx context.Context, escalation *domain.Escalation) error
	// ExistsForTrigger reports whether an escalation with the same trigger was
	// already recorded for the ticket, so repeated monitor ticks stay idempotent.
	ExistsForTrigger(ctx context.Context, ticketID, triggerEvent string) (bool, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error)
	UpdateStatus(ctx context.Context, id string, status domain.EscalationStatus) error
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

func (r *escalationRepository) Create(ctx context.Context, escalation *domain.Escalation) error {
	const query = `
        INSERT INTO escalations (ticket_id, trigger_event, escalated_to_user_id, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		escalation.TicketID,
		escalation.TriggerEvent,
		escalation.EscalatedToUserID,
		escalation.Status,
	).Scan(&escalation.ID, &escalation.CreatedAt)
}

func (r *escalationRepository) ExistsForTrigger(ctx context.Context, ticketID, triggerEvent string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM escalations WHERE ticket_id=$1 AND trigger_event=$2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ticketID, triggerEvent).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	const query = `
        SELECT id, ticket_id, trigger_event, escalated_to_user_id, status, created_at
        FROM escalations WHERE ticket_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Escalation
	for rows.Next() {
		var escalation domain.Escalation
		if err := rows.Scan(
			&escalation.ID,
			&escalation.TicketID,
			&escalation.TriggerEvent,
			&escalation.EscalatedToUserID,
			&escalation.Status,
			&escalation.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, escalation)
	}
	return result, rows.Err()
}

func (r *escalationRepository) UpdateStatus(ctx context.Context, id string, status domain.EscalationStatus) error {
	const query = `UPDATE escalations SET status=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
