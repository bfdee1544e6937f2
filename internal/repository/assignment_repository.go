package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispatch-service/internal/domain"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

const assignmentColumns = `id, ticket_id, provider_id, assignment_sequence, status,
               accepted_tech_id, accepted_phone, rejection_reason, created_at, accepted_at, rejected_at`

// AssignmentRepository owns the transactional mutation groups of the routing
// lifecycle. Each method is a single database transaction: a crash can never
// leave a provider's load incremented without an assignment row or vice versa.
type AssignmentRepository interface {
	// ProposeAssignment creates a PROPOSED assignment with the next sequence
	// number, marks the ticket ASSIGNED and takes one capacity slot from the
	// provider. Refuses tickets already ESCALATED or terminal, and returns a
	// retryable conflict when the provider's last slot was claimed concurrently.
	ProposeAssignment(ctx context.Context, ticketID, providerID string) (*domain.Assignment, error)
	// AcceptProposed moves the PROPOSED assignment to ACCEPTED with technician
	// metadata and the ticket to IN_PROGRESS.
	AcceptProposed(ctx context.Context, ticketID, providerID, techID, phone string) error
	// RejectProposed moves the PROPOSED assignment to REJECTED with the reason,
	// the ticket to REJECTED_BY_TECH, and releases the provider's slot.
	RejectProposed(ctx context.Context, ticketID, providerID, reason string) error
	// CompleteAccepted marks the ticket COMPLETED and releases the provider's
	// slot. The completion timestamp is recorded later, at moderator approval.
	CompleteAccepted(ctx context.Context, ticketID, providerID string) error
	GetProposed(ctx context.Context, ticketID string) (*domain.Assignment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository instantiates repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) ProposeAssignment(ctx context.Context, ticketID, providerID string) (*domain.Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock the ticket row so concurrent reject/re-route races serialize and
	// sequence numbers reflect true chronological routing order.
	var currentStatus domain.TicketStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM tickets WHERE id=$1 FOR UPDATE`, ticketID).
		Scan(&currentStatus); err != nil {
		return nil, err
	}
	if currentStatus.IsTerminal() || currentStatus == domain.TicketStatusEscalated {
		return nil, apperrors.NewConflict("ticket is no longer routable", map[string]any{
			"ticket_id": ticketID,
			"status":    string(currentStatus),
		})
	}

	var sequence int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(assignment_sequence), 0) + 1 FROM ticket_assignments WHERE ticket_id=$1`,
		ticketID).Scan(&sequence); err != nil {
		return nil, err
	}

	assignment := &domain.Assignment{
		TicketID:   ticketID,
		ProviderID: providerID,
		Sequence:   sequence,
		Status:     domain.AssignmentStatusProposed,
	}
	if err := tx.QueryRow(ctx, `
        INSERT INTO ticket_assignments (ticket_id, provider_id, assignment_sequence, status)
        VALUES ($1,$2,$3,'PROPOSED')
        RETURNING id, created_at`,
		ticketID, providerID, sequence).Scan(&assignment.ID, &assignment.CreatedAt); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE tickets SET status='ASSIGNED', assigned_provider_id=$1, assigned_at=NOW(), updated_at=NOW()
        WHERE id=$2`, providerID, ticketID); err != nil {
		return nil, err
	}

	if err := incrementProviderLoad(ctx, tx, providerID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *assignmentRepository) AcceptProposed(ctx context.Context, ticketID, providerID, techID, phone string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `
        UPDATE ticket_assignments SET status='ACCEPTED', accepted_at=NOW(), accepted_tech_id=$1, accepted_phone=$2
        WHERE ticket_id=$3 AND provider_id=$4 AND status='PROPOSED'`,
		techID, phone, ticketID, providerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewConflict("no proposed assignment for provider", map[string]any{
			"ticket_id":   ticketID,
			"provider_id": providerID,
		})
	}

	if _, err := tx.Exec(ctx, `
        UPDATE tickets SET status='IN_PROGRESS', accepted_at=NOW(), updated_at=NOW()
        WHERE id=$1`, ticketID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *assignmentRepository) RejectProposed(ctx context.Context, ticketID, providerID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `
        UPDATE ticket_assignments SET status='REJECTED', rejected_at=NOW(), rejection_reason=$1
        WHERE ticket_id=$2 AND provider_id=$3 AND status='PROPOSED'`,
		reason, ticketID, providerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewConflict("no proposed assignment for provider", map[string]any{
			"ticket_id":   ticketID,
			"provider_id": providerID,
		})
	}

	if _, err := tx.Exec(ctx, `
        UPDATE tickets SET status='REJECTED_BY_TECH', updated_at=NOW()
        WHERE id=$1`, ticketID); err != nil {
		return err
	}

	if err := decrementProviderLoad(ctx, tx, providerID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *assignmentRepository) CompleteAccepted(ctx context.Context, ticketID, providerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `
        UPDATE tickets SET status='COMPLETED', updated_at=NOW()
        WHERE id=$1 AND assigned_provider_id=$2 AND status='IN_PROGRESS'`,
		ticketID, providerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewConflict("ticket is not in progress for provider", map[string]any{
			"ticket_id":   ticketID,
			"provider_id": providerID,
		})
	}

	if err := decrementProviderLoad(ctx, tx, providerID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *assignmentRepository) GetProposed(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ticket_assignments
        WHERE ticket_id=$1 AND status='PROPOSED'
        ORDER BY assignment_sequence DESC LIMIT 1`, assignmentColumns)
	var assignment domain.Assignment
	if err := scanAssignment(r.pool.QueryRow(ctx, query, ticketID), &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Assignment, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ticket_assignments
        WHERE ticket_id=$1 ORDER BY assignment_sequence`, assignmentColumns)
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var assignment domain.Assignment
		if err := scanAssignment(rows, &assignment); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}

func scanAssignment(row rowScanner, assignment *domain.Assignment) error {
	return row.Scan(
		&assignment.ID,
		&assignment.TicketID,
		&assignment.ProviderID,
		&assignment.Sequence,
		&assignment.Status,
		&assignment.AcceptedTechID,
		&assignment.AcceptedPhone,
		&assignment.RejectionReason,
		&assignment.CreatedAt,
		&assignment.AcceptedAt,
		&assignment.RejectedAt,
	)
}
