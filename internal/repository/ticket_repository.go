package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

const ticketColumns = `id, external_key, store_id, reporter_user_id, description, location_in_store,
               asset_id, category, subcategory, priority, status, assigned_provider_id,
               sla_deadline, created_at, updated_at, assigned_at, accepted_at, completed_at`

// ProviderTicketStats captures a provider's historical completion counters.
type ProviderTicketStats struct {
	Completed int
	Total     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	// TransitionIfActive moves a ticket to the given status only when it is not
	// already terminal or escalated, and reports whether the row changed.
	TransitionIfActive(ctx context.Context, id string, status domain.TicketStatus) (bool, error)
	// CloseCompleted closes a COMPLETED ticket and records the completion
	// timestamp, reporting whether the row changed.
	CloseCompleted(ctx context.Context, id string) (bool, error)
	ListActive(ctx context.Context) ([]domain.Ticket, error)
	ListByStore(ctx context.Context, storeID string, limit, offset int) ([]domain.Ticket, error)
	ListByProvider(ctx context.Context, providerID string, limit, offset int) ([]domain.Ticket, error)
	StatsForProvider(ctx context.Context, providerID string) (ProviderTicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	// created_at comes from the caller so the SLA deadline and the creation
	// timestamp are derived from the same clock.
	const query = `
        INSERT INTO tickets (external_key, store_id, reporter_user_id, description, location_in_store,
            asset_id, category, subcategory, priority, status, sla_deadline, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.StoreID,
		ticket.ReporterUserID,
		ticket.Description,
		ticket.LocationInStore,
		ticket.AssetID,
		ticket.Category,
		ticket.Subcategory,
		ticket.Priority,
		ticket.Status,
		ticket.SLADeadline,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) TransitionIfActive(ctx context.Context, id string, status domain.TicketStatus) (bool, error) {
	const query = `
        UPDATE tickets SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status NOT IN ('COMPLETED','CLOSED','ESCALATED')`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) CloseCompleted(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE tickets SET status='CLOSED', completed_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status='COMPLETED'`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) ListActive(ctx context.Context) ([]domain.Ticket, error) {
	statuses := make([]string, len(domain.ActiveTicketStatuses))
	for i, status := range domain.ActiveTicketStatuses {
		statuses[i] = string(status)
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE status = ANY($1) ORDER BY created_at`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]domain.Ticket, error) {
	return r.list(ctx, "store_id", storeID, limit, offset)
}

func (r *ticketRepository) ListByProvider(ctx context.Context, providerID string, limit, offset int) ([]domain.Ticket, error) {
	return r.list(ctx, "assigned_provider_id", providerID, limit, offset)
}

func (r *ticketRepository) list(ctx context.Context, column, value string, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s=$1 ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, column, limit, offset)
	rows, err := r.pool.Query(ctx, query, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) StatsForProvider(ctx context.Context, providerID string) (ProviderTicketStats, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE status IN ('COMPLETED','CLOSED')), COUNT(*)
        FROM tickets WHERE assigned_provider_id=$1`
	var stats ProviderTicketStats
	if err := r.pool.QueryRow(ctx, query, providerID).Scan(&stats.Completed, &stats.Total); err != nil {
		return ProviderTicketStats{}, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.StoreID,
		&ticket.ReporterUserID,
		&ticket.Description,
		&ticket.LocationInStore,
		&ticket.AssetID,
		&ticket.Category,
		&ticket.Subcategory,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedProviderID,
		&ticket.SLADeadline,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AssignedAt,
		&ticket.AcceptedAt,
		&ticket.CompletedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
