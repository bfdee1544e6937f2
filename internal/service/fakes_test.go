package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

func nowRef() time.Time {
	return time.Now()
}

// In-memory repository fakes mirroring the transactional guarantees of the
// postgres implementations.

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	nextID  int
	stats   map[string]repository.ProviderTicketStats
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets: make(map[string]*domain.Ticket),
		stats:   make(map[string]repository.ProviderTicketStats),
	}
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if ticket.ID == "" {
		ticket.ID = fmt.Sprintf("ticket-%d", f.nextID)
	}
	copied := *ticket
	f.tickets[ticket.ID] = &copied
	return nil
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	return nil
}

func (f *fakeTicketRepo) TransitionIfActive(ctx context.Context, id string, status domain.TicketStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return false, nil
	}
	if ticket.Status.IsTerminal() || ticket.Status == domain.TicketStatusEscalated {
		return false, nil
	}
	ticket.Status = status
	return true, nil
}

func (f *fakeTicketRepo) CloseCompleted(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok || ticket.Status != domain.TicketStatusCompleted {
		return false, nil
	}
	ticket.Status = domain.TicketStatusClosed
	now := nowRef()
	ticket.CompletedAt = &now
	return true, nil
}

func (f *fakeTicketRepo) ListActive(ctx context.Context) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range f.tickets {
		for _, status := range domain.ActiveTicketStatuses {
			if ticket.Status == status {
				out = append(out, *ticket)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.StoreID == storeID {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListByProvider(ctx context.Context, providerID string, limit, offset int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.AssignedProviderID != nil && *ticket.AssignedProviderID == providerID {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) StatsForProvider(ctx context.Context, providerID string) (repository.ProviderTicketStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[providerID], nil
}

type fakeProviderRepo struct {
	mu        sync.Mutex
	providers map[string]*domain.ServiceProvider
	order     []string
}

func newFakeProviderRepo() *fakeProviderRepo {
	return &fakeProviderRepo{providers: make(map[string]*domain.ServiceProvider)}
}

func (f *fakeProviderRepo) add(provider domain.ServiceProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := provider
	f.providers[provider.ID] = &copied
	f.order = append(f.order, provider.ID)
}

func (f *fakeProviderRepo) GetByID(ctx context.Context, id string) (*domain.ServiceProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	provider, ok := f.providers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *provider
	return &copied, nil
}

func (f *fakeProviderRepo) ListApprovedWithCapacity(ctx context.Context) ([]domain.ServiceProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServiceProvider
	for _, id := range f.order {
		provider := f.providers[id]
		if provider.Status == domain.ProviderStatusApproved && provider.CurrentLoad < provider.CapacityPerDay {
			out = append(out, *provider)
		}
	}
	return out, nil
}

func (f *fakeProviderRepo) IncrementLoad(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.incrementLocked(id)
}

func (f *fakeProviderRepo) incrementLocked(id string) error {
	provider, ok := f.providers[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if provider.CurrentLoad >= provider.CapacityPerDay {
		return apperrors.NewRetryableConflict("provider at capacity", map[string]any{"provider_id": id})
	}
	provider.CurrentLoad++
	return nil
}

func (f *fakeProviderRepo) DecrementLoad(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	provider, ok := f.providers[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if provider.CurrentLoad > 0 {
		provider.CurrentLoad--
	}
	return nil
}

type fakeAssignmentRepo struct {
	mu          sync.Mutex
	assignments []*domain.Assignment
	nextID      int
	tickets     *fakeTicketRepo
	providers   *fakeProviderRepo
}

func newFakeAssignmentRepo(tickets *fakeTicketRepo, providers *fakeProviderRepo) *fakeAssignmentRepo {
	return &fakeAssignmentRepo{tickets: tickets, providers: providers}
}

func (f *fakeAssignmentRepo) ProposeAssignment(ctx context.Context, ticketID, providerID string) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets.tickets[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if ticket.Status.IsTerminal() || ticket.Status == domain.TicketStatusEscalated {
		return nil, apperrors.NewConflict("ticket is no longer routable", nil)
	}
	if err := f.providers.IncrementLoad(ctx, providerID); err != nil {
		return nil, err
	}

	sequence := 0
	for _, assignment := range f.assignments {
		if assignment.TicketID == ticketID && assignment.Sequence > sequence {
			sequence = assignment.Sequence
		}
	}
	f.nextID++
	assignment := &domain.Assignment{
		ID:         fmt.Sprintf("assignment-%d", f.nextID),
		TicketID:   ticketID,
		ProviderID: providerID,
		Sequence:   sequence + 1,
		Status:     domain.AssignmentStatusProposed,
		CreatedAt:  nowRef(),
	}
	f.assignments = append(f.assignments, assignment)

	ticket.Status = domain.TicketStatusAssigned
	ticket.AssignedProviderID = &assignment.ProviderID
	assignedAt := nowRef()
	ticket.AssignedAt = &assignedAt
	return assignment, nil
}

func (f *fakeAssignmentRepo) AcceptProposed(ctx context.Context, ticketID, providerID, techID, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	assignment := f.proposedLocked(ticketID, providerID)
	if assignment == nil {
		return apperrors.NewConflict("no proposed assignment", nil)
	}
	assignment.Status = domain.AssignmentStatusAccepted
	assignment.AcceptedTechID = &techID
	assignment.AcceptedPhone = &phone
	acceptedAt := nowRef()
	assignment.AcceptedAt = &acceptedAt

	ticket := f.tickets.tickets[ticketID]
	ticket.Status = domain.TicketStatusInProgress
	ticket.AcceptedAt = &acceptedAt
	return nil
}

func (f *fakeAssignmentRepo) RejectProposed(ctx context.Context, ticketID, providerID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	assignment := f.proposedLocked(ticketID, providerID)
	if assignment == nil {
		return apperrors.NewConflict("no proposed assignment", nil)
	}
	assignment.Status = domain.AssignmentStatusRejected
	assignment.RejectionReason = &reason
	rejectedAt := nowRef()
	assignment.RejectedAt = &rejectedAt

	f.tickets.tickets[ticketID].Status = domain.TicketStatusRejectedByTech
	return f.providers.DecrementLoad(ctx, providerID)
}

func (f *fakeAssignmentRepo) CompleteAccepted(ctx context.Context, ticketID, providerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	if ticket.Status != domain.TicketStatusInProgress ||
		ticket.AssignedProviderID == nil || *ticket.AssignedProviderID != providerID {
		return apperrors.NewConflict("ticket is not in progress with this provider", nil)
	}
	ticket.Status = domain.TicketStatusCompleted
	return f.providers.DecrementLoad(ctx, providerID)
}

func (f *fakeAssignmentRepo) GetProposed(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, assignment := range f.assignments {
		if assignment.TicketID == ticketID && assignment.Status == domain.AssignmentStatusProposed {
			copied := *assignment
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAssignmentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Assignment
	for _, assignment := range f.assignments {
		if assignment.TicketID == ticketID {
			out = append(out, *assignment)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) proposedLocked(ticketID, providerID string) *domain.Assignment {
	for _, assignment := range f.assignments {
		if assignment.TicketID == ticketID && assignment.ProviderID == providerID &&
			assignment.Status == domain.AssignmentStatusProposed {
			return assignment
		}
	}
	return nil
}

type fakeStoreRepo struct {
	mu     sync.Mutex
	stores map[string]*domain.Store
}

func newFakeStoreRepo() *fakeStoreRepo {
	return &fakeStoreRepo{stores: make(map[string]*domain.Store)}
}

func (f *fakeStoreRepo) add(store domain.Store) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := store
	f.stores[store.ID] = &copied
}

func (f *fakeStoreRepo) GetByID(ctx context.Context, id string) (*domain.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	store, ok := f.stores[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *store
	return &copied, nil
}

type fakeRemarkRepo struct {
	mu      sync.Mutex
	remarks []domain.Remark
	nextID  int
}

func (f *fakeRemarkRepo) Create(ctx context.Context, remark *domain.Remark) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if remark.ID == "" {
		remark.ID = fmt.Sprintf("remark-%d", f.nextID)
	}
	if remark.CreatedAt.IsZero() {
		remark.CreatedAt = nowRef()
	}
	f.remarks = append(f.remarks, *remark)
	return nil
}

func (f *fakeRemarkRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Remark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Remark
	for _, remark := range f.remarks {
		if remark.TicketID == ticketID {
			out = append(out, remark)
		}
	}
	return out, nil
}

type fakeEscalationRepo struct {
	mu          sync.Mutex
	escalations []domain.Escalation
	nextID      int
}

func (f *fakeEscalationRepo) Create(ctx context.Context, escalation *domain.Escalation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if escalation.ID == "" {
		escalation.ID = fmt.Sprintf("escalation-%d", f.nextID)
	}
	if escalation.CreatedAt.IsZero() {
		escalation.CreatedAt = nowRef()
	}
	f.escalations = append(f.escalations, *escalation)
	return nil
}

func (f *fakeEscalationRepo) ExistsForTrigger(ctx context.Context, ticketID, triggerEvent string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, escalation := range f.escalations {
		if escalation.TicketID == ticketID && escalation.TriggerEvent == triggerEvent {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEscalationRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Escalation
	for _, escalation := range f.escalations {
		if escalation.TicketID == ticketID {
			out = append(out, escalation)
		}
	}
	return out, nil
}

func (f *fakeEscalationRepo) UpdateStatus(ctx context.Context, id string, status domain.EscalationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.escalations {
		if f.escalations[i].ID == id {
			f.escalations[i].Status = status
			return nil
		}
	}
	return pgx.ErrNoRows
}
