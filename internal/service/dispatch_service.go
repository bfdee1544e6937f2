package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/classifier"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// DispatchService is the façade coordinating classification, availability,
// routing and escalation across the ticket lifecycle.
type DispatchService struct {
	classifier   classifier.Classifier
	availability *AvailabilityService
	routing      *RoutingService
	escalation   *EscalationService
	tickets      repository.TicketRepository
	providers    repository.ProviderRepository
	assignments  repository.AssignmentRepository
	stores       repository.StoreRepository
	remarks      repository.RemarkRepository
	escalations  repository.EscalationRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
}

// DispatchDependencies bundles collaborators for the dispatch service.
type DispatchDependencies struct {
	Classifier     classifier.Classifier
	Availability   *AvailabilityService
	Routing        *RoutingService
	Escalation     *EscalationService
	TicketRepo     repository.TicketRepository
	ProviderRepo   repository.ProviderRepository
	AssignmentRepo repository.AssignmentRepository
	StoreRepo      repository.StoreRepository
	RemarkRepo     repository.RemarkRepository
	EscalationRepo repository.EscalationRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewDispatchService constructs the service.
func NewDispatchService(deps DispatchDependencies) *DispatchService {
	return &DispatchService{
		classifier:   deps.Classifier,
		availability: deps.Availability,
		routing:      deps.Routing,
		escalation:   deps.Escalation,
		tickets:      deps.TicketRepo,
		providers:    deps.ProviderRepo,
		assignments:  deps.AssignmentRepo,
		stores:       deps.StoreRepo,
		remarks:      deps.RemarkRepo,
		escalations:  deps.EscalationRepo,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
	}
}

// SubmitTicketInput describes a new ticket report.
type SubmitTicketInput struct {
	Description     string
	LocationInStore string
	StoreID         string
	ReporterUserID  string
	AssetID         *string
}

// SubmitResult is the outcome of submitting a ticket. "Created but
// unassigned" is a normal business outcome, not a failure.
type SubmitResult struct {
	Ticket         *domain.Ticket
	Classification domain.Classification
	Assigned       bool
	ProviderID     *string
	RoutingScore   float64
	Reasoning      string
}

// SubmitTicket classifies the issue, fixes the SLA deadline, persists the
// ticket and routes it to the best available provider. Routing is
// best-effort: when no provider has spare capacity the ticket stays OPEN.
func (s *DispatchService) SubmitTicket(ctx context.Context, input SubmitTicketInput) (*SubmitResult, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}
	if input.StoreID == "" || input.ReporterUserID == "" {
		return nil, apperrors.NewValidationError("store_id and reporter required", nil)
	}

	store, err := s.stores.GetByID(ctx, input.StoreID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("store", map[string]any{"store_id": input.StoreID})
		}
		return nil, apperrors.MapError(err)
	}

	classification, err := s.classifier.Classify(ctx, input.Description)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := time.Now()
	ticket := &domain.Ticket{
		ExternalKey:     generateTicketKey(),
		StoreID:         store.ID,
		ReporterUserID:  input.ReporterUserID,
		Description:     strings.TrimSpace(input.Description),
		LocationInStore: strings.TrimSpace(input.LocationInStore),
		AssetID:         input.AssetID,
		Category:        classification.Category,
		Subcategory:     classification.Subcategory,
		Priority:        classification.Priority,
		Status:          domain.TicketStatusOpen,
		// Creation time is stamped here so the deadline is exactly the
		// creation instant plus the resolution budget, independent of any
		// database clock skew. Fixed at creation; never recomputed on
		// re-routing.
		CreatedAt:   now,
		SLADeadline: domain.SLADeadline(classification.Priority, now),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			StoreID:     ticket.StoreID,
			Category:    ticket.Category,
			Subcategory: ticket.Subcategory,
			Priority:    ticket.Priority,
			SLADeadline: ticket.SLADeadline,
		},
	})

	result := &SubmitResult{
		Ticket:         ticket,
		Classification: classification,
	}

	if store.Coordinates == nil {
		s.logger.Warn("store has no coordinates; leaving ticket unassigned",
			zap.String("ticket_id", ticket.ID),
			zap.String("store_id", store.ID))
		result.Reasoning = "store location unknown"
		return result, nil
	}

	decision, err := s.routeToAvailable(ctx, ticket, *store.Coordinates, "")
	if err != nil {
		return nil, err
	}
	if decision == nil {
		result.Reasoning = "no service providers available"
		return result, nil
	}

	result.Assigned = true
	result.ProviderID = &decision.ProviderID
	result.RoutingScore = decision.Score
	result.Reasoning = decision.Reasoning

	// Reflect the routed state on the returned ticket.
	if routed, err := s.tickets.GetByID(ctx, ticket.ID); err == nil {
		result.Ticket = routed
	}
	return result, nil
}

// AcceptAssignment confirms the proposed assignment with technician details
// and moves the ticket into progress.
func (s *DispatchService) AcceptAssignment(ctx context.Context, ticketID, providerID, techID, phone string) error {
	if techID == "" || phone == "" {
		return apperrors.NewValidationError("tech_id and phone required", nil)
	}
	if err := s.assignments.AcceptProposed(ctx, ticketID, providerID, techID, phone); err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketAccepted,
		TicketID: ticketID,
		Payload: events.TicketAcceptedPayload{
			ProviderID: providerID,
			TechID:     techID,
		},
	})
	return nil
}

// RejectAssignment records the provider's rejection, releases its capacity
// slot and re-routes the ticket to the next best provider. When no provider
// remains the ticket escalates.
func (s *DispatchService) RejectAssignment(ctx context.Context, ticketID, providerID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apperrors.NewValidationError("rejection reason required", nil)
	}

	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("provider", map[string]any{"provider_id": providerID})
		}
		return apperrors.MapError(err)
	}

	if err := s.assignments.RejectProposed(ctx, ticketID, providerID, reason); err != nil {
		return apperrors.MapError(err)
	}
	s.addSystemRemark(ctx, ticketID, providerID,
		fmt.Sprintf("Ticket rejected by %s. Reason: %s", provider.CompanyName, reason))

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	store, err := s.stores.GetByID(ctx, ticket.StoreID)
	if err != nil {
		return apperrors.MapError(err)
	}

	var decision *RoutingDecision
	if store.Coordinates != nil {
		decision, err = s.routeToAvailable(ctx, ticket, *store.Coordinates, providerID)
		if err != nil {
			return err
		}
	}

	if decision != nil {
		s.addSystemRemark(ctx, ticketID, providerID, "Ticket has been re-routed to another service provider.")
		s.publish(ctx, events.Event{
			Type:     events.EventTicketRejected,
			TicketID: ticketID,
			Payload: events.TicketRejectedPayload{
				ProviderID: providerID,
				Reason:     reason,
				Rerouted:   true,
			},
		})
		return nil
	}

	if _, err := s.tickets.TransitionIfActive(ctx, ticketID, domain.TicketStatusEscalated); err != nil {
		return apperrors.MapError(err)
	}
	if _, err := s.escalation.RaiseForTicket(ctx, ticket, "No available service providers after rejection"); err != nil {
		s.logger.Error("failed to raise rejection escalation",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
	s.addSystemRemark(ctx, ticketID, providerID, "No available service providers found. Ticket has been escalated to management.")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketRejected,
		TicketID: ticketID,
		Payload: events.TicketRejectedPayload{
			ProviderID: providerID,
			Reason:     reason,
			Rerouted:   false,
		},
	})
	return nil
}

// CompleteAssignment marks the ticket COMPLETED and releases the provider's
// slot. The completion timestamp is recorded at moderator approval, not here.
func (s *DispatchService) CompleteAssignment(ctx context.Context, ticketID, providerID string) error {
	if err := s.assignments.CompleteAccepted(ctx, ticketID, providerID); err != nil {
		return apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCompleted,
		TicketID: ticketID,
		Payload:  events.TicketCompletedPayload{ProviderID: providerID},
	})
	return nil
}

// ApproveCompletion closes a COMPLETED ticket and records the completion
// timestamp.
func (s *DispatchService) ApproveCompletion(ctx context.Context, ticketID, moderatorUserID string) error {
	changed, err := s.tickets.CloseCompleted(ctx, ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !changed {
		return apperrors.NewConflict("ticket is not awaiting completion approval", map[string]any{"ticket_id": ticketID})
	}
	s.addSystemRemark(ctx, ticketID, moderatorUserID, "Completion approved by moderator.")
	return nil
}

// AddRemark appends a note to the ticket's audit trail.
func (s *DispatchService) AddRemark(ctx context.Context, ticketID, userID, text string) (*domain.Remark, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("remark text required", nil)
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	remark := &domain.Remark{
		TicketID: ticketID,
		UserID:   userID,
		Text:     strings.TrimSpace(text),
	}
	if err := s.remarks.Create(ctx, remark); err != nil {
		return nil, apperrors.MapError(err)
	}
	return remark, nil
}

// TicketDetail aggregates a ticket with its routing history and audit trail.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Assignments []domain.Assignment
	Remarks     []domain.Remark
	Escalations []domain.Escalation
}

// GetTicketDetail fetches the full dispatch view of a ticket.
func (s *DispatchService) GetTicketDetail(ctx context.Context, ticketID string) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	assignments, err := s.assignments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	remarks, err := s.remarks.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	escalations, err := s.escalations.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &TicketDetail{
		Ticket:      ticket,
		Assignments: assignments,
		Remarks:     remarks,
		Escalations: escalations,
	}, nil
}

// ListStoreTickets returns tickets reported for a store, newest first.
func (s *DispatchService) ListStoreTickets(ctx context.Context, storeID string, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByStore(ctx, storeID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListProviderTickets returns tickets currently assigned to a provider.
func (s *DispatchService) ListProviderTickets(ctx context.Context, providerID string, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// routeToAvailable resolves candidates at the store location and routes the
// ticket, excluding the given provider id when set. A nil decision with nil
// error means no candidate remained.
func (s *DispatchService) routeToAvailable(ctx context.Context, ticket *domain.Ticket, location domain.Coordinates, excludeProviderID string) (*RoutingDecision, error) {
	requiredSkills := domain.RequiredSkills(ticket.Category, ticket.Subcategory)
	candidates, err := s.availability.AvailableProviders(ctx, requiredSkills, location)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if excludeProviderID != "" {
		filtered := candidates[:0]
		for _, candidate := range candidates {
			if candidate.Provider.ID != excludeProviderID {
				filtered = append(filtered, candidate)
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	decision, err := s.routing.RouteTicket(ctx, ticket, candidates)
	if err != nil {
		// Every candidate lost its capacity race; treat as no candidates.
		if apperrors.IsRetryable(err) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Payload: events.TicketAssignedPayload{
			ProviderID: decision.ProviderID,
			Sequence:   decision.Assignment.Sequence,
			Score:      decision.Score,
		},
	})
	return decision, nil
}

func (s *DispatchService) addSystemRemark(ctx context.Context, ticketID, userID, text string) {
	remark := &domain.Remark{TicketID: ticketID, UserID: userID, Text: text}
	if err := s.remarks.Create(ctx, remark); err != nil {
		s.logger.Warn("failed to record remark",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *DispatchService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
