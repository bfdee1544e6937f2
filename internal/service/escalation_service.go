package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

// EscalationService evaluates SLA deadlines against ticket state and raises
// escalation records addressed to the store's moderator.
type EscalationService struct {
	tickets     repository.TicketRepository
	stores      repository.StoreRepository
	escalations repository.EscalationRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// EscalationDependencies bundles repositories for the escalation service.
type EscalationDependencies struct {
	TicketRepo     repository.TicketRepository
	StoreRepo      repository.StoreRepository
	EscalationRepo repository.EscalationRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		tickets:     deps.TicketRepo,
		stores:      deps.StoreRepo,
		escalations: deps.EscalationRepo,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
}

// slaBreach is one triggered condition on one ticket.
type slaBreach struct {
	trigger         string
	escalatesTicket bool
}

// CheckAllSLAs scans every active ticket and raises escalations for breached
// timeouts. Each ticket is checked independently; a failure on one ticket
// never aborts the sweep. Only the absolute deadline breach transitions the
// ticket to ESCALATED, and only while the ticket is still active, so a
// concurrently completed ticket is left alone.
func (s *EscalationService) CheckAllSLAs(ctx context.Context, now time.Time) error {
	tickets, err := s.tickets.ListActive(ctx)
	if err != nil {
		return err
	}

	for i := range tickets {
		ticket := &tickets[i]
		for _, breach := range checkTicketSLA(ticket, now) {
			if err := s.raise(ctx, ticket, breach); err != nil {
				s.logger.Error("failed to raise escalation",
					zap.String("ticket_id", ticket.ID),
					zap.String("trigger", breach.trigger),
					zap.Error(err))
			}
		}
	}
	return nil
}

// checkTicketSLA evaluates all timeout conditions for one ticket. Multiple
// breaches may co-occur and each is reported separately.
func checkTicketSLA(ticket *domain.Ticket, now time.Time) []slaBreach {
	rule := domain.RuleForPriority(ticket.Priority)
	var breaches []slaBreach

	if ticket.Status == domain.TicketStatusOpen {
		deadline := ticket.CreatedAt.Add(rule.AssignmentTimeout)
		if now.After(deadline) {
			breaches = append(breaches, slaBreach{
				trigger: fmt.Sprintf("Assignment timeout: %d minutes exceeded", int(rule.AssignmentTimeout.Minutes())),
			})
		}
	}

	if ticket.Status == domain.TicketStatusAssigned && ticket.AssignedAt != nil {
		deadline := ticket.AssignedAt.Add(rule.AcceptanceTimeout)
		if now.After(deadline) {
			breaches = append(breaches, slaBreach{
				trigger: fmt.Sprintf("Acceptance timeout: %d minutes exceeded", int(rule.AcceptanceTimeout.Minutes())),
			})
		}
	}

	if ticket.Status == domain.TicketStatusInProgress && ticket.AcceptedAt != nil {
		deadline := ticket.AcceptedAt.Add(rule.ResolutionTimeout)
		if now.After(deadline) {
			breaches = append(breaches, slaBreach{
				trigger: fmt.Sprintf("Resolution timeout: %d hours exceeded", int(rule.ResolutionTimeout.Hours())),
			})
		}
	}

	if now.After(ticket.SLADeadline) && !ticket.Status.IsTerminal() {
		breaches = append(breaches, slaBreach{
			trigger:         "SLA deadline exceeded",
			escalatesTicket: true,
		})
	}

	return breaches
}

func (s *EscalationService) raise(ctx context.Context, ticket *domain.Ticket, breach slaBreach) error {
	created, err := s.RaiseForTicket(ctx, ticket, breach.trigger)
	if err != nil {
		return err
	}

	if breach.escalatesTicket {
		changed, err := s.tickets.TransitionIfActive(ctx, ticket.ID, domain.TicketStatusEscalated)
		if err != nil {
			return err
		}
		if changed {
			s.publish(ctx, events.Event{
				Type:     events.EventTicketEscalated,
				TicketID: ticket.ID,
				Payload:  events.TicketEscalatedPayload{Reason: breach.trigger},
			})
		}
	}

	if created {
		s.logger.Info("escalation created",
			zap.String("ticket_id", ticket.ID),
			zap.String("trigger", breach.trigger))
	}
	return nil
}

// RaiseForTicket records an escalation for the ticket unless an identical
// trigger already exists. Returns whether a new record was created.
func (s *EscalationService) RaiseForTicket(ctx context.Context, ticket *domain.Ticket, trigger string) (bool, error) {
	exists, err := s.escalations.ExistsForTrigger(ctx, ticket.ID, trigger)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var moderatorID *string
	store, err := s.stores.GetByID(ctx, ticket.StoreID)
	if err != nil {
		// The escalation still gets recorded without a recipient.
		s.logger.Warn("store lookup failed for escalation",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	} else {
		moderatorID = store.ModeratorUserID
	}

	escalation := &domain.Escalation{
		TicketID:          ticket.ID,
		TriggerEvent:      trigger,
		EscalatedToUserID: moderatorID,
		Status:            domain.EscalationStatusTriggered,
	}
	if err := s.escalations.Create(ctx, escalation); err != nil {
		return false, err
	}
	s.metrics.RecordEscalation()

	s.publish(ctx, events.Event{
		Type:     events.EventEscalationTriggered,
		TicketID: ticket.ID,
		Payload: events.EscalationTriggeredPayload{
			TriggerEvent:      trigger,
			EscalatedToUserID: moderatorID,
		},
	})
	return true, nil
}

func (s *EscalationService) publish(ctx context.Context, event events.Event) {
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
