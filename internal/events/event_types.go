package events

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketAccepted      EventType = "ticket_accepted"
	EventTicketRejected      EventType = "ticket_rejected"
	EventTicketCompleted     EventType = "ticket_completed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventEscalationTriggered EventType = "escalation_triggered"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	StoreID     string                `json:"store_id"`
	Category    string                `json:"category"`
	Subcategory string                `json:"subcategory"`
	Priority    domain.TicketPriority `json:"priority"`
	SLADeadline time.Time             `json:"sla_deadline"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	ProviderID string  `json:"provider_id"`
	Sequence   int     `json:"sequence"`
	Score      float64 `json:"score"`
}

// TicketAcceptedPayload payload.
type TicketAcceptedPayload struct {
	ProviderID string `json:"provider_id"`
	TechID     string `json:"tech_id"`
}

// TicketRejectedPayload payload.
type TicketRejectedPayload struct {
	ProviderID string `json:"provider_id"`
	Reason     string `json:"reason"`
	Rerouted   bool   `json:"rerouted"`
}

// TicketCompletedPayload payload.
type TicketCompletedPayload struct {
	ProviderID string `json:"provider_id"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	Reason string `json:"reason"`
}

// EscalationTriggeredPayload payload.
type EscalationTriggeredPayload struct {
	TriggerEvent      string  `json:"trigger_event"`
	EscalatedToUserID *string `json:"escalated_to_user_id,omitempty"`
}
