package domain

import "time"

// EscalationStatus enumerates the handling state of an escalation.
type EscalationStatus string

const (
	EscalationStatusTriggered    EscalationStatus = "TRIGGERED"
	EscalationStatusAcknowledged EscalationStatus = "ACKNOWLEDGED"
	EscalationStatusResolved     EscalationStatus = "RESOLVED"
)

// Escalation records a breached timeout or deadline for a ticket.
type Escalation struct {
	ID                string
	TicketID          string
	TriggerEvent      string
	EscalatedToUserID *string
	Status            EscalationStatus
	CreatedAt         time.Time
}
