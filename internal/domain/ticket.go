package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen           TicketStatus = "OPEN"
	TicketStatusAssigned       TicketStatus = "ASSIGNED"
	TicketStatusInProgress     TicketStatus = "IN_PROGRESS"
	TicketStatusRejectedByTech TicketStatus = "REJECTED_BY_TECH"
	TicketStatusEscalated      TicketStatus = "ESCALATED"
	TicketStatusCompleted      TicketStatus = "COMPLETED"
	TicketStatusClosed         TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityLow    TicketPriority = "LOW"
)

// IsTerminal reports whether the status ends SLA enforcement for the ticket.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusClosed
}

// ActiveTicketStatuses are the states the escalation monitor scans.
// REJECTED_BY_TECH is included: a ticket can be stranded there when
// re-routing fails after a rejection, and its absolute deadline still counts.
var ActiveTicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusRejectedByTech,
}

// Ticket is the aggregate for a reported store issue.
type Ticket struct {
	ID                 string
	ExternalKey        string
	StoreID            string
	ReporterUserID     string
	Description        string
	LocationInStore    string
	AssetID            *string
	Category           string
	Subcategory        string
	Priority           TicketPriority
	Status             TicketStatus
	AssignedProviderID *string
	SLADeadline        time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	AssignedAt         *time.Time
	AcceptedAt         *time.Time
	CompletedAt        *time.Time
}
