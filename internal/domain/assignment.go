package domain

import "time"

// AssignmentStatus enumerates the outcome of one routing attempt.
type AssignmentStatus string

const (
	AssignmentStatusProposed AssignmentStatus = "PROPOSED"
	AssignmentStatusAccepted AssignmentStatus = "ACCEPTED"
	AssignmentStatusRejected AssignmentStatus = "REJECTED"
	AssignmentStatusExpired  AssignmentStatus = "EXPIRED"
)

// Assignment links a ticket to a provider for one routing attempt. Sequence is
// monotonically increasing per ticket and records re-routing history in
// chronological order.
type Assignment struct {
	ID              string
	TicketID        string
	ProviderID      string
	Sequence        int
	Status          AssignmentStatus
	AcceptedTechID  *string
	AcceptedPhone   *string
	RejectionReason *string
	CreatedAt       time.Time
	AcceptedAt      *time.Time
	RejectedAt      *time.Time
}
