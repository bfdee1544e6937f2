package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	Description     string  `json:"description"`
	LocationInStore string  `json:"location_in_store"`
	AssetID         *string `json:"asset_id,omitempty"`
}

// AcceptAssignmentRequest payload.
type AcceptAssignmentRequest struct {
	TechID string `json:"tech_id"`
	Phone  string `json:"phone"`
}

// RejectAssignmentRequest payload.
type RejectAssignmentRequest struct {
	Reason string `json:"reason"`
}

// CreateRemarkRequest payload.
type CreateRemarkRequest struct {
	Text string `json:"text"`
}

// TicketResponse is the API view of a ticket.
type TicketResponse struct {
	ID                 string                `json:"id"`
	ExternalKey        string                `json:"external_key"`
	StoreID            string                `json:"store_id"`
	Description        string                `json:"description"`
	LocationInStore    string                `json:"location_in_store"`
	AssetID            *string               `json:"asset_id,omitempty"`
	Category           string                `json:"category"`
	Subcategory        string                `json:"subcategory"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	AssignedProviderID *string               `json:"assigned_provider_id,omitempty"`
	SLADeadline        time.Time             `json:"sla_deadline"`
	CreatedAt          time.Time             `json:"created_at"`
	AssignedAt         *time.Time            `json:"assigned_at,omitempty"`
	AcceptedAt         *time.Time            `json:"accepted_at,omitempty"`
	CompletedAt        *time.Time            `json:"completed_at,omitempty"`
}

// SubmitTicketResponse reports the dispatch outcome. "Created, unassigned"
// is a normal state for the caller to display, not a failure.
type SubmitTicketResponse struct {
	Ticket       TicketResponse `json:"ticket"`
	Category     string         `json:"category"`
	Subcategory  string         `json:"subcategory"`
	Priority     string         `json:"priority"`
	Confidence   float64        `json:"confidence"`
	Assigned     bool           `json:"assigned"`
	ProviderID   *string        `json:"provider_id,omitempty"`
	RoutingScore float64        `json:"routing_score,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
}

// AssignmentResponse is one routing attempt.
type AssignmentResponse struct {
	ID              string                  `json:"id"`
	ProviderID      string                  `json:"provider_id"`
	Sequence        int                     `json:"sequence"`
	Status          domain.AssignmentStatus `json:"status"`
	RejectionReason *string                 `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	AcceptedAt      *time.Time              `json:"accepted_at,omitempty"`
	RejectedAt      *time.Time              `json:"rejected_at,omitempty"`
}

// RemarkResponse is one audit note.
type RemarkResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// EscalationResponse is one escalation record.
type EscalationResponse struct {
	ID           string                  `json:"id"`
	TriggerEvent string                  `json:"trigger_event"`
	Status       domain.EscalationStatus `json:"status"`
	CreatedAt    time.Time               `json:"created_at"`
}

// TicketDetailResponse aggregates a ticket with its dispatch history.
type TicketDetailResponse struct {
	Ticket      TicketResponse       `json:"ticket"`
	Assignments []AssignmentResponse `json:"assignments"`
	Remarks     []RemarkResponse     `json:"remarks"`
	Escalations []EscalationResponse `json:"escalations"`
}

// FromTicket maps a domain ticket.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 ticket.ID,
		ExternalKey:        ticket.ExternalKey,
		StoreID:            ticket.StoreID,
		Description:        ticket.Description,
		LocationInStore:    ticket.LocationInStore,
		AssetID:            ticket.AssetID,
		Category:           ticket.Category,
		Subcategory:        ticket.Subcategory,
		Priority:           ticket.Priority,
		Status:             ticket.Status,
		AssignedProviderID: ticket.AssignedProviderID,
		SLADeadline:        ticket.SLADeadline,
		CreatedAt:          ticket.CreatedAt,
		AssignedAt:         ticket.AssignedAt,
		AcceptedAt:         ticket.AcceptedAt,
		CompletedAt:        ticket.CompletedAt,
	}
}

// FromTicketDetail maps the aggregated dispatch view.
func FromTicketDetail(detail *service.TicketDetail) TicketDetailResponse {
	resp := TicketDetailResponse{
		Ticket:      FromTicket(detail.Ticket),
		Assignments: make([]AssignmentResponse, 0, len(detail.Assignments)),
		Remarks:     make([]RemarkResponse, 0, len(detail.Remarks)),
		Escalations: make([]EscalationResponse, 0, len(detail.Escalations)),
	}
	for _, assignment := range detail.Assignments {
		resp.Assignments = append(resp.Assignments, AssignmentResponse{
			ID:              assignment.ID,
			ProviderID:      assignment.ProviderID,
			Sequence:        assignment.Sequence,
			Status:          assignment.Status,
			RejectionReason: assignment.RejectionReason,
			CreatedAt:       assignment.CreatedAt,
			AcceptedAt:      assignment.AcceptedAt,
			RejectedAt:      assignment.RejectedAt,
		})
	}
	for _, remark := range detail.Remarks {
		resp.Remarks = append(resp.Remarks, RemarkResponse{
			ID:        remark.ID,
			UserID:    remark.UserID,
			Text:      remark.Text,
			CreatedAt: remark.CreatedAt,
		})
	}
	for _, escalation := range detail.Escalations {
		resp.Escalations = append(resp.Escalations, EscalationResponse{
			ID:           escalation.ID,
			TriggerEvent: escalation.TriggerEvent,
			Status:       escalation.Status,
			CreatedAt:    escalation.CreatedAt,
		})
	}
	return resp
}
