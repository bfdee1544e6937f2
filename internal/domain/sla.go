package domain

import "time"

// SLARule defines the timeout budget for one priority level.
type SLARule struct {
	Priority          TicketPriority
	AssignmentTimeout time.Duration
	AcceptanceTimeout time.Duration
	ResolutionTimeout time.Duration
}

var slaRules = map[TicketPriority]SLARule{
	TicketPriorityHigh: {
		Priority:          TicketPriorityHigh,
		AssignmentTimeout: 15 * time.Minute,
		AcceptanceTimeout: 30 * time.Minute,
		ResolutionTimeout: 4 * time.Hour,
	},
	TicketPriorityMedium: {
		Priority:          TicketPriorityMedium,
		AssignmentTimeout: 30 * time.Minute,
		AcceptanceTimeout: 60 * time.Minute,
		ResolutionTimeout: 12 * time.Hour,
	},
	TicketPriorityLow: {
		Priority:          TicketPriorityLow,
		AssignmentTimeout: 120 * time.Minute,
		AcceptanceTimeout: 240 * time.Minute,
		ResolutionTimeout: 48 * time.Hour,
	},
}

// RuleForPriority returns the SLA rule for a priority, falling back to the
// MEDIUM budget for unknown values.
func RuleForPriority(priority TicketPriority) SLARule {
	if rule, ok := slaRules[priority]; ok {
		return rule
	}
	return slaRules[TicketPriorityMedium]
}

// SLADeadline computes the absolute resolution deadline for a ticket. It is
// derived exactly once, at creation, and never recomputed on re-routing.
func SLADeadline(priority TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(RuleForPriority(priority).ResolutionTimeout)
}
