package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// routingMaxDistanceKm caps the proximity contribution; providers beyond it
// score zero on proximity.
const routingMaxDistanceKm = 50.0

// defaultPerformanceScore applies to providers with no assignment history.
const defaultPerformanceScore = 0.5

// ScoreBreakdown records the weighted factors behind a routing decision.
type ScoreBreakdown struct {
	SkillMatch   float64
	Availability float64
	Proximity    float64
	Performance  float64
}

// routingWeights blends the breakdown into a single score.
type routingWeights struct {
	SkillMatch   float64
	Availability float64
	Proximity    float64
	Performance  float64
}

// weightsForPriority returns the factor weights for a ticket priority. HIGH
// priority shifts weight toward proximity and availability and away from
// skill and performance, trading precision for urgency.
func weightsForPriority(priority domain.TicketPriority) routingWeights {
	weights := routingWeights{
		SkillMatch:   0.4,
		Availability: 0.2,
		Proximity:    0.3,
		Performance:  0.1,
	}
	if priority == domain.TicketPriorityHigh {
		weights.Proximity += 0.1
		weights.Availability += 0.1
		weights.SkillMatch -= 0.1
		weights.Performance -= 0.1
	}
	return weights
}

// RoutingDecision is the outcome of routing one ticket.
type RoutingDecision struct {
	ProviderID string
	Assignment *domain.Assignment
	Score      float64
	Breakdown  ScoreBreakdown
	Reasoning  string
}

// RoutingService scores candidates and commits the winning assignment.
type RoutingService struct {
	assignments repository.AssignmentRepository
	tickets     repository.TicketRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewRoutingService constructs the service.
func NewRoutingService(assignments repository.AssignmentRepository, tickets repository.TicketRepository, logger *zap.Logger, metrics *observability.Metrics) *RoutingService {
	return &RoutingService{assignments: assignments, tickets: tickets, logger: logger, metrics: metrics}
}

type candidateScore struct {
	candidate ScoredProvider
	score     float64
	breakdown ScoreBreakdown
	reasoning string
}

// RouteTicket scores every candidate and proposes an assignment to the best
// one. An empty candidate list is a caller bug. When a provider's last
// capacity slot is claimed concurrently the next best candidate is tried, so
// a lost race degrades to the second-ranked provider instead of failing.
func (s *RoutingService) RouteTicket(ctx context.Context, ticket *domain.Ticket, candidates []ScoredProvider) (*RoutingDecision, error) {
	if len(candidates) == 0 {
		return nil, apperrors.NewValidationError("candidates must not be empty", map[string]any{"ticket_id": ticket.ID})
	}

	scores := make([]candidateScore, 0, len(candidates))
	for _, candidate := range candidates {
		entry, err := s.scoreCandidate(ctx, candidate, ticket)
		if err != nil {
			return nil, err
		}
		scores = append(scores, entry)
	}

	// Stable sort keeps insertion-order ties deterministic for a fixed snapshot.
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]].score > scores[order[j]].score
	})

	var lastErr error
	for _, idx := range order {
		entry := scores[idx]
		assignment, err := s.assignments.ProposeAssignment(ctx, ticket.ID, entry.candidate.Provider.ID)
		if err != nil {
			if apperrors.IsRetryable(err) {
				s.logger.Warn("provider capacity claimed concurrently; trying next candidate",
					zap.String("ticket_id", ticket.ID),
					zap.String("provider_id", entry.candidate.Provider.ID))
				lastErr = err
				continue
			}
			return nil, err
		}

		s.metrics.RecordTicketRouted()
		s.logger.Info("ticket routed",
			zap.String("ticket_id", ticket.ID),
			zap.String("provider_id", entry.candidate.Provider.ID),
			zap.Int("sequence", assignment.Sequence),
			zap.Float64("score", entry.score))
		return &RoutingDecision{
			ProviderID: entry.candidate.Provider.ID,
			Assignment: assignment,
			Score:      entry.score,
			Breakdown:  entry.breakdown,
			Reasoning:  entry.reasoning,
		}, nil
	}

	return nil, lastErr
}

func (s *RoutingService) scoreCandidate(ctx context.Context, candidate ScoredProvider, ticket *domain.Ticket) (candidateScore, error) {
	provider := candidate.Provider

	breakdown := ScoreBreakdown{
		SkillMatch:   weightedSkillMatch(provider.Skills, ticket.Category, ticket.Subcategory),
		Availability: availabilityScore(provider.CurrentLoad, provider.CapacityPerDay),
		Proximity:    math.Max(0, 1-candidate.Distance/routingMaxDistanceKm),
	}

	performance, err := s.performanceScore(ctx, provider.ID)
	if err != nil {
		return candidateScore{}, err
	}
	breakdown.Performance = performance

	weights := weightsForPriority(ticket.Priority)
	score := breakdown.SkillMatch*weights.SkillMatch +
		breakdown.Availability*weights.Availability +
		breakdown.Proximity*weights.Proximity +
		breakdown.Performance*weights.Performance

	reasoning := fmt.Sprintf(
		"Provider %s scored %.1f%%: skill match %.1f%% (weight %.1f), availability %.1f%% (%d/%d capacity), proximity %.1f%% (%.1fkm away), performance %.1f%%. Priority: %s",
		provider.CompanyName, score*100,
		breakdown.SkillMatch*100, weights.SkillMatch,
		breakdown.Availability*100, provider.CurrentLoad, provider.CapacityPerDay,
		breakdown.Proximity*100, candidate.Distance,
		breakdown.Performance*100,
		ticket.Priority)

	return candidateScore{candidate: candidate, score: score, breakdown: breakdown, reasoning: reasoning}, nil
}

// performanceScore is the provider's historical completion rate.
func (s *RoutingService) performanceScore(ctx context.Context, providerID string) (float64, error) {
	stats, err := s.tickets.StatsForProvider(ctx, providerID)
	if err != nil {
		return 0, err
	}
	if stats.Total == 0 {
		return defaultPerformanceScore, nil
	}
	return float64(stats.Completed) / float64(stats.Total), nil
}

type weightedSkill struct {
	skill  string
	weight float64
}

// categorySkillWeights is finer-grained than the availability resolver's
// coarse skill fraction: each category pair names the skills that matter and
// how much.
var categorySkillWeights = map[string][]weightedSkill{
	"Facilities_Cold Storage": {
		{skill: "Refrigeration", weight: 0.8},
		{skill: "HVAC", weight: 0.6},
		{skill: "Electrical", weight: 0.4},
	},
	"Facilities_Electrical": {
		{skill: "Electrical", weight: 0.9},
		{skill: "General Maintenance", weight: 0.3},
	},
	"Facilities_Plumbing": {
		{skill: "Plumbing", weight: 0.9},
		{skill: "General Maintenance", weight: 0.3},
	},
	"Facilities_HVAC": {
		{skill: "HVAC", weight: 0.9},
		{skill: "Electrical", weight: 0.4},
	},
	"IT_POS Systems": {
		{skill: "POS Systems", weight: 0.8},
		{skill: "IT Support", weight: 0.7},
	},
	"IT_Network": {
		{skill: "Network", weight: 0.9},
		{skill: "IT Support", weight: 0.6},
	},
	"IT_Computers": {
		{skill: "IT Support", weight: 0.8},
		{skill: "Computer Repair", weight: 0.7},
	},
	"Equipment_Shopping Carts": {
		{skill: "General Maintenance", weight: 0.7},
	},
	"Equipment_Shelving": {
		{skill: "General Maintenance", weight: 0.8},
	},
	"General_Maintenance": {
		{skill: "General Maintenance", weight: 0.9},
	},
}

// weightedSkillMatch scores provider skills against the category's weighted
// skill table, comparing case-insensitively by substring in either direction.
func weightedSkillMatch(providerSkills []string, category, subcategory string) float64 {
	required, ok := categorySkillWeights[category+"_"+subcategory]
	if !ok {
		required = []weightedSkill{{skill: "General Maintenance", weight: 0.9}}
	}

	var totalScore, totalWeight float64
	for _, entry := range required {
		totalWeight += entry.weight
		for _, skill := range providerSkills {
			if skillsOverlap(entry.skill, skill) {
				totalScore += entry.weight
				break
			}
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return totalScore / totalWeight
}
