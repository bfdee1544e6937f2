package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

func newRoutingFixture() (*RoutingService, *fakeTicketRepo, *fakeProviderRepo, *fakeAssignmentRepo) {
	tickets := newFakeTicketRepo()
	providers := newFakeProviderRepo()
	assignments := newFakeAssignmentRepo(tickets, providers)
	routing := NewRoutingService(assignments, tickets, zap.NewNop(), observability.NewMetrics())
	return routing, tickets, providers, assignments
}

func scoredCandidate(provider domain.ServiceProvider, distance float64) ScoredProvider {
	return ScoredProvider{Provider: provider, Distance: distance}
}

func TestWeightsForPriority(t *testing.T) {
	medium := weightsForPriority(domain.TicketPriorityMedium)
	assert.InDelta(t, 0.4, medium.SkillMatch, 1e-9)
	assert.InDelta(t, 0.2, medium.Availability, 1e-9)
	assert.InDelta(t, 0.3, medium.Proximity, 1e-9)
	assert.InDelta(t, 0.1, medium.Performance, 1e-9)

	high := weightsForPriority(domain.TicketPriorityHigh)
	assert.InDelta(t, 0.3, high.SkillMatch, 1e-9)
	assert.InDelta(t, 0.3, high.Availability, 1e-9)
	assert.InDelta(t, 0.4, high.Proximity, 1e-9)
	assert.InDelta(t, 0.0, high.Performance, 1e-9)
}

func TestWeightedSkillMatch(t *testing.T) {
	// Cold storage weights: Refrigeration 0.8, HVAC 0.6, Electrical 0.4.
	full := weightedSkillMatch([]string{"Refrigeration", "HVAC", "Electrical"}, "Facilities", "Cold Storage")
	assert.InDelta(t, 1.0, full, 1e-9)

	partial := weightedSkillMatch([]string{"Refrigeration"}, "Facilities", "Cold Storage")
	assert.InDelta(t, 0.8/1.8, partial, 1e-9)

	none := weightedSkillMatch([]string{"Plumbing"}, "Facilities", "Cold Storage")
	assert.Equal(t, 0.0, none)

	// Unknown category pairs fall back to general maintenance.
	fallback := weightedSkillMatch([]string{"General Maintenance"}, "Unknown", "Whatever")
	assert.InDelta(t, 1.0, fallback, 1e-9)
}

func TestRouteTicketEmptyCandidates(t *testing.T) {
	routing, tickets, _, _ := newRoutingFixture()
	ticket := &domain.Ticket{Priority: domain.TicketPriorityMedium, Status: domain.TicketStatusOpen}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	_, err := routing.RouteTicket(context.Background(), ticket, nil)
	require.Error(t, err)
}

func TestRouteTicketPicksBestCandidate(t *testing.T) {
	routing, tickets, providers, assignments := newRoutingFixture()

	skilled := approvedProvider("skilled", []string{"Refrigeration", "HVAC"}, 0, 10, nil)
	unskilled := approvedProvider("unskilled", []string{"Plumbing"}, 0, 10, nil)
	providers.add(skilled)
	providers.add(unskilled)

	ticket := &domain.Ticket{
		Category:    "Facilities",
		Subcategory: "Cold Storage",
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusOpen,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	decision, err := routing.RouteTicket(context.Background(), ticket,
		[]ScoredProvider{scoredCandidate(unskilled, 5), scoredCandidate(skilled, 5)})
	require.NoError(t, err)

	assert.Equal(t, "skilled", decision.ProviderID)
	assert.Equal(t, 1, decision.Assignment.Sequence)
	assert.Equal(t, domain.AssignmentStatusProposed, decision.Assignment.Status)
	assert.NotEmpty(t, decision.Reasoning)

	routed, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, routed.Status)
	require.NotNil(t, routed.AssignedProviderID)
	assert.Equal(t, "skilled", *routed.AssignedProviderID)

	winner, err := providers.GetByID(context.Background(), "skilled")
	require.NoError(t, err)
	assert.Equal(t, 1, winner.CurrentLoad)

	listed, err := assignments.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRouteTicketHighPriorityFavorsProximity(t *testing.T) {
	routing, tickets, providers, _ := newRoutingFixture()

	// The skilled provider is far away, the generalist is close. MEDIUM
	// priority weights skill highest; HIGH shifts enough weight to proximity
	// and availability to flip the winner.
	skilledFar := approvedProvider("skilled-far", []string{"Refrigeration", "HVAC", "Electrical"}, 5, 10, nil)
	generalNear := approvedProvider("general-near", []string{"General Maintenance"}, 0, 10, nil)
	providers.add(skilledFar)
	providers.add(generalNear)

	mediumTicket := &domain.Ticket{
		Category:    "Facilities",
		Subcategory: "Cold Storage",
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusOpen,
	}
	require.NoError(t, tickets.Create(context.Background(), mediumTicket))

	candidates := []ScoredProvider{
		scoredCandidate(skilledFar, 50),
		scoredCandidate(generalNear, 1),
	}

	decision, err := routing.RouteTicket(context.Background(), mediumTicket, candidates)
	require.NoError(t, err)
	assert.Equal(t, "skilled-far", decision.ProviderID)

	highTicket := &domain.Ticket{
		Category:    "Facilities",
		Subcategory: "Cold Storage",
		Priority:    domain.TicketPriorityHigh,
		Status:      domain.TicketStatusOpen,
	}
	require.NoError(t, tickets.Create(context.Background(), highTicket))

	// Reset the load taken by the first routing so the comparison is clean.
	require.NoError(t, providers.DecrementLoad(context.Background(), "skilled-far"))

	decision, err = routing.RouteTicket(context.Background(), highTicket, candidates)
	require.NoError(t, err)
	assert.Equal(t, "general-near", decision.ProviderID)
}

func TestRouteTicketFallsThroughOnCapacityRace(t *testing.T) {
	routing, tickets, providers, _ := newRoutingFixture()

	// Best candidate's snapshot claims spare capacity, but the live row is
	// already full: the lost race falls through to the runner-up.
	winner := approvedProvider("winner", []string{"Refrigeration", "HVAC"}, 0, 10, nil)
	runnerUp := approvedProvider("runner-up", []string{"Refrigeration"}, 0, 10, nil)
	providers.add(winner)
	providers.add(runnerUp)
	providers.providers["winner"].CurrentLoad = 10

	ticket := &domain.Ticket{
		Category:    "Facilities",
		Subcategory: "Cold Storage",
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusOpen,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	decision, err := routing.RouteTicket(context.Background(), ticket,
		[]ScoredProvider{scoredCandidate(winner, 5), scoredCandidate(runnerUp, 5)})
	require.NoError(t, err)
	assert.Equal(t, "runner-up", decision.ProviderID)
}

func TestRouteTicketAllCandidatesRaced(t *testing.T) {
	routing, tickets, providers, _ := newRoutingFixture()

	only := approvedProvider("only", []string{"Refrigeration"}, 0, 1, nil)
	providers.add(only)
	providers.providers["only"].CurrentLoad = 1

	ticket := &domain.Ticket{
		Category:    "Facilities",
		Subcategory: "Cold Storage",
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusOpen,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	_, err := routing.RouteTicket(context.Background(), ticket, []ScoredProvider{scoredCandidate(only, 5)})
	require.Error(t, err)
}

func TestPerformanceScore(t *testing.T) {
	routing, tickets, _, _ := newRoutingFixture()

	score, err := routing.performanceScore(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, defaultPerformanceScore, score)

	tickets.stats["seasoned"] = repository.ProviderTicketStats{Completed: 8, Total: 10}
	score, err = routing.performanceScore(context.Background(), "seasoned")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, score, 1e-9)
}

func TestRouteTicketRefusesEscalatedTicket(t *testing.T) {
	routing, tickets, providers, assignments := newRoutingFixture()

	candidate := approvedProvider("fridge-co", []string{"Refrigeration"}, 0, 10, nil)
	providers.add(candidate)

	// The monitor can escalate a ticket between the orchestrator reading it
	// and re-routing it; the proposal must not drag it back to ASSIGNED.
	ticket := &domain.Ticket{
		Category:    "Facilities",
		Subcategory: "Cold Storage",
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusEscalated,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	_, err := routing.RouteTicket(context.Background(), ticket,
		[]ScoredProvider{scoredCandidate(candidate, 5)})
	require.Error(t, err)

	reloaded, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, reloaded.Status)

	rows, err := assignments.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	stored, err := providers.GetByID(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentLoad)
}
