package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

const (
	// invalidDistanceKm stands in for providers whose coordinates are missing
	// or malformed; they rank last instead of failing the whole computation.
	invalidDistanceKm = 999999.0

	// distanceNormKm caps the distance contribution to the overall score.
	distanceNormKm = 100.0

	// neutralSkillScore applies when a ticket requires no particular skills,
	// so providers are never spuriously excluded.
	neutralSkillScore = 0.5
)

// ScoredProvider annotates a provider with availability ranking factors.
type ScoredProvider struct {
	Provider     domain.ServiceProvider
	SkillMatch   float64
	Distance     float64
	Availability float64
	Overall      float64
}

// AvailabilityService resolves the ranked set of providers eligible for
// assignment.
type AvailabilityService struct {
	providers repository.ProviderRepository
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(providers repository.ProviderRepository, logger *zap.Logger) *AvailabilityService {
	return &AvailabilityService{providers: providers, logger: logger}
}

// AvailableProviders returns every APPROVED provider with spare capacity,
// ranked by a weighted blend of availability headroom, proximity and skill
// match. Providers are never hard-filtered by skill: zero overlap only ranks
// them lower, so the system degrades to "best available" rather than "no
// provider found" whenever any capacity exists.
func (s *AvailabilityService) AvailableProviders(ctx context.Context, requiredSkills []string, location domain.Coordinates) ([]ScoredProvider, error) {
	providers, err := s.providers.ListApprovedWithCapacity(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredProvider, 0, len(providers))
	for _, provider := range providers {
		entry := ScoredProvider{
			Provider:     provider,
			SkillMatch:   skillMatchScore(requiredSkills, provider.Skills),
			Distance:     providerDistance(location, provider.Coordinates),
			Availability: availabilityScore(provider.CurrentLoad, provider.CapacityPerDay),
		}
		distanceScore := math.Max(0, 1-math.Min(entry.Distance, distanceNormKm)/distanceNormKm)
		entry.Overall = 0.4*entry.Availability + 0.3*distanceScore + 0.3*entry.SkillMatch
		scored = append(scored, entry)
	}

	// Stable sort keeps the repository's provider-id ordering on ties so
	// routing is deterministic for a fixed snapshot.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Overall > scored[j].Overall
	})

	s.logger.Debug("resolved available providers",
		zap.Int("count", len(scored)),
		zap.Strings("required_skills", requiredSkills))
	return scored, nil
}

// skillMatchScore is the fraction of required skills matched by the provider,
// comparing case-insensitively by substring in either direction.
func skillMatchScore(requiredSkills, providerSkills []string) float64 {
	if len(requiredSkills) == 0 {
		return neutralSkillScore
	}
	matched := 0
	for _, required := range requiredSkills {
		for _, skill := range providerSkills {
			if skillsOverlap(required, skill) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(requiredSkills))
}

func skillsOverlap(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

func availabilityScore(currentLoad, capacity int) float64 {
	if capacity < 1 {
		capacity = 1
	}
	return math.Max(0, 1-float64(currentLoad)/float64(capacity))
}

func providerDistance(from domain.Coordinates, to *domain.Coordinates) float64 {
	if to == nil {
		return invalidDistanceKm
	}
	return haversineKm(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	if math.IsNaN(lat1) || math.IsNaN(lon1) || math.IsNaN(lat2) || math.IsNaN(lon2) {
		return invalidDistanceKm
	}

	const earthRadiusKm = 6371.0
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	distance := earthRadiusKm * c

	if math.IsNaN(distance) {
		return invalidDistanceKm
	}
	return distance
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
