package domain

import "time"

// ProviderStatus enumerates the approval lifecycle of a service provider.
type ProviderStatus string

const (
	ProviderStatusPendingApproval ProviderStatus = "PENDING_APPROVAL"
	ProviderStatusApproved        ProviderStatus = "APPROVED"
	ProviderStatusRejected        ProviderStatus = "REJECTED"
	ProviderStatusDeactivated     ProviderStatus = "DEACTIVATED"
)

// Coordinates is a geographic point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ServiceProvider is an external company that services tickets. CurrentLoad
// counts tickets currently held in ASSIGNED or IN_PROGRESS and is only ever
// mutated through atomic deltas at the persistence layer.
type ServiceProvider struct {
	ID             string
	CompanyName    string
	Address        string
	Coordinates    *Coordinates
	CompanyCode    string
	Skills         []string
	CapacityPerDay int
	CurrentLoad    int
	Status         ProviderStatus
	CreatedAt      time.Time
	ApprovedAt     *time.Time
}

// HasSpareCapacity reports whether the provider can take one more ticket.
func (p *ServiceProvider) HasSpareCapacity() bool {
	return p.CurrentLoad < p.CapacityPerDay
}
