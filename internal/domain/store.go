package domain

import "time"

// StoreStatus enumerates the approval lifecycle of a store.
type StoreStatus string

const (
	StoreStatusPendingApproval StoreStatus = "PENDING_APPROVAL"
	StoreStatusApproved        StoreStatus = "APPROVED"
	StoreStatusRejected        StoreStatus = "REJECTED"
	StoreStatusDeactivated     StoreStatus = "DEACTIVATED"
)

// Store is a physical location that reports tickets. Escalations for its
// tickets are addressed to the store's moderator.
type Store struct {
	ID              string
	Name            string
	StoreCode       string
	Address         string
	City            string
	State           string
	ZipCode         string
	Coordinates     *Coordinates
	Status          StoreStatus
	ModeratorUserID *string
	CreatedAt       time.Time
	ApprovedAt      *time.Time
}
