package domain

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus represents the state of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant represents an isolated customer organization on the platform.
// The slug is unique across all tenants and derived from the owning
// identity's email local-part.
type Tenant struct {
	ID           uuid.UUID
	Name         string
	Slug         string
	ContactEmail string
	Status       TenantStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// IsActive returns true if the tenant is active and not deleted.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive && t.DeletedAt == nil
}
