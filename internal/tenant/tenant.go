// Package tenant provides multi-tenancy for the Voicedeck platform.
package tenant

import (
	"errors"
	"time"

	"github.com/voicedeck/voicedeck/internal/tier"
)

// Errors
var (
	ErrTenantNotFound = errors.New("tenant: not found")
	ErrSlugTaken      = errors.New("tenant: slug already taken")
	// ErrUpdateConflict is returned when an atomic counter update detects
	// contention. Callers may safely retry: minute updates are idempotent
	// per key.
	ErrUpdateConflict = errors.New("tenant: concurrent update conflict")
)

// Status is a tenant's derived lifecycle state. Suspended is never stored;
// it is computed from active + minutes_used so it cannot drift from the
// usage ledger.
type Status string

const (
	StatusActive      Status = "active"
	StatusSuspended   Status = "suspended"
	StatusDeactivated Status = "deactivated"
)

// Overrides holds tenant-specific limit overrides. A nil field means
// "use the tier default" for that limit.
type Overrides struct {
	MaxAgents          *int   `json:"maxAgents,omitempty"`
	MaxCampaigns       *int   `json:"maxCampaigns,omitempty"`
	MaxConcurrentCalls *int   `json:"maxConcurrentCalls,omitempty"`
	MaxMinutes         *int64 `json:"maxMinutes,omitempty"`
}

// Tenant represents an organisation using the platform.
type Tenant struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Slug        string                `json:"slug"`
	Tier        tier.Tier             `json:"tier"`
	Active      bool                  `json:"active"`
	MinutesUsed int64                 `json:"minutesUsed"`
	Overrides   Overrides             `json:"overrides"`
	Features    map[tier.Feature]bool `json:"features,omitempty"`
	CreatedBy   string                `json:"createdBy,omitempty"` // empty for self-serve signup
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// StatusWith derives the tenant's lifecycle state given its effective
// minute budget.
func (t *Tenant) StatusWith(maxMinutes int64) Status {
	if !t.Active {
		return StatusDeactivated
	}
	if t.MinutesUsed >= maxMinutes {
		return StatusSuspended
	}
	return StatusActive
}

// Clone returns a deep copy, so stores can hand out tenants without
// sharing the feature map.
func (t *Tenant) Clone() *Tenant {
	cp := *t
	if t.Features != nil {
		cp.Features = make(map[tier.Feature]bool, len(t.Features))
		for k, v := range t.Features {
			cp.Features[k] = v
		}
	}
	return &cp
}
