// Package entitlement resolves a tenant's effective limits and feature
// flags: tier defaults overlaid, field by field, with tenant-specific
// overrides. Deactivated tenants resolve to zero limits and no features so
// every downstream gate fails closed.
package entitlement

import (
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/tier"
)

// Reason codes for gate decisions. Denial is a normal return value, never
// an error.
type Reason string

const (
	ReasonOK                 Reason = "ok"
	ReasonTenantInactive     Reason = "tenant_inactive"
	ReasonLimitExceeded      Reason = "limit_exceeded"
	ReasonNoMinutesRemaining Reason = "no_minutes_remaining"
	ReasonFeatureNotAllowed  Reason = "feature_not_allowed"
)

// Decision is the outcome of a quota or feature gate check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    Reason `json:"reason"`
	Current   int64  `json:"current,omitempty"`
	Max       int64  `json:"max,omitempty"`
	Remaining int64  `json:"remaining,omitempty"`
}

// Effective is the resolved entitlement set that currently applies to a
// tenant.
type Effective struct {
	Limits   tier.Limits           `json:"limits"`
	Features map[tier.Feature]bool `json:"features"`
	Status   tenant.Status         `json:"status"`
}

// Resolve computes the effective entitlements for a tenant record.
func Resolve(t *tenant.Tenant) Effective {
	if !t.Active {
		return Effective{
			Features: map[tier.Feature]bool{},
			Status:   tenant.StatusDeactivated,
		}
	}

	limits := tier.DefaultLimits(t.Tier)
	if o := t.Overrides.MaxAgents; o != nil {
		limits.MaxAgents = *o
	}
	if o := t.Overrides.MaxCampaigns; o != nil {
		limits.MaxCampaigns = *o
	}
	if o := t.Overrides.MaxConcurrentCalls; o != nil {
		limits.MaxConcurrentCalls = *o
	}
	if o := t.Overrides.MaxMinutes; o != nil {
		limits.MaxMinutes = *o
	}

	features := tier.DefaultFeatures(t.Tier)
	for f, enabled := range t.Features {
		features[f] = enabled
	}

	return Effective{
		Limits:   limits,
		Features: features,
		Status:   t.StatusWith(limits.MaxMinutes),
	}
}

// HasFeature reports whether a feature is enabled in the resolved set.
// Unknown feature names fail closed.
func (e Effective) HasFeature(f tier.Feature) bool {
	return e.Features[f]
}
