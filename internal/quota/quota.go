// Package quota enforces per-tenant resource caps: agents, campaigns,
// concurrent calls, and the minute budget.
//
// The checks here are a fast-path answer for request handlers. The live
// counts come from an external census and the creation itself happens in a
// later call, so exactly-N-allowed under concurrency additionally requires
// the creation step to re-validate inside its own transaction.
package quota

import (
	"context"

	"github.com/voicedeck/voicedeck/internal/entitlement"
	"github.com/voicedeck/voicedeck/internal/metrics"
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/traces"
)

// Resource names for decisions and metrics.
const (
	ResourceAgents    = "agents"
	ResourceCampaigns = "campaigns"
	ResourceCalls     = "calls"
	ResourceMinutes   = "minutes"
)

// Enforcer answers check-before-create and check-before-consume questions.
type Enforcer struct {
	tenants tenant.Store
	census  Census
}

// NewEnforcer creates a quota enforcer.
func NewEnforcer(tenants tenant.Store, census Census) *Enforcer {
	return &Enforcer{tenants: tenants, census: census}
}

// CanCreateAgent reports whether the tenant may create another agent.
// Exactly at the limit, creation is denied: the limit is the count of
// agents permitted to exist simultaneously.
func (e *Enforcer) CanCreateAgent(ctx context.Context, tenantID string) (entitlement.Decision, error) {
	return e.checkCounted(ctx, tenantID, ResourceAgents)
}

// CanCreateCampaign reports whether the tenant may create another campaign.
func (e *Enforcer) CanCreateCampaign(ctx context.Context, tenantID string) (entitlement.Decision, error) {
	return e.checkCounted(ctx, tenantID, ResourceCampaigns)
}

// CanStartConcurrentCall reports whether the tenant may place another
// simultaneous call.
func (e *Enforcer) CanStartConcurrentCall(ctx context.Context, tenantID string) (entitlement.Decision, error) {
	return e.checkCounted(ctx, tenantID, ResourceCalls)
}

// HasMinutesRemaining reports whether the tenant may start another
// minute-consuming action. A call already in flight may run the budget into
// a small overage; this gate only blocks the next action.
func (e *Enforcer) HasMinutesRemaining(ctx context.Context, tenantID string) (entitlement.Decision, error) {
	ctx, span := traces.StartSpan(ctx, "quota.HasMinutesRemaining",
		traces.TenantID(tenantID), traces.Resource(ResourceMinutes))
	defer span.End()

	t, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		return entitlement.Decision{}, err
	}

	if !t.Active {
		return e.record(ResourceMinutes, entitlement.Decision{
			Allowed: false,
			Reason:  entitlement.ReasonTenantInactive,
		}), nil
	}

	maxMinutes := entitlement.Resolve(t).Limits.MaxMinutes
	remaining := maxMinutes - t.MinutesUsed
	if remaining < 0 {
		remaining = 0
	}

	d := entitlement.Decision{
		Allowed:   t.MinutesUsed < maxMinutes,
		Reason:    entitlement.ReasonOK,
		Current:   t.MinutesUsed,
		Max:       maxMinutes,
		Remaining: remaining,
	}
	if !d.Allowed {
		d.Reason = entitlement.ReasonNoMinutesRemaining
	}
	return e.record(ResourceMinutes, d), nil
}

func (e *Enforcer) checkCounted(ctx context.Context, tenantID, resource string) (entitlement.Decision, error) {
	ctx, span := traces.StartSpan(ctx, "quota.Check",
		traces.TenantID(tenantID), traces.Resource(resource))
	defer span.End()

	t, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		return entitlement.Decision{}, err
	}

	if !t.Active {
		return e.record(resource, entitlement.Decision{
			Allowed: false,
			Reason:  entitlement.ReasonTenantInactive,
		}), nil
	}

	limits := entitlement.Resolve(t).Limits

	var current, limit int
	switch resource {
	case ResourceAgents:
		current, err = e.census.CountLiveAgents(ctx, tenantID)
		limit = limits.MaxAgents
	case ResourceCampaigns:
		current, err = e.census.CountLiveCampaigns(ctx, tenantID)
		limit = limits.MaxCampaigns
	case ResourceCalls:
		current, err = e.census.CountActiveCalls(ctx, tenantID)
		limit = limits.MaxConcurrentCalls
	}
	if err != nil {
		return entitlement.Decision{}, err
	}

	d := entitlement.Decision{
		Allowed: current < limit,
		Reason:  entitlement.ReasonOK,
		Current: int64(current),
		Max:     int64(limit),
	}
	if !d.Allowed {
		d.Reason = entitlement.ReasonLimitExceeded
	}
	return e.record(resource, d), nil
}

func (e *Enforcer) record(resource string, d entitlement.Decision) entitlement.Decision {
	outcome := "allowed"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	metrics.QuotaDecisionsTotal.WithLabelValues(resource, outcome).Inc()
	return d
}
