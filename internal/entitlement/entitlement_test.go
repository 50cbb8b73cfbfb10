package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/tier"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func basicTenant() *tenant.Tenant {
	return &tenant.Tenant{
		ID:        "ten_1",
		Name:      "Acme Dialers",
		Slug:      "acme",
		Tier:      tier.TierBasic,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestResolve_TierDefaults(t *testing.T) {
	eff := Resolve(basicTenant())

	assert.Equal(t, 1, eff.Limits.MaxAgents)
	assert.Equal(t, int64(100), eff.Limits.MaxMinutes)
	assert.False(t, eff.HasFeature(tier.FeatureAPIAccess))
	assert.Equal(t, tenant.StatusActive, eff.Status)
}

func TestResolve_OverridesTakePrecedenceFieldByField(t *testing.T) {
	tn := basicTenant()
	tn.Overrides.MaxAgents = intPtr(7)
	tn.Overrides.MaxMinutes = int64Ptr(500)

	eff := Resolve(tn)

	assert.Equal(t, 7, eff.Limits.MaxAgents)
	assert.Equal(t, int64(500), eff.Limits.MaxMinutes)
	// Untouched fields still come from the tier.
	assert.Equal(t, 2, eff.Limits.MaxCampaigns)
	assert.Equal(t, 1, eff.Limits.MaxConcurrentCalls)
}

func TestResolve_FeatureOverrideGranularity(t *testing.T) {
	tn := basicTenant()
	tn.Features = map[tier.Feature]bool{tier.FeatureAPIAccess: true}

	eff := Resolve(tn)

	assert.True(t, eff.HasFeature(tier.FeatureAPIAccess))
	// Other features still resolve from the tier default.
	assert.False(t, eff.HasFeature(tier.FeatureCustomVoices))
}

func TestResolve_DeactivatedFailsClosed(t *testing.T) {
	tn := basicTenant()
	tn.Active = false
	tn.Overrides.MaxAgents = intPtr(100)
	tn.Features = map[tier.Feature]bool{tier.FeatureAPIAccess: true}

	eff := Resolve(tn)

	assert.Equal(t, tier.Limits{}, eff.Limits)
	assert.False(t, eff.HasFeature(tier.FeatureAPIAccess))
	assert.Equal(t, tenant.StatusDeactivated, eff.Status)
}

func TestResolve_SuspendedWhenBudgetExhausted(t *testing.T) {
	tn := basicTenant()
	tn.MinutesUsed = 100

	eff := Resolve(tn)

	assert.Equal(t, tenant.StatusSuspended, eff.Status)
	// Suspension is derived against effective, not tier, limits.
	tn.Overrides.MaxMinutes = int64Ptr(200)
	assert.Equal(t, tenant.StatusActive, Resolve(tn).Status)
}

func TestResolve_UnknownTierDegradesToBasic(t *testing.T) {
	tn := basicTenant()
	tn.Tier = tier.Tier("legacy-gold")

	eff := Resolve(tn)

	assert.Equal(t, 1, eff.Limits.MaxAgents)
	assert.Equal(t, int64(100), eff.Limits.MaxMinutes)
}

func TestService_CanAccessFeature(t *testing.T) {
	ctx := context.Background()
	store := tenant.NewMemoryStore()
	svc := NewService(store)

	tn := basicTenant()
	tn.Tier = tier.TierPremium
	require.NoError(t, store.Create(ctx, tn))

	d, err := svc.CanAccessFeature(ctx, "ten_1", tier.FeatureAPIAccess)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonOK, d.Reason)

	d, err = svc.CanAccessFeature(ctx, "ten_1", tier.FeatureAnalytics)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonFeatureNotAllowed, d.Reason)
}

func TestService_CanAccessFeature_UnknownFeatureFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := tenant.NewMemoryStore()
	svc := NewService(store)
	require.NoError(t, store.Create(ctx, basicTenant()))

	d, err := svc.CanAccessFeature(ctx, "ten_1", tier.Feature("time_travel"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonFeatureNotAllowed, d.Reason)
}

func TestService_CanAccessFeature_InactiveTenant(t *testing.T) {
	ctx := context.Background()
	store := tenant.NewMemoryStore()
	svc := NewService(store)

	tn := basicTenant()
	tn.Active = false
	tn.Features = map[tier.Feature]bool{tier.FeatureAPIAccess: true}
	require.NoError(t, store.Create(ctx, tn))

	d, err := svc.CanAccessFeature(ctx, "ten_1", tier.FeatureAPIAccess)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonTenantInactive, d.Reason)
}

func TestService_CanAccessFeature_TenantNotFound(t *testing.T) {
	svc := NewService(tenant.NewMemoryStore())

	_, err := svc.CanAccessFeature(context.Background(), "nope", tier.FeatureAPIAccess)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}
