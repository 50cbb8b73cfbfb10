package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicedeck/voicedeck/internal/entitlement"
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/tier"
)

func setup(t *testing.T, tn *tenant.Tenant) (*Enforcer, *MemoryCensus) {
	t.Helper()
	store := tenant.NewMemoryStore()
	census := NewMemoryCensus()
	require.NoError(t, store.Create(context.Background(), tn))
	return NewEnforcer(store, census), census
}

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

func TestCanCreateAgent_UnderLimit(t *testing.T) {
	ctx := context.Background()
	enforcer, _ := setup(t, basicTenant())

	d, err := enforcer.CanCreateAgent(ctx, "ten_1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Current)
	assert.Equal(t, int64(1), d.Max)
}

func TestCanCreateAgent_AtLimitDenied(t *testing.T) {
	ctx := context.Background()
	enforcer, census := setup(t, basicTenant())
	census.SetCounts("ten_1", 1, 0, 0)

	d, err := enforcer.CanCreateAgent(ctx, "ten_1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlement.ReasonLimitExceeded, d.Reason)
	assert.Equal(t, int64(1), d.Current)
	assert.Equal(t, int64(1), d.Max)
}

func TestCanCreateAgent_OverrideRaisesLimit(t *testing.T) {
	ctx := context.Background()
	tn := basicTenant()
	raised := 3
	tn.Overrides.MaxAgents = &raised
	enforcer, census := setup(t, tn)
	census.SetCounts("ten_1", 2, 0, 0)

	d, err := enforcer.CanCreateAgent(ctx, "ten_1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Current)
	assert.Equal(t, int64(3), d.Max)
}

func TestCanCreateCampaign(t *testing.T) {
	ctx := context.Background()
	enforcer, census := setup(t, basicTenant())

	d, err := enforcer.CanCreateCampaign(ctx, "ten_1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Max)

	census.SetCounts("ten_1", 0, 2, 0)
	d, err = enforcer.CanCreateCampaign(ctx, "ten_1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlement.ReasonLimitExceeded, d.Reason)
}

func TestCanStartConcurrentCall(t *testing.T) {
	ctx := context.Background()
	tn := basicTenant()
	tn.Tier = tier.TierPremium
	enforcer, census := setup(t, tn)
	census.SetCounts("ten_1", 0, 0, 5)

	d, err := enforcer.CanStartConcurrentCall(ctx, "ten_1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(5), d.Current)
	assert.Equal(t, int64(5), d.Max)

	census.SetCounts("ten_1", 0, 0, 4)
	d, err = enforcer.CanStartConcurrentCall(ctx, "ten_1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestHasMinutesRemaining(t *testing.T) {
	ctx := context.Background()
	tn := basicTenant()
	tn.MinutesUsed = 40
	enforcer, _ := setup(t, tn)

	d, err := enforcer.HasMinutesRemaining(ctx, "ten_1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(40), d.Current)
	assert.Equal(t, int64(100), d.Max)
	assert.Equal(t, int64(60), d.Remaining)
}

func TestHasMinutesRemaining_OverageBlocksNext(t *testing.T) {
	// A call in flight may land the counter past the budget; only the next
	// consuming action is blocked, and remaining never goes negative.
	ctx := context.Background()
	tn := basicTenant()
	tn.MinutesUsed = 105
	enforcer, _ := setup(t, tn)

	d, err := enforcer.HasMinutesRemaining(ctx, "ten_1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlement.ReasonNoMinutesRemaining, d.Reason)
	assert.Equal(t, int64(0), d.Remaining)
}

func TestHasMinutesRemaining_ExactlyAtBudget(t *testing.T) {
	ctx := context.Background()
	tn := basicTenant()
	tn.MinutesUsed = 100
	enforcer, _ := setup(t, tn)

	d, err := enforcer.HasMinutesRemaining(ctx, "ten_1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)
}

func TestGates_InactiveTenantFailsEverything(t *testing.T) {
	ctx := context.Background()
	tn := basicTenant()
	tn.Active = false
	enforcer, _ := setup(t, tn)

	checks := map[string]func(context.Context, string) (entitlement.Decision, error){
		"agents":    enforcer.CanCreateAgent,
		"campaigns": enforcer.CanCreateCampaign,
		"calls":     enforcer.CanStartConcurrentCall,
		"minutes":   enforcer.HasMinutesRemaining,
	}
	for name, check := range checks {
		d, err := check(ctx, "ten_1")
		require.NoError(t, err, name)
		assert.False(t, d.Allowed, name)
		assert.Equal(t, entitlement.ReasonTenantInactive, d.Reason, name)
	}
}

func TestGates_TenantNotFound(t *testing.T) {
	enforcer := NewEnforcer(tenant.NewMemoryStore(), NewMemoryCensus())

	_, err := enforcer.CanCreateAgent(context.Background(), "nope")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

	_, err = enforcer.HasMinutesRemaining(context.Background(), "nope")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestCheckThenCreateScenario(t *testing.T) {
	// basic tier, one agent allowed: first check passes, after creation the
	// second check reports current=1 max=1 and denies.
	ctx := context.Background()
	enforcer, census := setup(t, basicTenant())

	d, err := enforcer.CanCreateAgent(ctx, "ten_1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	census.SetCounts("ten_1", 1, 0, 0)

	d, err = enforcer.CanCreateAgent(ctx, "ten_1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlement.ReasonLimitExceeded, d.Reason)
	assert.Equal(t, int64(1), d.Current)
	assert.Equal(t, int64(1), d.Max)
}
