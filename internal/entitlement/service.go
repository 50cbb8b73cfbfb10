package entitlement

import (
	"context"

	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/tier"
	"github.com/voicedeck/voicedeck/internal/traces"
)

// Service answers entitlement and feature-gate questions against the
// tenant store.
type Service struct {
	tenants tenant.Store
}

// NewService creates an entitlement service.
func NewService(tenants tenant.Store) *Service {
	return &Service{tenants: tenants}
}

// GetEffective resolves the entitlements currently applying to a tenant.
func (s *Service) GetEffective(ctx context.Context, tenantID string) (Effective, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return Effective{}, err
	}
	return Resolve(t), nil
}

// CanAccessFeature is the boolean capability check for one tenant and
// feature. Unknown features deny rather than erroring.
func (s *Service) CanAccessFeature(ctx context.Context, tenantID string, feature tier.Feature) (Decision, error) {
	ctx, span := traces.StartSpan(ctx, "entitlement.CanAccessFeature",
		traces.TenantID(tenantID), traces.FeatureName(string(feature)))
	defer span.End()

	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}

	if !t.Active {
		return Decision{Allowed: false, Reason: ReasonTenantInactive}, nil
	}

	if !Resolve(t).HasFeature(feature) {
		return Decision{Allowed: false, Reason: ReasonFeatureNotAllowed}, nil
	}
	return Decision{Allowed: true, Reason: ReasonOK}, nil
}
