// Package admin provides the privileged override operations on tenants:
// provisioning, limit and feature overrides, activation, and tier changes.
//
// Callers are assumed already authorized by an external access-control
// layer; this package does not re-derive authorization. Operations here
// are rare and privileged, so they fail loudly and log every mutation.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/voicedeck/voicedeck/internal/idgen"
	"github.com/voicedeck/voicedeck/internal/metrics"
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/tier"
	"github.com/voicedeck/voicedeck/internal/traces"
	"github.com/voicedeck/voicedeck/internal/validation"
)

var (
	ErrInvalidTier = errors.New("admin: unknown tier")
	ErrInvalidSlug = errors.New("admin: invalid slug")
)

var validSlug = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

// CreateSpec describes a tenant to provision.
type CreateSpec struct {
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Tier      tier.Tier `json:"tier"`
	CreatedBy string    `json:"createdBy,omitempty"` // empty for self-serve signup
}

// LimitPatch is a partial limit override. Nil fields are left untouched;
// set fields become tenant-specific overrides layered on the tier default.
type LimitPatch struct {
	MaxAgents          *int   `json:"maxAgents,omitempty"`
	MaxCampaigns       *int   `json:"maxCampaigns,omitempty"`
	MaxConcurrentCalls *int   `json:"maxConcurrentCalls,omitempty"`
	MaxMinutes         *int64 `json:"maxMinutes,omitempty"`
}

// Service performs privileged tenant mutations.
type Service struct {
	tenants tenant.Store
	logger  *slog.Logger
}

// NewService creates an admin override service.
func NewService(tenants tenant.Store, logger *slog.Logger) *Service {
	return &Service{tenants: tenants, logger: logger}
}

// CreateTenant provisions a tenant with its tier's defaults. An empty tier
// means basic; an unrecognised tier is rejected rather than silently
// degraded, since this is an explicit admin choice.
func (s *Service) CreateTenant(ctx context.Context, spec CreateSpec) (*tenant.Tenant, error) {
	ctx, span := traces.StartSpan(ctx, "admin.CreateTenant", traces.TierName(string(spec.Tier)))
	defer span.End()

	slug := strings.ToLower(strings.TrimSpace(spec.Slug))
	if !validSlug.MatchString(slug) {
		return nil, ErrInvalidSlug
	}

	if spec.Tier == "" {
		spec.Tier = tier.TierBasic
	}
	if !tier.Valid(spec.Tier) {
		return nil, ErrInvalidTier
	}

	now := time.Now()
	t := &tenant.Tenant{
		ID:        idgen.WithPrefix("ten_"),
		Name:      validation.SanitizeString(spec.Name, 200),
		Slug:      slug,
		Tier:      spec.Tier,
		Active:    true,
		CreatedBy: spec.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.tenants.Create(ctx, t); err != nil {
		s.logger.Error("tenant creation failed", "slug", slug, "error", err)
		return nil, err
	}

	metrics.AdminOverridesTotal.WithLabelValues("create_tenant").Inc()
	s.logger.Info("tenant created",
		"tenant_id", t.ID, "slug", t.Slug, "tier", t.Tier, "created_by", t.CreatedBy)
	return t, nil
}

// GetTenant returns the raw tenant record for operator display.
func (s *Service) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.tenants.Get(ctx, id)
}

// UpdateLimits applies a partial limit override to a tenant.
func (s *Service) UpdateLimits(ctx context.Context, id string, patch LimitPatch) (*tenant.Tenant, error) {
	ctx, span := traces.StartSpan(ctx, "admin.UpdateLimits", traces.TenantID(id))
	defer span.End()

	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.MaxAgents != nil {
		t.Overrides.MaxAgents = patch.MaxAgents
	}
	if patch.MaxCampaigns != nil {
		t.Overrides.MaxCampaigns = patch.MaxCampaigns
	}
	if patch.MaxConcurrentCalls != nil {
		t.Overrides.MaxConcurrentCalls = patch.MaxConcurrentCalls
	}
	if patch.MaxMinutes != nil {
		t.Overrides.MaxMinutes = patch.MaxMinutes
	}
	t.UpdatedAt = time.Now()

	if err := s.tenants.Update(ctx, t); err != nil {
		s.logger.Error("limit override failed", "tenant_id", id, "error", err)
		return nil, err
	}

	metrics.AdminOverridesTotal.WithLabelValues("update_limits").Inc()
	s.logger.Info("limits overridden", "tenant_id", id, "overrides", t.Overrides)
	return t, nil
}

// UpdateFeatures applies per-feature overrides to a tenant. Features not
// named in the patch keep resolving from the tier default.
func (s *Service) UpdateFeatures(ctx context.Context, id string, patch map[tier.Feature]bool) (*tenant.Tenant, error) {
	ctx, span := traces.StartSpan(ctx, "admin.UpdateFeatures", traces.TenantID(id))
	defer span.End()

	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if t.Features == nil {
		t.Features = make(map[tier.Feature]bool, len(patch))
	}
	for f, enabled := range patch {
		t.Features[f] = enabled
	}
	t.UpdatedAt = time.Now()

	if err := s.tenants.Update(ctx, t); err != nil {
		s.logger.Error("feature override failed", "tenant_id", id, "error", err)
		return nil, err
	}

	metrics.AdminOverridesTotal.WithLabelValues("update_features").Inc()
	s.logger.Info("features overridden", "tenant_id", id, "features", t.Features)
	return t, nil
}

// SetActive flips a tenant's active flag. Re-activation does not restore
// consumed minutes.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*tenant.Tenant, error) {
	ctx, span := traces.StartSpan(ctx, "admin.SetActive", traces.TenantID(id))
	defer span.End()

	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.Active = active
	t.UpdatedAt = time.Now()

	if err := s.tenants.Update(ctx, t); err != nil {
		s.logger.Error("active flag update failed", "tenant_id", id, "error", err)
		return nil, err
	}

	metrics.AdminOverridesTotal.WithLabelValues("set_active").Inc()
	s.logger.Info("tenant active flag set", "tenant_id", id, "active", active)
	return t, nil
}

// ChangeTier moves a tenant to a new tier. Limits and features are
// replaced together in one store write: overrides from the old tier are
// cleared so no observer can see old-tier features with new-tier limits.
func (s *Service) ChangeTier(ctx context.Context, id string, newTier tier.Tier) (*tenant.Tenant, error) {
	ctx, span := traces.StartSpan(ctx, "admin.ChangeTier",
		traces.TenantID(id), traces.TierName(string(newTier)))
	defer span.End()

	if !tier.Valid(newTier) {
		return nil, ErrInvalidTier
	}

	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.Tier = newTier
	t.Overrides = tenant.Overrides{}
	t.Features = nil
	t.UpdatedAt = time.Now()

	if err := s.tenants.Update(ctx, t); err != nil {
		s.logger.Error("tier change failed", "tenant_id", id, "tier", newTier, "error", err)
		return nil, err
	}

	metrics.AdminOverridesTotal.WithLabelValues("change_tier").Inc()
	s.logger.Info("tier changed", "tenant_id", id, "tier", newTier)
	return t, nil
}
