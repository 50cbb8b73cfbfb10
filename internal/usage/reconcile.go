package usage

import (
	"context"
	"log/slog"

	"github.com/voicedeck/voicedeck/internal/metrics"
	"github.com/voicedeck/voicedeck/internal/tenant"
)

// ReconcileResult holds the outcome of comparing a tenant's materialized
// minutes_used against the ledger sum.
type ReconcileResult struct {
	TenantID    string `json:"tenantId"`
	LedgerSum   int64  `json:"ledgerSum"`
	MinutesUsed int64  `json:"minutesUsed"`
	Match       bool   `json:"match"`
	Repaired    bool   `json:"repaired,omitempty"`
}

// Reconciler recomputes minutes_used from the ledger to detect and
// optionally correct drift. Batch/administrative, not hot path.
type Reconciler struct {
	store   Store
	tenants tenant.Store
	logger  *slog.Logger
}

// NewReconciler creates a ledger reconciler.
func NewReconciler(store Store, tenants tenant.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, tenants: tenants, logger: logger}
}

// ReconcileTenant compares one tenant's counter with the ledger sum. With
// repair set, a drifted counter is corrected via the same atomic delta
// path the hot path uses.
func (r *Reconciler) ReconcileTenant(ctx context.Context, tenantID string, repair bool) (*ReconcileResult, error) {
	t, err := r.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	sum, err := r.store.SumDeltas(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	// The materialized counter clamps at zero, so the expected projection
	// does too.
	expected := sum
	if expected < 0 {
		expected = 0
	}

	result := &ReconcileResult{
		TenantID:    tenantID,
		LedgerSum:   expected,
		MinutesUsed: t.MinutesUsed,
		Match:       t.MinutesUsed == expected,
	}
	if result.Match {
		return result, nil
	}

	metrics.ReconcileDriftTotal.Inc()
	r.logger.Warn("minutes_used drifted from ledger",
		"tenant_id", tenantID,
		"minutes_used", t.MinutesUsed,
		"ledger_sum", expected,
	)

	if repair {
		if _, err := r.tenants.ApplyMinutesDelta(ctx, tenantID, expected-t.MinutesUsed); err != nil {
			return result, err
		}
		result.Repaired = true
		r.logger.Info("minutes_used repaired from ledger",
			"tenant_id", tenantID, "minutes_used", expected)
	}
	return result, nil
}

// ReconcileAll reconciles every tenant and returns per-tenant results.
func (r *Reconciler) ReconcileAll(ctx context.Context, repair bool) ([]*ReconcileResult, error) {
	tenants, err := r.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	var results []*ReconcileResult
	for _, t := range tenants {
		res, err := r.ReconcileTenant(ctx, t.ID, repair)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
