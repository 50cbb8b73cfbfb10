// Package usage is the append-only minute ledger for the Voicedeck
// platform.
//
// Flow:
//  1. A call completes (or a credit is granted)
//  2. The caller records a minute delta under an idempotency key
//  3. The store applies the delta to the tenant's materialized counter
//     atomically, clamping at zero, in a single storage round trip
//  4. Replays of the same key are no-ops that return the current balance
//
// The ledger is the source of truth; the tenant's minutes_used is a
// reconstructible projection of the ledger sum.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voicedeck/voicedeck/internal/metrics"
	"github.com/voicedeck/voicedeck/internal/tenant"
	"github.com/voicedeck/voicedeck/internal/traces"
)

var (
	ErrMissingIdempotencyKey = errors.New("usage: idempotency key required")
	ErrZeroDelta             = errors.New("usage: minutes delta must be non-zero")
)

// Record is an immutable ledger entry. Positive deltas are consumption,
// negative deltas are grants/credits.
type Record struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	MinutesDelta   int64     `json:"minutesDelta"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Source         string    `json:"source,omitempty"` // e.g. call-completion id origin
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists ledger records and applies deltas to the tenant counter.
//
// Apply must be atomic: the record insert and the counter update commit
// together, and a previously applied idempotency key returns the current
// counter without re-applying the delta.
type Store interface {
	Apply(ctx context.Context, rec *Record) (newMinutesUsed int64, applied bool, err error)
	History(ctx context.Context, tenantID string, limit int, cursor string) ([]*Record, string, bool, error)
	SumDeltas(ctx context.Context, tenantID string) (int64, error)
}

// Ledger records usage deltas with replay safety.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// New creates a new usage ledger.
func New(store Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// RecordUsage applies a minute delta for a tenant under an idempotency key
// and returns the new minutes_used. Replaying a key has the same net effect
// as applying it once. ErrUpdateConflict surfaces to the caller untouched:
// it is the one safely retryable failure, precisely because of the key.
func (l *Ledger) RecordUsage(ctx context.Context, tenantID string, minutesDelta int64, idempotencyKey, source string) (int64, error) {
	ctx, span := traces.StartSpan(ctx, "usage.RecordUsage",
		traces.TenantID(tenantID), traces.Minutes(minutesDelta), traces.IdempotencyKey(idempotencyKey))
	defer span.End()

	if idempotencyKey == "" {
		return 0, ErrMissingIdempotencyKey
	}
	if minutesDelta == 0 {
		return 0, ErrZeroDelta
	}

	rec := &Record{
		TenantID:       tenantID,
		MinutesDelta:   minutesDelta,
		IdempotencyKey: idempotencyKey,
		Source:         source,
		CreatedAt:      time.Now(),
	}

	newUsed, applied, err := l.store.Apply(ctx, rec)
	if err != nil {
		if errors.Is(err, tenant.ErrUpdateConflict) {
			metrics.UsageRecordsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.UsageRecordsTotal.WithLabelValues("error").Inc()
		}
		return 0, err
	}

	if !applied {
		metrics.UsageRecordsTotal.WithLabelValues("duplicate").Inc()
		l.logger.Debug("usage record replayed, no-op",
			"tenant_id", tenantID, "idempotency_key", idempotencyKey)
		return newUsed, nil
	}

	metrics.UsageRecordsTotal.WithLabelValues("applied").Inc()
	if minutesDelta > 0 {
		metrics.UsageMinutesRecorded.Add(float64(minutesDelta))
	}
	l.logger.Info("usage recorded",
		"tenant_id", tenantID,
		"minutes_delta", minutesDelta,
		"minutes_used", newUsed,
		"idempotency_key", idempotencyKey,
	)
	return newUsed, nil
}

// History returns ledger records for a tenant, newest first, with cursor
// pagination.
func (l *Ledger) History(ctx context.Context, tenantID string, limit int, cursor string) ([]*Record, string, bool, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.store.History(ctx, tenantID, limit, cursor)
}
