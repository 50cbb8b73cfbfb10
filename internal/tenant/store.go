package tenant

import "context"

// Store persists tenant data.
//
// ApplyMinutesDelta is the one write path for minutes_used: the new value
// is computed at the storage layer as max(minutes_used + delta, 0) in a
// single round trip, never read-modify-write from the caller.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	ApplyMinutesDelta(ctx context.Context, id string, delta int64) (newMinutesUsed int64, err error)
	List(ctx context.Context) ([]*Tenant, error)
}
