package usage

import (
	"context"
	"sync"
	"time"

	"github.com/voicedeck/voicedeck/internal/idgen"
	"github.com/voicedeck/voicedeck/internal/pagination"
)

// Counter applies minute deltas to the materialized tenant counter. The
// tenant store satisfies this.
type Counter interface {
	ApplyMinutesDelta(ctx context.Context, id string, delta int64) (int64, error)
}

// MemoryStore is an in-memory ledger store for demo/development. The
// store's lock spans the key check and the counter update, which makes
// Apply linearizable per tenant.
type MemoryStore struct {
	mu      sync.RWMutex
	counter Counter
	records []*Record
	keys    map[string]struct{}
}

// NewMemoryStore creates an in-memory ledger store writing the materialized
// counter through the given Counter.
func NewMemoryStore(counter Counter) *MemoryStore {
	return &MemoryStore{
		counter: counter,
		keys:    make(map[string]struct{}),
	}
}

func (m *MemoryStore) Apply(ctx context.Context, rec *Record) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.keys[rec.IdempotencyKey]; seen {
		// Replay: report the current counter without touching it.
		current, err := m.counter.ApplyMinutesDelta(ctx, rec.TenantID, 0)
		return current, false, err
	}

	newUsed, err := m.counter.ApplyMinutesDelta(ctx, rec.TenantID, rec.MinutesDelta)
	if err != nil {
		return 0, false, err
	}

	cp := *rec
	if cp.ID == "" {
		cp.ID = idgen.WithPrefix("use_")
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.records = append(m.records, &cp)
	m.keys[rec.IdempotencyKey] = struct{}{}
	return newUsed, true, nil
}

func (m *MemoryStore) History(_ context.Context, tenantID string, limit int, cursor string) ([]*Record, string, bool, error) {
	cur, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first; records are appended in chronological order.
	var page []*Record
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if rec.TenantID != tenantID {
			continue
		}
		if cur != nil && !beforeCursor(rec, cur) {
			continue
		}
		cp := *rec
		page = append(page, &cp)
		if len(page) == limit+1 {
			break
		}
	}

	items, next, hasMore := pagination.ComputePage(page, limit, func(r *Record) (time.Time, string) {
		return r.CreatedAt, r.ID
	})
	return items, next, hasMore, nil
}

func (m *MemoryStore) SumDeltas(_ context.Context, tenantID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum int64
	for _, rec := range m.records {
		if rec.TenantID == tenantID {
			sum += rec.MinutesDelta
		}
	}
	return sum, nil
}

func beforeCursor(rec *Record, cur *pagination.Cursor) bool {
	if rec.CreatedAt.Before(cur.CreatedAt) {
		return true
	}
	return rec.CreatedAt.Equal(cur.CreatedAt) && rec.ID < cur.ID
}

var _ Store = (*MemoryStore)(nil)
