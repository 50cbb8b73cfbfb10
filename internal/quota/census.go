package quota

import (
	"context"
	"database/sql"
	"sync"
)

// Census reports live resource counts per tenant. It is backed by whatever
// system owns agents, campaigns, and calls; the enforcer only reads it.
type Census interface {
	CountLiveAgents(ctx context.Context, tenantID string) (int, error)
	CountLiveCampaigns(ctx context.Context, tenantID string) (int, error)
	CountActiveCalls(ctx context.Context, tenantID string) (int, error)
}

// MemoryCensus is an in-memory census for demo/development and tests.
type MemoryCensus struct {
	mu        sync.RWMutex
	agents    map[string]int
	campaigns map[string]int
	calls     map[string]int
}

// NewMemoryCensus creates an empty in-memory census.
func NewMemoryCensus() *MemoryCensus {
	return &MemoryCensus{
		agents:    make(map[string]int),
		campaigns: make(map[string]int),
		calls:     make(map[string]int),
	}
}

func (m *MemoryCensus) CountLiveAgents(_ context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.agents[tenantID], nil
}

func (m *MemoryCensus) CountLiveCampaigns(_ context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.campaigns[tenantID], nil
}

func (m *MemoryCensus) CountActiveCalls(_ context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[tenantID], nil
}

// SetCounts pins the live counts for a tenant.
func (m *MemoryCensus) SetCounts(tenantID string, agents, campaigns, calls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[tenantID] = agents
	m.campaigns[tenantID] = campaigns
	m.calls[tenantID] = calls
}

var _ Census = (*MemoryCensus)(nil)

// PostgresCensus reads live counts from the platform's resource tables.
type PostgresCensus struct {
	db *sql.DB
}

// NewPostgresCensus creates a PostgreSQL-backed census.
func NewPostgresCensus(db *sql.DB) *PostgresCensus {
	return &PostgresCensus{db: db}
}

func (p *PostgresCensus) CountLiveAgents(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM agents
		WHERE tenant_id = $1 AND deleted_at IS NULL`, tenantID).Scan(&count)
	return count, err
}

func (p *PostgresCensus) CountLiveCampaigns(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM campaigns
		WHERE tenant_id = $1 AND status IN ('draft', 'running', 'paused')`, tenantID).Scan(&count)
	return count, err
}

func (p *PostgresCensus) CountActiveCalls(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM calls
		WHERE tenant_id = $1 AND ended_at IS NULL`, tenantID).Scan(&count)
	return count, err
}

var _ Census = (*PostgresCensus)(nil)
