package tenant

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/voicedeck/voicedeck/internal/tier"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	overridesJSON, err := json.Marshal(t.Overrides)
	if err != nil {
		return err
	}
	featuresJSON, err := json.Marshal(t.Features)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, tier, active, minutes_used, overrides, features, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
		t.ID, t.Name, t.Slug, string(t.Tier), t.Active, t.MinutesUsed,
		overridesJSON, featuresJSON, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, tier, active, minutes_used, overrides, features, created_by, created_at, updated_at
		FROM tenants WHERE id = $1`, id))
}

func (p *PostgresStore) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, tier, active, minutes_used, overrides, features, created_by, created_at, updated_at
		FROM tenants WHERE slug = $1`, slug))
}

// Update persists all fields except minutes_used, which is owned by
// ApplyMinutesDelta so admin edits cannot clobber concurrent ledger writes.
func (p *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	overridesJSON, err := json.Marshal(t.Overrides)
	if err != nil {
		return err
	}
	featuresJSON, err := json.Marshal(t.Features)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE tenants SET name = $1, tier = $2, active = $3, overrides = $4,
			features = $5, updated_at = $6
		WHERE id = $7`,
		t.Name, string(t.Tier), t.Active, overridesJSON, featuresJSON,
		t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// ApplyMinutesDelta atomically adjusts minutes_used, clamping at zero,
// entirely server-side. Serialization failures surface as ErrUpdateConflict
// so callers can decide retry policy.
func (p *PostgresStore) ApplyMinutesDelta(ctx context.Context, id string, delta int64) (int64, error) {
	var newUsed int64
	err := p.db.QueryRowContext(ctx, `
		UPDATE tenants SET
			minutes_used = GREATEST(minutes_used + $2, 0),
			updated_at   = NOW()
		WHERE id = $1
		RETURNING minutes_used`, id, delta).Scan(&newUsed)
	if err == sql.ErrNoRows {
		return 0, ErrTenantNotFound
	}
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "40001" {
			return 0, ErrUpdateConflict
		}
		return 0, err
	}
	return newUsed, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, slug, tier, active, minutes_used, overrides, features, created_by, created_at, updated_at
		FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tenants []*Tenant
	for rows.Next() {
		t, err := p.scanRow(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanTenant(row *sql.Row) (*Tenant, error) {
	t, err := p.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	return t, err
}

func (p *PostgresStore) scanRow(row rowScanner) (*Tenant, error) {
	t := &Tenant{}
	var (
		tierName      string
		createdBy     sql.NullString
		overridesJSON []byte
		featuresJSON  []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &tierName, &t.Active, &t.MinutesUsed,
		&overridesJSON, &featuresJSON, &createdBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Tier = tier.Tier(tierName)
	if createdBy.Valid {
		t.CreatedBy = createdBy.String
	}
	if len(overridesJSON) > 0 {
		_ = json.Unmarshal(overridesJSON, &t.Overrides)
	}
	if len(featuresJSON) > 0 {
		_ = json.Unmarshal(featuresJSON, &t.Features)
	}
	return t, nil
}

var _ Store = (*PostgresStore)(nil)
