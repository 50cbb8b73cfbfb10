package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/voicedeck/voicedeck/internal/idgen"
	"github.com/voicedeck/voicedeck/internal/pagination"
	"github.com/voicedeck/voicedeck/internal/tenant"
)

// PostgresStore implements Store with PostgreSQL. The record insert and
// the counter update commit in one serializable transaction; the counter
// arithmetic runs server-side so concurrent deductions cannot lose an
// update.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Apply(ctx context.Context, rec *Record) (int64, bool, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback() }()

	id := rec.ID
	if id == "" {
		id = idgen.WithPrefix("use_")
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO usage_records (id, tenant_id, minutes_delta, idempotency_key, source, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())
		ON CONFLICT (idempotency_key) DO NOTHING`,
		id, rec.TenantID, rec.MinutesDelta, rec.IdempotencyKey, rec.Source,
	)
	if err != nil {
		return 0, false, p.mapErr(err, "insert usage record")
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	if inserted == 0 {
		// Key already applied: report the current counter, change nothing.
		var current int64
		err := tx.QueryRowContext(ctx, `
			SELECT minutes_used FROM tenants WHERE id = $1`, rec.TenantID).Scan(&current)
		if err == sql.ErrNoRows {
			return 0, false, tenant.ErrTenantNotFound
		}
		if err != nil {
			return 0, false, p.mapErr(err, "read counter")
		}
		return current, false, tx.Commit()
	}

	var newUsed int64
	err = tx.QueryRowContext(ctx, `
		UPDATE tenants SET
			minutes_used = GREATEST(minutes_used + $2, 0),
			updated_at   = NOW()
		WHERE id = $1
		RETURNING minutes_used`, rec.TenantID, rec.MinutesDelta).Scan(&newUsed)
	if err == sql.ErrNoRows {
		return 0, false, tenant.ErrTenantNotFound
	}
	if err != nil {
		return 0, false, p.mapErr(err, "apply delta")
	}

	if err := tx.Commit(); err != nil {
		return 0, false, p.mapErr(err, "commit")
	}
	rec.ID = id
	return newUsed, true, nil
}

func (p *PostgresStore) History(ctx context.Context, tenantID string, limit int, cursor string) ([]*Record, string, bool, error) {
	cur, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", false, err
	}

	query := `
		SELECT id, tenant_id, minutes_delta, idempotency_key, COALESCE(source, ''), created_at
		FROM usage_records
		WHERE tenant_id = $1`
	args := []any{tenantID}
	if cur != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cur.CreatedAt, cur.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit+1)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", false, err
	}
	defer func() { _ = rows.Close() }()

	var page []*Record
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.MinutesDelta,
			&rec.IdempotencyKey, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, "", false, err
		}
		page = append(page, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", false, err
	}

	items, next, hasMore := pagination.ComputePage(page, limit, func(r *Record) (time.Time, string) {
		return r.CreatedAt, r.ID
	})
	return items, next, hasMore, nil
}

func (p *PostgresStore) SumDeltas(ctx context.Context, tenantID string) (int64, error) {
	var sum int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(minutes_delta), 0) FROM usage_records
		WHERE tenant_id = $1`, tenantID).Scan(&sum)
	return sum, err
}

func (p *PostgresStore) mapErr(err error, op string) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "40001" {
		return tenant.ErrUpdateConflict
	}
	return fmt.Errorf("usage: %s: %w", op, err)
}

var _ Store = (*PostgresStore)(nil)
