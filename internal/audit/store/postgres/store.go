// Package postgres persists audit records in PostgreSQL through a pgx pool.
// Inserts are idempotent on record ID so the Kafka consumer can replay a
// topic into the same table without duplicates.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"phoneintel/internal/audit"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS owner_audit (
	id               UUID PRIMARY KEY,
	adapter          TEXT NOT NULL,
	recorded_at      TIMESTAMPTZ NOT NULL,
	purpose          TEXT NOT NULL,
	consent_obtained BOOLEAN NOT NULL,
	caller           TEXT NOT NULL,
	result           TEXT NOT NULL,
	request_id       TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_owner_audit_caller ON owner_audit (caller, recorded_at DESC)`,
}

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit db: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool; the caller owns its lifecycle.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure owner_audit table: %w", err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	const stmt = `
		INSERT INTO owner_audit (id, adapter, recorded_at, purpose, consent_obtained, caller, result, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, stmt,
		rec.ID,
		rec.Adapter,
		rec.Time,
		rec.LegalBasis.Purpose,
		rec.LegalBasis.ConsentObtained,
		rec.Caller,
		string(rec.Result),
		rec.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) ListByCaller(ctx context.Context, caller string) ([]audit.Record, error) {
	const stmt = `
		SELECT id, adapter, recorded_at, purpose, consent_obtained, caller, result, request_id
		FROM owner_audit WHERE caller = $1 ORDER BY recorded_at ASC`
	rows, err := s.pool.Query(ctx, stmt, caller)
	if err != nil {
		return nil, fmt.Errorf("query audit by caller: %w", err)
	}
	return collect(rows)
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	const stmt = `
		SELECT id, adapter, recorded_at, purpose, consent_obtained, caller, result, request_id
		FROM owner_audit ORDER BY recorded_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, stmt, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]audit.Record, error) {
	defer rows.Close()
	out := []audit.Record{}
	for rows.Next() {
		var (
			r      audit.Record
			result string
		)
		if err := rows.Scan(&r.ID, &r.Adapter, &r.Time, &r.LegalBasis.Purpose,
			&r.LegalBasis.ConsentObtained, &r.Caller, &result, &r.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Result = audit.Outcome(result)
		r.Time = r.Time.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
