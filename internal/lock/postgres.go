package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store.
//
// The table carries one row per held resource; the primary key on
// resource makes the conditional insert a single atomic statement, so the
// non-existence check and the write cannot be separated by a window in
// which another caller passes the same check.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed lease store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSchema creates the lease table if it does not exist. Convenience
// for deployments without a migration pipeline.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS lease_locks (
			resource    text PRIMARY KEY,
			acquired_at timestamptz NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create lease_locks table: %w", err)
	}
	return nil
}

// ConditionalInsert implements Store.ConditionalInsert.
//
// The upsert takes over a row whose lease has expired and is a no-op when
// an unexpired lease exists; either way it is one atomic statement.
// Timestamps round-trip at microsecond precision, which Delete relies on
// when matching acquired_at.
func (s *PostgresStore) ConditionalInsert(ctx context.Context, resource string, now, expiryThreshold time.Time) (int64, error) {
	query := `
		INSERT INTO lease_locks (resource, acquired_at)
		VALUES ($1, $2)
		ON CONFLICT (resource) DO UPDATE
		SET acquired_at = EXCLUDED.acquired_at
		WHERE lease_locks.acquired_at <= $3
	`

	tag, err := s.db.Exec(ctx, query, resource, now, expiryThreshold)
	if err != nil {
		return 0, fmt.Errorf("insert lease for %q: %w", resource, err)
	}
	return tag.RowsAffected(), nil
}

// Delete implements Store.Delete.
func (s *PostgresStore) Delete(ctx context.Context, resource string, acquiredAt time.Time) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM lease_locks WHERE resource = $1 AND acquired_at = $2",
		resource, acquiredAt,
	)
	if err != nil {
		return fmt.Errorf("delete lease for %q: %w", resource, err)
	}
	return nil
}

// DeleteAll implements Store.DeleteAll.
func (s *PostgresStore) DeleteAll(ctx context.Context, resource string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM lease_locks WHERE resource = $1", resource)
	if err != nil {
		return fmt.Errorf("delete leases for %q: %w", resource, err)
	}
	return nil
}

// Cleanup removes every lease older than threshold. Expired rows are
// harmless to the algorithm but accumulate for resources nobody locks
// again; a background job should call this periodically.
func (s *PostgresStore) Cleanup(ctx context.Context, threshold time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM lease_locks WHERE acquired_at <= $1", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup leases: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PostgresStore)(nil)
