package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaVersion = 1

var sqliteSchemaV1 = []string{`
CREATE TABLE IF NOT EXISTS listings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id INTEGER,
  requisition_id TEXT NOT NULL DEFAULT '',
  canonical_url TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  team TEXT NOT NULL DEFAULT '',
  posting_date TEXT,
  is_remote INTEGER,
  compensation TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  description_text TEXT NOT NULL DEFAULT '',
  first_seen TEXT NOT NULL,
  last_seen TEXT NOT NULL,
  times_crawled INTEGER,
  no_longer_seen INTEGER
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_identity_active
ON listings(requisition_id, canonical_url)
WHERE no_longer_seen IS NOT 1;`, `
CREATE INDEX IF NOT EXISTS idx_listings_last_seen
ON listings(last_seen);`,
}

var postgresSchemaV1 = []string{`
CREATE TABLE IF NOT EXISTS listings (
  id BIGSERIAL PRIMARY KEY,
  job_id BIGINT,
  requisition_id TEXT NOT NULL DEFAULT '',
  canonical_url TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  team TEXT NOT NULL DEFAULT '',
  posting_date TIMESTAMPTZ,
  is_remote BOOLEAN,
  compensation TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  description_text TEXT NOT NULL DEFAULT '',
  first_seen TIMESTAMPTZ NOT NULL,
  last_seen TIMESTAMPTZ NOT NULL,
  times_crawled INTEGER,
  no_longer_seen BOOLEAN
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_identity_active
ON listings(requisition_id, canonical_url)
WHERE no_longer_seen IS NOT TRUE;`, `
CREATE INDEX IF NOT EXISTS idx_listings_last_seen
ON listings(last_seen);`, `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER NOT NULL
);`,
}

// Migrate brings the schema up to date inside one transaction. SQLite tracks
// the version in PRAGMA user_version, PostgreSQL in schema_version.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := sqliteSchemaV1
	if s.isPostgres() {
		stmts = postgresSchemaV1
	}

	v, err := s.schemaVersion(ctx, tx)
	if err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate v%d: %w", schemaVersion, err)
		}
	}

	if err := s.setSchemaVersion(ctx, tx, schemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) schemaVersion(ctx context.Context, tx *sqlx.Tx) (int, error) {
	var v int
	if !s.isPostgres() {
		err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v)
		return v, err
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT to_regclass('schema_version') IS NOT NULL;`).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version;`).Scan(&v)
	return v, err
}

func (s *Store) setSchemaVersion(ctx context.Context, tx *sqlx.Tx, v int) error {
	if !s.isPostgres() {
		// PRAGMA does not accept bound parameters.
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, v))
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO schema_version(version) VALUES ($1);`, v)
	return err
}
