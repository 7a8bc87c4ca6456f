package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// sqlx only knows "sqlite3" by default.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store is the listing persistence layer over SQLite or PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// Open connects to the configured store and pings it.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
		if !strings.HasPrefix(dsn, "file:") {
			dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
		}
		db, err = sqlx.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	case DriverPostgres:
		db, err = sqlx.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", db.DriverName(), err)
	}

	return New(db), nil
}

// New wraps an existing connection. The driver name selects the SQL dialect.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Driver() string { return s.db.DriverName() }

func (s *Store) isPostgres() bool { return s.db.DriverName() == DriverPostgres }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Checkpoint flushes the SQLite WAL into the main database file. It is a
// no-op on PostgreSQL.
func (s *Store) Checkpoint(ctx context.Context) error {
	if s.isPostgres() {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL);`)
	return err
}
