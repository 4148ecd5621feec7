// Package sqlstore persists native types and instances as JSON documents in a SQL
// database. PostgreSQL (pgx or lib/pq) and SQLite are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/conduit-lang/metabridge/internal/native"
)

// Dialect selects placeholder syntax
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	default:
		return Postgres, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// Placeholder returns the n-th (1-based) bind parameter
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// bind rewrites $N placeholders for the dialect
func (d Dialect) bind(query string) string {
	if d != SQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS mb_typedefs (
		guid TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		body TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mb_entities (
		guid TEXT PRIMARY KEY,
		type_name TEXT NOT NULL,
		status INTEGER NOT NULL,
		body TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mb_relationships (
		guid TEXT PRIMARY KEY,
		type_name TEXT NOT NULL,
		end1_guid TEXT NOT NULL,
		end2_guid TEXT NOT NULL,
		status INTEGER NOT NULL,
		body TEXT NOT NULL
	)`,
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store implements the native collaborators over database/sql
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ native.Store = (*Store)(nil)

// New wraps an open database
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Open connects using a database/sql driver name and creates the tables
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s store: %w", driver, err)
	}
	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the store's tables when missing
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create store schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, q queryer, query string, args ...interface{}) (sql.Result, error) {
	res, err := q.ExecContext(ctx, s.dialect.bind(query), args...)
	return res, convertDBError(err)
}

func (s *Store) queryRow(ctx context.Context, q queryer, query string, args ...interface{}) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.bind(query), args...)
}

func (s *Store) query(ctx context.Context, q queryer, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := q.QueryContext(ctx, s.dialect.bind(query), args...)
	return rows, convertDBError(err)
}

// requireAffected turns a zero-row write into ErrNotFound
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, native.ErrNotFound)
	}
	return nil
}
