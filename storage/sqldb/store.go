// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/poiesic/tutorder/storage"
	"github.com/poiesic/tutorder/storage/sqldb/migrations"
)

// Dialect identifies the SQL flavor behind a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// DBExecutor is satisfied by both *sql.DB and *sql.Tx.
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps a database/sql handle and provides transaction support.
type Store struct {
	db      *sql.DB
	dialect Dialect
	closed  atomic.Bool
	logger  *slog.Logger
}

var _ storage.TransactionManager = (*Store)(nil)

type txKey struct{}

// ParseDSN resolves a connection string to a driver name, a driver DSN and
// a dialect. Postgres URLs select pgx; anything else is a SQLite path or
// file: URI. SQLAlchemy style prefixes (sqlite:///, postgresql+driver://)
// are accepted.
func ParseDSN(dsn string) (driver, source string, dialect Dialect, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", "", fmt.Errorf("%w: empty DSN", storage.ErrUnsupportedDSN)
	}

	scheme, rest, hasScheme := strings.Cut(dsn, "://")
	if hasScheme {
		base, _, _ := strings.Cut(scheme, "+")
		switch base {
		case "postgres", "postgresql":
			return "pgx", "postgres://" + rest, DialectPostgres, nil
		case "sqlite", "sqlite3":
			// sqlite:///relative.db and sqlite:////absolute.db
			dsn = strings.TrimPrefix(rest, "/")
		default:
			return "", "", "", fmt.Errorf("%w: %s", storage.ErrUnsupportedDSN, scheme)
		}
	}

	if dsn == "" {
		return "", "", "", fmt.Errorf("%w: missing SQLite path", storage.ErrUnsupportedDSN)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		return "sqlite", dsn, DialectSQLite, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return "sqlite", dsn + sep + sqlitePragmas, DialectSQLite, nil
}

// Open connects to the database named by dsn, verifies the connection and
// applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, source, dialect, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if source == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	return open(ctx, db, dialect)
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory(ctx context.Context) (*Store, error) {
	return Open(ctx, ":memory:")
}

func open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "sqldb", "dialect", string(dialect)),
	}

	sub, err := fs.Sub(migrations.FS, string(dialect))
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(ctx, sub); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Dialect reports the SQL flavor of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// IsClosed returns true if the store has been closed.
func (s *Store) IsClosed() bool {
	return s.closed.Load()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.IsClosed() {
		return storage.ErrStorageClosed
	}
	return s.db.PingContext(ctx)
}

// WithTransaction executes fn within a transaction.
// A transaction already present in ctx is joined instead of nesting.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.IsClosed() {
		return storage.ErrStorageClosed
	}
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", storage.ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "err", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}

// conn returns the transaction carried by ctx, or the database handle.
func (s *Store) conn(ctx context.Context) DBExecutor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// migrate runs all pending migrations.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`
	if s.dialect == DialectPostgres {
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		err = s.WithTransaction(ctx, func(ctx context.Context) error {
			conn := s.conn(ctx)
			if _, err := conn.ExecContext(ctx, string(content)); err != nil {
				return err
			}
			_, err := conn.ExecContext(ctx, s.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), version)
			return err
		})
		if err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		s.logger.Debug("applied migration", "name", name)
	}

	return nil
}
