package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // local SQLite driver

	"github.com/sundayezeilo/microblog/internal/db"
)

// Store implements db.Store on a database/sql handle.
type Store struct {
	*Queries
	sqlDB *sql.DB
}

var _ db.Store = (*Store)(nil)

// DriverFor picks the database/sql driver for a database URL: libsql for
// remote Turso URLs, sqlite for everything else.
func DriverFor(url string) string {
	for _, prefix := range []string{"libsql://", "wss://", "ws://", "https://", "http://"} {
		if strings.HasPrefix(url, prefix) {
			return "libsql"
		}
	}
	return "sqlite"
}

// Open connects to url and verifies the connection. Local SQLite files get
// foreign keys enabled and a single connection, which serializes writers.
// A nil logger falls back to slog.Default.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := DriverFor(url)

	dsn := url
	if driver == "sqlite" {
		dsn = withPragmas(url)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == "libsql" {
		enableForeignKeys(ctx, sqlDB, logger)
	}

	return NewStore(sqlDB), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// enableForeignKeys is best effort on libSQL: links are deleted explicitly by
// the store as well.
func enableForeignKeys(ctx context.Context, conn execer, logger *slog.Logger) {
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		logger.DebugContext(ctx, "libsql foreign keys not enabled", "error", err.Error())
	}
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewStore(sqlDB *sql.DB) *Store {
	return &Store{
		Queries: New(sqlDB),
		sqlDB:   sqlDB,
	}
}

func (s *Store) ExecTx(ctx context.Context, fn func(db.Querier) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", normalize(err))
	}

	if err := fn(s.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", normalize(rbErr)))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", normalize(err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return normalize(s.sqlDB.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Migrate creates the tweet tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, db.SQLiteSchema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}
