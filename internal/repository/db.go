package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// Store errors surfaced to services.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

// Options configures Open.
type Options struct {
	Driver          string // sqlite, postgres or mysql
	DSN             string // file path for sqlite
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is the process-wide store handle. It is opened once at startup and
// passed to every repository.
type DB struct {
	*bun.DB
}

// Open connects to the configured store and creates the schema.
func Open(ctx context.Context, opts Options) (*DB, error) {
	var bdb *bun.DB

	switch opts.Driver {
	case "postgres", "postgresql":
		sqldb, err := sql.Open("postgres", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
		}
		applyPool(sqldb, opts)
		bdb = bun.NewDB(sqldb, pgdialect.New())
	case "mysql":
		sqldb, err := sql.Open("mysql", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL: %w", err)
		}
		applyPool(sqldb, opts)
		bdb = bun.NewDB(sqldb, mysqldialect.New())
	default:
		if dir := filepath.Dir(opts.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		// Immediate transactions take the write lock up front so that
		// check-and-update sequences never interleave.
		dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate", opts.DSN)
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		sqldb.SetMaxOpenConns(1) // SQLite only supports 1 writer
		sqldb.SetMaxIdleConns(1)
		sqldb.SetConnMaxLifetime(0)
		bdb = bun.NewDB(sqldb, sqlitedialect.New())
	}

	db := &DB{DB: bdb}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", db.Dialect().Name(), err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	slog.Info("store initialized", "component", "repository", "driver", db.Dialect().Name().String())
	return db, nil
}

func applyPool(sqldb *sql.DB, opts Options) {
	if opts.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
}

// WithTx runs fn in a read-write transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, fn)
}

// lockForUpdate adds a row lock where the dialect supports one. SQLite
// serializes writers through immediate transactions instead.
func lockForUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if q.Dialect().Name() == dialect.SQLite {
		return q
	}
	return q.For("UPDATE")
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a LIKE pattern matching term anywhere, with the
// wildcards inside term taken literally. Use it with ESCAPE '!'.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
