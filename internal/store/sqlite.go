package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB wraps the single shared SQLite handle. Every component gets it injected;
// the process opens it once at startup and closes it at shutdown.
type DB struct {
	*sqlx.DB
	log *zap.Logger
	// unix nanos of the last passing HealthCheck
	lastOK atomic.Int64
}

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
}

// Open opens the SQLite database at path and applies the schema. Creates file if missing.
// The pool is pinned to one connection so concurrent handlers queue on it and
// a transaction owns the store until it finishes.
func Open(ctx context.Context, path string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	sdb, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	sdb.SetMaxOpenConns(1)
	sdb.SetMaxIdleConns(1)
	sdb.SetConnMaxLifetime(0)

	if err := sdb.PingContext(ctx); err != nil {
		sdb.Close()
		return nil, err
	}
	if _, err := sdb.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	db := &DB{DB: sdb, log: log.With(zap.String("component", "store"))}
	if err := db.Migrate(ctx); err != nil {
		sdb.Close()
		return nil, err
	}
	return db, nil
}

// dsn builds a URI so the pragmas are applied to every connection the driver opens.
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + filepath.ToSlash(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// SchemaVersion returns the recorded schema version. Any read failure counts as 0:
// a store that cannot answer is treated as uninitialised.
func (db *DB) SchemaVersion(ctx context.Context) int {
	var raw string
	if err := db.QueryRowxContext(ctx, "SELECT value FROM meta WHERE key='schema_version'").Scan(&raw); err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

// Migrate brings the schema to SchemaVersion. A fresh store gets the whole schema
// in one shot; older stores run the incremental steps in order.
func (db *DB) Migrate(ctx context.Context) error {
	current := db.SchemaVersion(ctx)
	switch {
	case current == 0:
		err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, schema); err != nil {
				return fmt.Errorf("creating schema: %w", err)
			}
			return setVersion(ctx, tx, SchemaVersion)
		})
		if err != nil {
			return err
		}
		db.log.Info("schema created", zap.Int("version", SchemaVersion))
		return nil
	case current > SchemaVersion:
		return fmt.Errorf("schema version %d is newer than supported %d", current, SchemaVersion)
	case current == SchemaVersion:
		return nil
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migrating schema to v%d: %w", m.version, err)
				}
			}
			return setVersion(ctx, tx, m.version)
		})
		if err != nil {
			return err
		}
		db.log.Info("schema migrated", zap.Int("version", m.version))
		current = m.version
	}
	if current < SchemaVersion {
		return setVersion(ctx, db, SchemaVersion)
	}
	return nil
}

func setVersion(ctx context.Context, q Querier, v int) error {
	_, err := q.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta(key, value) VALUES('schema_version', ?)", strconv.Itoa(v))
	if err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// WithTx runs fn in a transaction. It commits when fn returns nil and rolls back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.DB.Close()
}
