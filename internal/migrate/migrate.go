// Package migrate applies the versioned SQL files in migrations/ to PostgreSQL.
//
// It runs over database/sql with the lib/pq driver so it can execute
// multi-statement files without the pgx extended protocol.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"

	_ "github.com/lib/pq"
)

// lockID serializes concurrent migration runs across processes.
const lockID int64 = 7307001

var fileRegex = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// Common errors for migration runs.
var (
	ErrNoMigrations  = errors.New("no migration files found")
	ErrMissingUp     = errors.New("migration has no up script")
	ErrMissingDown   = errors.New("migration has no down script")
	ErrNothingToUndo = errors.New("no applied migrations")
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	lockSQL          = `SELECT pg_advisory_xact_lock($1)`
	appliedSQL       = `SELECT version FROM schema_migrations ORDER BY version`
	lastAppliedSQL   = `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`
	recordSQL        = `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
	deleteVersionSQL = `DELETE FROM schema_migrations WHERE version = $1`
)

// Migration is one versioned schema change.
type Migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// Load reads every NNNNNN_name.{up,down}.sql file in fsys, sorted by version.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := fileRegex.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", entry.Name(), err)
		}

		body, err := fs.ReadFile(fsys, path.Clean(entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		}
		if m[3] == "up" {
			mig.Up = string(body)
		} else {
			mig.Down = string(body)
		}
	}

	if len(byVersion) == 0 {
		return nil, ErrNoMigrations
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" {
			return nil, fmt.Errorf("version %d: %w", mig.Version, ErrMissingUp)
		}
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out, nil
}

// Migrator applies and rolls back migrations on a database handle.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
	logger     *slog.Logger
}

// New creates a Migrator from the migration files in fsys.
func New(db *sql.DB, fsys fs.FS, logger *slog.Logger) (*Migrator, error) {
	migrations, err := Load(fsys)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, migrations: migrations, logger: logger}, nil
}

// Open opens a database/sql handle using the lib/pq driver and verifies it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Up applies every pending migration in a single transaction and
// returns how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	tx, err := m.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	applied, err := appliedVersions(ctx, tx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, mig.Up); err != nil {
			return 0, fmt.Errorf("apply migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		if _, err := tx.ExecContext(ctx, recordSQL, mig.Version, mig.Name); err != nil {
			return 0, fmt.Errorf("record migration %d: %w", mig.Version, err)
		}
		m.logger.Info("migration applied",
			slog.Int64("version", mig.Version),
			slog.String("name", mig.Name),
		)
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit migrations: %w", err)
	}
	return count, nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) (*Migration, error) {
	tx, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	err = tx.QueryRowContext(ctx, lastAppliedSQL).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNothingToUndo
	}
	if err != nil {
		return nil, fmt.Errorf("read last migration: %w", err)
	}

	mig := m.find(version)
	if mig == nil || mig.Down == "" {
		return nil, fmt.Errorf("version %d: %w", version, ErrMissingDown)
	}

	if _, err := tx.ExecContext(ctx, mig.Down); err != nil {
		return nil, fmt.Errorf("revert migration %d_%s: %w", mig.Version, mig.Name, err)
	}
	if _, err := tx.ExecContext(ctx, deleteVersionSQL, mig.Version); err != nil {
		return nil, fmt.Errorf("unrecord migration %d: %w", mig.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rollback: %w", err)
	}

	m.logger.Info("migration reverted",
		slog.Int64("version", mig.Version),
		slog.String("name", mig.Name),
	)
	return mig, nil
}

// Run opens dsn, applies pending migrations from fsys and closes the handle.
func Run(ctx context.Context, dsn string, fsys fs.FS, logger *slog.Logger) (int, error) {
	db, err := Open(ctx, dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	m, err := New(db, fsys, logger)
	if err != nil {
		return 0, err
	}
	return m.Up(ctx)
}

// begin starts a transaction holding the migration lock with the
// bookkeeping table in place.
func (m *Migrator) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin migration tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, lockSQL, lockID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	return tx, nil
}

func (m *Migrator) find(version int64) *Migration {
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			return &m.migrations[i]
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, tx *sql.Tx) (map[int64]bool, error) {
	rows, err := tx.QueryContext(ctx, appliedSQL)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
