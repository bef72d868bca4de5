package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"campus-map-server/migrations"

	_ "github.com/lib/pq"
)

// Migration is one versioned schema file. Version is the file name, which is
// also the key recorded in schema_migrations.
type Migration struct {
	Version string
	SQL     string
}

// migrationLedger records which schema versions a database already carries.
type migrationLedger interface {
	Applied(ctx context.Context) (map[string]bool, error)
	Apply(ctx context.Context, m Migration) error
}

// MigrationSource returns the schema files to apply: the directory dir when it
// is set, otherwise the files compiled into the binary.
func MigrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.Files
	}
	return os.DirFS(dir)
}

// LoadMigrations reads every NNN_name.sql file at the root of fsys in version
// order. Files with another extension are ignored.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	result := make([]Migration, 0, len(names))
	for _, name := range names {
		if !versioned(name) {
			return nil, fmt.Errorf("migration %s must be named NNN_description.sql", name)
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil, fmt.Errorf("migration %s is empty", name)
		}
		result = append(result, Migration{Version: path.Base(name), SQL: string(content)})
	}
	return result, nil
}

func versioned(name string) bool {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok || prefix == "" {
		return false
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RunMigrations applies every migration in fsys the database has not seen yet,
// each inside its own transaction.
func (db *DB) RunMigrations(ctx context.Context, fsys fs.FS) error {
	logger := slog.With("component", "migrations")
	logger.Info("Starting database migrations")

	if err := db.createMigrationsTable(ctx); err != nil {
		logger.Error("Failed to create migrations table", "error", err)
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	pending, err := LoadMigrations(fsys)
	if err != nil {
		logger.Error("Failed to load migrations", "error", err)
		return err
	}
	logger.Info("Found migration files", "count", len(pending))

	applied, err := runPending(ctx, sqlLedger{db: db.DB}, pending, logger)
	if err != nil {
		return err
	}

	logger.Info("All migrations completed successfully", "applied", applied)
	return nil
}

func runPending(ctx context.Context, ledger migrationLedger, pending []Migration, logger *slog.Logger) (int, error) {
	seen, err := ledger.Applied(ctx)
	if err != nil {
		logger.Error("Failed to read migration status", "error", err)
		return 0, fmt.Errorf("failed to read migration status: %w", err)
	}

	applied := 0
	for _, m := range pending {
		if seen[m.Version] {
			logger.Debug("Migration already applied, skipping", "migration", m.Version)
			continue
		}
		logger.Info("Running migration", "migration", m.Version, "size_bytes", len(m.SQL))
		if err := ledger.Apply(ctx, m); err != nil {
			logger.Error("Failed to run migration", "migration", m.Version, "error", err)
			return applied, fmt.Errorf("failed to run migration %s: %w", m.Version, err)
		}
		applied++
	}
	return applied, nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT NOW()
	)`)
	return err
}

type sqlLedger struct {
	db *sql.DB
}

func (l sqlLedger) Applied(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("Failed to close schema_migrations rows", "error", err)
		}
	}()

	seen := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		seen[version] = true
	}
	return seen, rows.Err()
}

func (l sqlLedger) Apply(ctx context.Context, m Migration) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("Failed to rollback migration", "migration", m.Version, "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
		return err
	}
	return tx.Commit()
}
