package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS holds the embedded migration files. The migrations
// package assigns it from an init function so schema changes ship
// inside the binary; a nil value means no migrations are registered.
var MigrationsFS fs.FS

// MigrationsDir is the directory inside MigrationsFS holding the
// .up.sql / .down.sql pairs.
var MigrationsDir = "."

// migration is one schema change, keyed by the YYYYMMDD_HHMMSS prefix
// of its filename.
type migration struct {
	version string
	name    string
	up      string
	down    string
}

// Migrate applies every migration not yet recorded in
// schema_migrations, oldest first, each inside its own transaction. A
// failing migration is rolled back and stops the run; earlier ones
// stay applied, so a fixed binary resumes where it left off.
func (db *DB) Migrate(ctx context.Context) error {
	available, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("database: load migrations: %w", err)
	}
	if len(available) == 0 {
		return nil
	}

	if err := db.ensureMigrationsTable(ctx); err != nil {
		return err
	}
	done, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range available {
		if done[m.version] {
			continue
		}
		if err := db.runMigration(ctx, m); err != nil {
			return fmt.Errorf("database: migration %s (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// MigrateDown reverts the most recently applied migration. Intended
// for development databases; the daemon never calls it.
func (db *DB) MigrateDown(ctx context.Context) error {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	var latest string
	err := db.QueryRowContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1",
	).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("database: latest migration: %w", err)
	}

	available, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("database: load migrations: %w", err)
	}
	var target *migration
	for i := range available {
		if available[i].version == latest {
			target = &available[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("database: migration %s missing from embedded files", latest)
	}
	if target.down == "" {
		return fmt.Errorf("database: migration %s has no down script", latest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: begin rollback: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op once committed

	if _, err := tx.ExecContext(ctx, target.down); err != nil {
		return fmt.Errorf("database: rollback %s: %w", target.version, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?", target.version,
	); err != nil {
		return fmt.Errorf("database: delete migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("database: commit rollback: %w", err)
	}
	return nil
}

func (db *DB) ensureMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("database: migrations table: %w", err)
	}
	return nil
}

// appliedVersions returns the set of versions already recorded.
func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("database: query migrations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	done := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("database: scan migration: %w", err)
		}
		done[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: iterate migrations: %w", err)
	}
	return done, nil
}

// runMigration executes one up script and records it, atomically.
func (db *DB) runMigration(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op once committed

	if _, err := tx.ExecContext(ctx, m.up); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads and pairs the .up.sql and .down.sql files,
// sorted by version.
func loadMigrations() ([]migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MigrationsDir, err)
	}

	byVersion := make(map[string]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := splitMigrationName(entry.Name())
		if !ok {
			continue
		}
		script, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{version: version, name: name}
			byVersion[version] = m
		}
		if up {
			m.up = string(script)
		} else {
			m.down = string(script)
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" {
			return nil, fmt.Errorf("migration %s has a down script but no up script", m.version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// splitMigrationName parses "20260815_120000_create_entities.up.sql"
// into version "20260815_120000", name "create_entities" and
// direction. Files that do not follow the pattern are skipped.
func splitMigrationName(filename string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}

	switch {
	case strings.HasSuffix(base, ".up"):
		up = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", false, false
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 {
		return "", "", false, false
	}
	version = parts[0] + "_" + parts[1]
	name = base
	if len(parts) == 3 {
		name = parts[2]
	}
	return version, name, up, true
}
