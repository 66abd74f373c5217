package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirMode  = 0o750
	fileMode = 0o600

	// pingTimeout bounds the connectivity check in Open.
	pingTimeout = 5 * time.Second

	// msPerSecond converts the configured busy timeout to the
	// millisecond value the driver expects.
	msPerSecond = 1000
)

// Config mirrors the database section of config.yaml.
type Config struct {
	// Path of the SQLite file. Missing parent directories are created.
	Path string

	// WALMode turns on write-ahead logging so reads do not block the
	// writer.
	WALMode bool

	// BusyTimeout is how long, in seconds, a statement waits on a
	// locked database before failing.
	BusyTimeout int
}

// DB is the daemon's SQLite handle. The embedded *sql.DB carries the
// query API; DB adds lifecycle and schema migration support.
type DB struct {
	*sql.DB
	path string
}

// Open creates the database file if needed and verifies connectivity.
// The pool is capped at one connection: SQLite allows a single writer
// and the daemon's write volume is a handful of rows per command.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
		return nil, fmt.Errorf("database: create directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*msPerSecond)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	handle, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)
	handle.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := handle.PingContext(ctx); err != nil {
		handle.Close() //nolint:errcheck // Best effort on the error path
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	// The file may not exist until the first write; ignore the error.
	_ = os.Chmod(cfg.Path, fileMode)

	return &DB{DB: handle, path: cfg.Path}, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("database: close: %w", err)
	}
	return nil
}

// Path returns the location of the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query to prove the connection is usable.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database: health check: %w", err)
	}
	return nil
}
