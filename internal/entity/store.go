package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrEntityNotFound is returned when a snapshot update targets an
// entity that was never registered.
var ErrEntityNotFound = errors.New("entity: entity not found")

// Snapshot is one persisted entity record: the registration descriptor
// plus the last state written through the store.
type Snapshot struct {
	Descriptor
	UpdatedAt time.Time
}

// Store persists entity snapshots so the admin surface can list
// entities without waking the bridge. Runtime command handling never
// reads it; writes are best effort.
type Store interface {
	// SaveDescriptors upserts the registration records for a setup pass.
	SaveDescriptors(ctx context.Context, descriptors []Descriptor) error

	// UpdateState records an entity's brightness and availability.
	// Returns ErrEntityNotFound if the entity was never saved.
	UpdateState(ctx context.Context, uniqueID string, brightness int, available bool) error

	// List retrieves all persisted snapshots ordered by name.
	List(ctx context.Context) ([]Snapshot, error)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
// The db parameter should be an open SQLite connection with the
// entities migration applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SaveDescriptors upserts the registration records for a setup pass.
// Re-running setup refreshes existing rows instead of duplicating them.
func (s *SQLiteStore) SaveDescriptors(ctx context.Context, descriptors []Descriptor) error {
	if len(descriptors) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning descriptor transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO entities (unique_id, kind, name, room_id, channel_id,
			scene_number, brightness, available, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unique_id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			room_id = excluded.room_id,
			channel_id = excluded.channel_id,
			scene_number = excluded.scene_number,
			brightness = excluded.brightness,
			available = excluded.available,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	for _, d := range descriptors {
		_, err := tx.ExecContext(ctx, query,
			d.UniqueID, d.Kind, d.Name, d.RoomID, d.ChannelID,
			d.SceneNumber, d.Brightness, boolToInt(d.Available), now)
		if err != nil {
			return fmt.Errorf("saving descriptor %s: %w", d.UniqueID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing descriptors: %w", err)
	}
	return nil
}

// UpdateState records an entity's brightness and availability.
func (s *SQLiteStore) UpdateState(ctx context.Context, uniqueID string, brightness int, available bool) error {
	query := `
		UPDATE entities
		SET brightness = ?, available = ?, updated_at = ?
		WHERE unique_id = ?`

	result, err := s.db.ExecContext(ctx, query,
		brightness, boolToInt(available), time.Now().UTC().Format(time.RFC3339), uniqueID)
	if err != nil {
		return fmt.Errorf("updating entity state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// List retrieves all persisted snapshots ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]Snapshot, error) {
	query := `
		SELECT unique_id, kind, name, room_id, channel_id, scene_number,
			brightness, available, updated_at
		FROM entities
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			available int
			updatedAt string
		)
		err := rows.Scan(&snap.UniqueID, &snap.Kind, &snap.Name, &snap.RoomID,
			&snap.ChannelID, &snap.SceneNumber, &snap.Brightness, &available, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		snap.Available = available != 0
		if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			snap.UpdatedAt = ts
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity rows: %w", err)
	}
	return snapshots, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
