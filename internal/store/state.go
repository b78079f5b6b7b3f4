package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/navaarsync/navaar/internal/models"
)

// StateStore implements the C2 state store: last-writer-wins
// string key/value pairs for sync-run timestamps and per-direction
// playlist snapshots.
//
// Grounded on original_source/db/models.py: SyncState +
// repository.py's SyncStateRepository.
type StateStore struct {
	db *sql.DB
}

// NewStateStore creates a new StateStore over an already-migrated database.
func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// Get returns the value for key, or ("", false) if unset.
func (s *StateStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state key %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key → value, last-writer-wins.
func (s *StateStore) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to write state key %q: %w", key, err)
	}
	return nil
}

// SetLastSync records wall-clock seconds of the last completed cycle for a
// direction.
func (s *StateStore) SetLastSync(d models.Direction, when time.Time) error {
	return s.Set(models.LastSyncKey(d), fmt.Sprintf("%d", when.Unix()))
}

// LastSync returns the last completed-cycle time for a direction, if any.
func (s *StateStore) LastSync(d models.Direction) (time.Time, bool, error) {
	value, ok, err := s.Get(models.LastSyncKey(d))
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	var seconds int64
	if _, err := fmt.Sscanf(value, "%d", &seconds); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse last sync value %q: %w", value, err)
	}
	return time.Unix(seconds, 0), true, nil
}

// Snapshot returns the decoded external-id snapshot for a pull source
// endpoint ("yt" or "sp"), or nil if none has been recorded yet — the
// "first-run emptiness" contract.
func (s *StateStore) Snapshot(endpoint string) ([]string, error) {
	value, ok, err := s.Get(models.SnapshotKey(endpoint))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return models.DecodeSnapshot(value)
}

// SetSnapshot persists the full current external-id list for a pull
// source endpoint. Callers must write this only after processing
// completes.
func (s *StateStore) SetSnapshot(endpoint string, ids []string) error {
	value, err := models.EncodeSnapshot(ids)
	if err != nil {
		return err
	}
	return s.Set(models.SnapshotKey(endpoint), value)
}
