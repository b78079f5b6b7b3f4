package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/navaarsync/navaar/internal/models"
)

// EventLog implements the C3 event log: an append-only record of
// per-item transitions, keyed by item id.
//
// Grounded on original_source/db/models.py: SyncLog. Modelled as a
// one-way reference from log to track; the
// log never has to be traversed to reach a track.
type EventLog struct {
	db *sql.DB
}

// NewEventLog creates a new EventLog over an already-migrated database.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

// Log appends an immutable record. trackID and direction are optional
// (cycle-level events carry neither). details is
// marshaled to JSON; pass nil for no extra detail.
func (l *EventLog) Log(trackID *int64, event models.LogEvent, direction *models.Direction, details any) error {
	var raw []byte
	if details != nil {
		encoded, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode log details: %w", err)
		}
		raw = encoded
	}

	var directionStr *string
	if direction != nil {
		d := string(*direction)
		directionStr = &d
	}

	_, err := l.db.Exec(`INSERT INTO sync_log (track_id, event, direction, details) VALUES (?, ?, ?, ?)`,
		trackID, string(event), directionStr, nullableJSON(raw))
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// Recent returns the most recent log entries, optionally scoped to a
// track id, newest first.
func (l *EventLog) Recent(limit int, trackID *int64) ([]*models.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if trackID != nil {
		rows, err = l.db.Query(`SELECT id, track_id, event, direction, details, created_at
			FROM sync_log WHERE track_id = ? ORDER BY id DESC LIMIT ?`, *trackID, limit)
	} else {
		rows, err = l.db.Query(`SELECT id, track_id, event, direction, details, created_at
			FROM sync_log ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LogEntry
	for rows.Next() {
		var (
			e models.LogEntry
			trackID sql.NullInt64
			event string
			direction sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &trackID, &event, &direction, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.Event = models.LogEvent(event)
		if trackID.Valid {
			e.TrackID = &trackID.Int64
		}
		if direction.Valid {
			d := models.Direction(direction.String)
			e.Direction = &d
		}
		if details.Valid {
			e.Details = json.RawMessage(details.String)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func nullableJSON(raw []byte) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}
