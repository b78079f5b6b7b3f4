package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/shared"
)

// TrackStore implements the C1 track store: the durable catalog of
// items, their direction, state, and cross-endpoint identifiers.
//
// Grounded on internal/repositories/track.go's scanOne/scanRow +
// transactional-Exec idiom, extended with the operation surface
// original_source/db/repository.py: TrackRepository exposes.
type TrackStore struct {
	db *sql.DB
}

// NewTrackStore creates a new TrackStore over an already-migrated database.
func NewTrackStore(db *sql.DB) *TrackStore {
	return &TrackStore{db: db}
}

const trackColumns = `id, direction, status, artist, title, identification_method,
	tg_message_id, tg_file_id, tg_file_unique_id, yt_video_id, yt_set_video_id, sp_track_id,
	duration_seconds, failure_reason, retry_count, max_retries, created_at, updated_at, synced_at`

// Create inserts a new track. A second create with the same tg_file_unique_id
// or tg_message_id fails with [shared.ErrDuplicateTrack] — the
// caller treats the conflict as "already discovered".
func (s *TrackStore) Create(t *models.Track) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		t.Status = models.StatusPending
	}
	if t.MaxRetries == 0 {
		t.MaxRetries = 3
	}

	res, err := s.db.Exec(`
		INSERT INTO tracks (direction, status, artist, title, identification_method,
			tg_message_id, tg_file_id, tg_file_unique_id, yt_video_id, yt_set_video_id, sp_track_id,
			duration_seconds, failure_reason, retry_count, max_retries, created_at, updated_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Direction), string(t.Status), t.Artist, t.Title, methodPtr(t.IdentificationMethod),
		t.TgMessageID, t.TgFileID, t.TgFileUniqueID, t.YtVideoID, t.YtSetVideoID, t.SpTrackID,
		t.DurationSeconds, t.FailureReason, t.RetryCount, t.MaxRetries, t.CreatedAt, t.UpdatedAt, t.SyncedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return 0, fmt.Errorf("%w: %v", shared.ErrDuplicateTrack, err)
		}
		return 0, fmt.Errorf("failed to insert track: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	t.ID = id
	return id, nil
}

// Get retrieves a track by id.
func (s *TrackStore) Get(id int64) (*models.Track, error) {
	return s.scanOne(s.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id))
}

// GetByTgFileUniqueID retrieves a track by its unique TG file handle.
func (s *TrackStore) GetByTgFileUniqueID(fileUniqueID string) (*models.Track, error) {
	return s.scanOne(s.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE tg_file_unique_id = ?`, fileUniqueID))
}

// GetByTgMessageID retrieves a track by its unique TG message handle.
func (s *TrackStore) GetByTgMessageID(messageID int64) (*models.Track, error) {
	return s.scanOne(s.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE tg_message_id = ?`, messageID))
}

// GetByYtVideoID retrieves a track by its YouTube video id, scoped to a
// direction since the same yt_video_id can appear in both yt_to_tg and
// yt_to_sp.
func (s *TrackStore) GetByYtVideoID(direction models.Direction, ytVideoID string) (*models.Track, error) {
	return s.scanOne(s.db.QueryRow(
		`SELECT `+trackColumns+` FROM tracks WHERE direction = ? AND yt_video_id = ? ORDER BY id DESC LIMIT 1`,
		string(direction), ytVideoID))
}

// GetBySpTrackID retrieves a track by its Spotify track id, scoped to a
// direction (used by the sp→tg fan-out guard to check for a sibling
// sp→yt track before creating a new companion).
func (s *TrackStore) GetBySpTrackID(direction models.Direction, spTrackID string) (*models.Track, error) {
	return s.scanOne(s.db.QueryRow(
		`SELECT `+trackColumns+` FROM tracks WHERE direction = ? AND sp_track_id = ? ORDER BY id DESC LIMIT 1`,
		string(direction), spTrackID))
}

// GetPending returns every track in direction d whose status is pickup-eligible
// (pending or retry_scheduled), in ascending id order.
func (s *TrackStore) GetPending(d models.Direction) ([]*models.Track, error) {
	rows, err := s.db.Query(`SELECT `+trackColumns+` FROM tracks
		WHERE direction = ? AND status IN (?, ?) ORDER BY id ASC`,
		string(d), string(models.StatusPending), string(models.StatusRetryScheduled))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tracks: %w", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// GetFailed returns failed tracks, optionally scoped to a direction
// (direction == "" means all directions).
func (s *TrackStore) GetFailed(direction models.Direction) ([]*models.Track, error) {
	if direction == "" {
		rows, err := s.db.Query(`SELECT `+trackColumns+` FROM tracks WHERE status = ? ORDER BY id ASC`,
			string(models.StatusFailed))
		if err != nil {
			return nil, fmt.Errorf("failed to query failed tracks: %w", err)
		}
		defer rows.Close()
		return s.scanAll(rows)
	}
	rows, err := s.db.Query(`SELECT `+trackColumns+` FROM tracks WHERE status = ? AND direction = ? ORDER BY id ASC`,
		string(models.StatusFailed), string(direction))
	if err != nil {
		return nil, fmt.Errorf("failed to query failed tracks: %w", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// Update persists the full mutable state of t (artist/title/method,
// status, endpoint handles, failure bookkeeping). direction and id are
// immutable and are not touched.
func (s *TrackStore) Update(t *models.Track) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.UpdatedAt = time.Now()

	res, err := s.db.Exec(`
		UPDATE tracks SET status = ?, artist = ?, title = ?, identification_method = ?,
			tg_message_id = ?, tg_file_id = ?, tg_file_unique_id = ?, yt_video_id = ?, yt_set_video_id = ?,
			sp_track_id = ?, duration_seconds = ?, failure_reason = ?, retry_count = ?, max_retries = ?,
			updated_at = ?, synced_at = ?
		WHERE id = ?`,
		string(t.Status), t.Artist, t.Title, methodPtr(t.IdentificationMethod),
		t.TgMessageID, t.TgFileID, t.TgFileUniqueID, t.YtVideoID, t.YtSetVideoID, t.SpTrackID,
		t.DurationSeconds, t.FailureReason, t.RetryCount, t.MaxRetries, t.UpdatedAt, t.SyncedAt, t.ID,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %v", shared.ErrDuplicateTrack, err)
		}
		return fmt.Errorf("failed to update track: %w", err)
	}
	return rowsAffectedOrNotFound(res, t.ID)
}

// MarkSynced transitions a track to synced, setting the target's external
// identifier handle and synced_at.
func (s *TrackStore) MarkSynced(id int64, setHandle func(*models.Track)) (*models.Track, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	t.Status = models.StatusSynced
	t.SyncedAt = &now
	t.FailureReason = nil
	if setHandle != nil {
		setHandle(t)
	}
	if err := s.Update(t); err != nil {
		return nil, err
	}
	return t, nil
}

// MarkFailed transitions a track to failed, records the reason, and bumps
// retry_count.
func (s *TrackStore) MarkFailed(id int64, reason models.FailureReason) (*models.Track, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	t.Status = models.StatusFailed
	r := string(reason)
	t.FailureReason = &r
	t.RetryCount++
	t.SyncedAt = nil
	if err := s.Update(t); err != nil {
		return nil, err
	}
	return t, nil
}

// MarkDuplicate transitions a track to duplicate, optionally persisting the
// target identifier that was found already present.
func (s *TrackStore) MarkDuplicate(id int64, setHandle func(*models.Track)) (*models.Track, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	t.Status = models.StatusDuplicate
	t.FailureReason = nil
	if setHandle != nil {
		setHandle(t)
	}
	if err := s.Update(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ResetForRetry transitions a single failed track back to retry_scheduled,
// clearing failure_reason. Refuses tracks that have exhausted
// max_retries (Open Question decision #2 in DESIGN.md).
func (s *TrackStore) ResetForRetry(id int64) (*models.Track, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if t.RetryCount >= t.MaxRetries {
		return nil, fmt.Errorf("%w: track %d has retry_count %d >= max_retries %d",
			shared.ErrMaxRetries, id, t.RetryCount, t.MaxRetries)
	}
	t.Status = models.StatusRetryScheduled
	t.FailureReason = nil
	if err := s.Update(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ResetAllFailed resets every failed track in a direction (or all
// directions when direction == "") back to retry_scheduled, skipping any
// that have exhausted max_retries, and returns the number reset.
//
// duplicate tracks are never touched here — see Open Question decision #1
// in DESIGN.md.
func (s *TrackStore) ResetAllFailed(direction models.Direction) (int, error) {
	failed, err := s.GetFailed(direction)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	reset := 0
	for _, t := range failed {
		if t.RetryCount >= t.MaxRetries {
			continue
		}
		res, err := tx.Exec(`UPDATE tracks SET status = ?, failure_reason = NULL, updated_at = ? WHERE id = ?`,
			string(models.StatusRetryScheduled), now, t.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to reset track %d: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			reset++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reset: %w", err)
	}
	return reset, nil
}

// GetCounts returns per-direction, per-status counts, the source
// for the scheduler's per-status gauges.
func (s *TrackStore) GetCounts() (models.Counts, error) {
	rows, err := s.db.Query(`SELECT direction, status, COUNT(*) FROM tracks GROUP BY direction, status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	counts := make(models.Counts)
	for rows.Next() {
		var direction, status string
		var n int
		if err := rows.Scan(&direction, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan counts row: %w", err)
		}
		d := models.Direction(direction)
		if counts[d] == nil {
			counts[d] = make(map[models.Status]int)
		}
		counts[d][models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

// GetStats returns totals and a success-rate percentage across all
// directions, grounded on original_source/db/repository.py: get_stats.
func (s *TrackStore) GetStats() (models.Stats, error) {
	var stats models.Stats
	row := s.db.QueryRow(`
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END)
		FROM tracks`,
		string(models.StatusSynced), string(models.StatusFailed), string(models.StatusDuplicate),
		string(models.StatusPending), string(models.StatusRetryScheduled),
	)

	var synced, failed, duplicate, pending sql.NullInt64
	if err := row.Scan(&stats.Total, &synced, &failed, &duplicate, &pending); err != nil {
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}
	stats.Synced = int(synced.Int64)
	stats.Failed = int(failed.Int64)
	stats.Duplicate = int(duplicate.Int64)
	stats.Pending = int(pending.Int64)

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Synced) / float64(stats.Total) * 100
	}
	return stats, nil
}

// GetRecent returns the most recently updated tracks, optionally scoped
// to a direction, newest first.
func (s *TrackStore) GetRecent(limit int, direction models.Direction) ([]*models.Track, error) {
	if limit <= 0 {
		limit = 20
	}
	if direction == "" {
		rows, err := s.db.Query(`SELECT `+trackColumns+` FROM tracks ORDER BY updated_at DESC LIMIT ?`, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to query recent tracks: %w", err)
		}
		defer rows.Close()
		return s.scanAll(rows)
	}
	rows, err := s.db.Query(`SELECT `+trackColumns+` FROM tracks WHERE direction = ? ORDER BY updated_at DESC LIMIT ?`,
		string(direction), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent tracks: %w", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// Delete removes a track permanently. Tracks have no soft-delete column —
// unlike the original cached-playlist entities, a track is a disposable
// sync intent, not a record with audit value once an operator deletes it.
func (s *TrackStore) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return rowsAffectedOrNotFound(res, id)
}

func rowsAffectedOrNotFound(res sql.Result, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", shared.ErrTrackNotFound, id)
	}
	return nil
}

func methodPtr(m *models.IdentificationMethod) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TrackStore) scanOne(row *sql.Row) (*models.Track, error) {
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	return t, err
}

func (s *TrackStore) scanAll(rows *sql.Rows) ([]*models.Track, error) {
	var tracks []*models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func scanTrack(row rowScanner) (*models.Track, error) {
	var (
		t models.Track
		direction string
		status string
		method sql.NullString
		tgMessageID sql.NullInt64
		tgFileID sql.NullString
		tgFileUnique sql.NullString
		ytVideoID sql.NullString
		ytSetVideoID sql.NullString
		spTrackID sql.NullString
		duration sql.NullInt64
		failure sql.NullString
		artist sql.NullString
		syncedAt sql.NullTime
	)

	err := row.Scan(&t.ID, &direction, &status, &artist, &t.Title, &method,
		&tgMessageID, &tgFileID, &tgFileUnique, &ytVideoID, &ytSetVideoID, &spTrackID,
		&duration, &failure, &t.RetryCount, &t.MaxRetries, &t.CreatedAt, &t.UpdatedAt, &syncedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	t.Direction = models.Direction(direction)
	t.Status = models.Status(status)
	if artist.Valid {
		t.Artist = &artist.String
	}
	if method.Valid {
		m := models.IdentificationMethod(method.String)
		t.IdentificationMethod = &m
	}
	if tgMessageID.Valid {
		t.TgMessageID = &tgMessageID.Int64
	}
	if tgFileID.Valid {
		t.TgFileID = &tgFileID.String
	}
	if tgFileUnique.Valid {
		t.TgFileUniqueID = &tgFileUnique.String
	}
	if ytVideoID.Valid {
		t.YtVideoID = &ytVideoID.String
	}
	if ytSetVideoID.Valid {
		t.YtSetVideoID = &ytSetVideoID.String
	}
	if spTrackID.Valid {
		t.SpTrackID = &spTrackID.String
	}
	if duration.Valid {
		d := int(duration.Int64)
		t.DurationSeconds = &d
	}
	if failure.Valid {
		t.FailureReason = &failure.String
	}
	if syncedAt.Valid {
		t.SyncedAt = &syncedAt.Time
	}

	return &t, nil
}
