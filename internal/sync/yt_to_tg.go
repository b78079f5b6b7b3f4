package sync

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/navaarsync/navaar/internal/adapters"
	"github.com/navaarsync/navaar/internal/metrics"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/store"
)

// YtToTgWorker implements the "source-pull-and-transfer" shape for
// yt_to_tg: retry already-discovered tracks, then diff the YT Music
// playlist against the last snapshot and transfer anything new.
//
// Grounded on original_source/sync/yt_to_tg.py.
type YtToTgWorker struct {
	tracks *store.TrackStore
	state *store.StateStore
	events *store.EventLog
	chat adapters.ChatAdapter
	yt adapters.TargetAdapter
	dl adapters.Downloader
	logger *log.Logger
}

// NewYtToTgWorker builds the yt_to_tg worker. yt is the YouTube Music
// target adapter used here purely as the source-side playlist reader.
func NewYtToTgWorker(tracks *store.TrackStore, state *store.StateStore, events *store.EventLog, chat adapters.ChatAdapter, yt adapters.TargetAdapter, dl adapters.Downloader, logger *log.Logger) *YtToTgWorker {
	return &YtToTgWorker{tracks: tracks, state: state, events: events, chat: chat, yt: yt, dl: dl, logger: logger}
}

func (w *YtToTgWorker) Direction() models.Direction { return models.YtToTg }

func (w *YtToTgWorker) Cycle(ctx context.Context) (int, error) {
	synced := 0

	retries, err := w.tracks.GetPending(models.YtToTg)
	if err != nil {
		return synced, fmt.Errorf("failed to load pending tracks: %w", err)
	}
	for _, t := range retries {
		if t.YtVideoID == nil {
			continue
		}
		trackID := t.ID
		err := unexpectedErrorGuard(func() error { return w.retryTrack(ctx, t) })
		if err != nil {
			logError(w.logger, "retry failed", models.YtToTg, "track_id", trackID, "error", err)
			metrics.SyncErrors.WithLabelValues(string(models.YtToTg), "retry_failed").Inc()
			continue
		}
		synced++
	}

	entries, err := w.yt.GetPlaylistEntries(ctx)
	if err != nil {
		logError(w.logger, "playlist fetch failed", models.YtToTg, "error", err)
		return synced, nil
	}

	currentIDs := make([]string, 0, len(entries))
	byID := make(map[string]adapters.PlaylistEntry, len(entries))
	for _, e := range entries {
		currentIDs = append(currentIDs, e.ExternalID)
		byID[e.ExternalID] = e
	}

	prevIDs, err := w.state.Snapshot("yt")
	if err != nil {
		return synced, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var newIDs []string
	for _, id := range currentIDs {
		if !slices.Contains(prevIDs, id) {
			newIDs = append(newIDs, id)
		}
	}

	if len(newIDs) > 0 {
		logInfo(w.logger, "new tracks discovered", models.YtToTg, "count", len(newIDs))
		for _, videoID := range newIDs {
			var didSync bool
			err := unexpectedErrorGuard(func() error {
				var err error
				didSync, err = w.syncTrack(ctx, videoID, byID[videoID])
				return err
			})
			if err != nil {
				logError(w.logger, "discovery sync failed", models.YtToTg, "video_id", videoID, "error", err)
				metrics.SyncErrors.WithLabelValues(string(models.YtToTg), "sync_failed").Inc()
				continue
			}
			if didSync {
				synced++
			}
		}
	}

	if err := w.state.SetSnapshot("yt", currentIDs); err != nil {
		return synced, fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return synced, nil
}

// retryTrack re-attempts download+upload for a track that already has a
// yt_video_id recorded but is pending/retry_scheduled.
func (w *YtToTgWorker) retryTrack(ctx context.Context, t *models.Track) error {
	start := time.Now()
	logInfo(w.logger, "retrying", models.YtToTg, "track_id", t.ID, "video_id", *t.YtVideoID)

	t.Status = models.StatusSyncing
	if err := w.tracks.Update(t); err != nil {
		return fmt.Errorf("failed to update track status: %w", err)
	}

	localPath, err := w.dl.Download(ctx, *t.YtVideoID)
	if err != nil {
		metrics.DownloadTotal.WithLabelValues("yt", "failure").Inc()
		markFailed(w.tracks, w.events, models.YtToTg, t.ID, models.ReasonDownloadFailed, models.EventDownloadFailed,
			map[string]any{"video_id": *t.YtVideoID, "error": err.Error()}, "download_failed")
		return err
	}
	metrics.DownloadTotal.WithLabelValues("yt", "success").Inc()
	defer releaseLocalFile(localPath, w.dl.Cleanup)

	caption := fmt.Sprintf("Synced by Navaar | #%d", t.ID)
	messageID, err := w.chat.SendAudio(ctx, localPath, &t.Title, t.Artist, t.DurationSeconds, caption)
	if err != nil {
		metrics.TgUploadTotal.WithLabelValues("failure").Inc()
		markFailed(w.tracks, w.events, models.YtToTg, t.ID, models.ReasonUploadFailed, models.EventUploadFailed,
			map[string]any{"video_id": *t.YtVideoID, "error": err.Error()}, "upload_failed")
		return err
	}
	metrics.TgUploadTotal.WithLabelValues("success").Inc()

	if _, err := w.tracks.MarkSynced(t.ID, func(tt *models.Track) { tt.TgMessageID = &messageID }); err != nil {
		return fmt.Errorf("failed to mark synced: %w", err)
	}
	metrics.TracksSynced.WithLabelValues(string(models.YtToTg)).Inc()
	metrics.TrackSyncDuration.WithLabelValues(string(models.YtToTg)).Observe(time.Since(start).Seconds())
	logInfo(w.logger, "retry synced", models.YtToTg, "track_id", t.ID, "message_id", messageID)
	return nil
}

// syncTrack creates and transfers a newly discovered YT playlist entry.
func (w *YtToTgWorker) syncTrack(ctx context.Context, videoID string, entry adapters.PlaylistEntry) (bool, error) {
	start := time.Now()

	if existing, err := w.tracks.GetByYtVideoID(models.YtToTg, videoID); err == nil && existing != nil {
		if existing.Status == models.StatusSynced || existing.Status == models.StatusDuplicate {
			return false, nil
		}
	}

	title := entry.Title
	if title == "" {
		title = videoID
	}
	var artist *string
	if entry.Artist != "" {
		artist = &entry.Artist
	}
	var duration *int
	if entry.DurationSeconds > 0 {
		d := entry.DurationSeconds
		duration = &d
	}
	var setVideoID *string
	if entry.YtSetVideoID != "" {
		setVideoID = &entry.YtSetVideoID
	}

	method := models.MethodYtMetadata
	track := &models.Track{
		Direction: models.YtToTg,
		Status: models.StatusPending,
		Title: title,
		Artist: artist,
		YtVideoID: &videoID,
		YtSetVideoID: setVideoID,
		DurationSeconds: duration,
		IdentificationMethod: &method,
	}
	id, err := w.tracks.Create(track)
	if err != nil {
		return false, fmt.Errorf("failed to create track: %w", err)
	}
	track.ID = id
	metrics.TracksDiscovered.WithLabelValues(string(models.YtToTg)).Inc()
	d := models.YtToTg
	_ = w.events.Log(&id, models.EventTrackDiscovered, &d, map[string]any{"video_id": videoID})

	track.Status = models.StatusSyncing
	if err := w.tracks.Update(track); err != nil {
		return false, fmt.Errorf("failed to update track status: %w", err)
	}

	localPath, err := w.dl.Download(ctx, videoID)
	if err != nil {
		metrics.DownloadTotal.WithLabelValues("yt", "failure").Inc()
		markFailed(w.tracks, w.events, models.YtToTg, id, models.ReasonDownloadFailed, models.EventDownloadFailed,
			map[string]any{"video_id": videoID, "error": err.Error()}, "download_failed")
		return false, err
	}
	metrics.DownloadTotal.WithLabelValues("yt", "success").Inc()
	defer releaseLocalFile(localPath, w.dl.Cleanup)

	caption := fmt.Sprintf("Synced by Navaar | #%d", id)
	messageID, err := w.chat.SendAudio(ctx, localPath, &title, artist, duration, caption)
	if err != nil {
		metrics.TgUploadTotal.WithLabelValues("failure").Inc()
		markFailed(w.tracks, w.events, models.YtToTg, id, models.ReasonUploadFailed, models.EventUploadFailed,
			map[string]any{"video_id": videoID, "error": err.Error()}, "upload_failed")
		return false, err
	}
	metrics.TgUploadTotal.WithLabelValues("success").Inc()

	if _, err := w.tracks.MarkSynced(id, func(tt *models.Track) { tt.TgMessageID = &messageID }); err != nil {
		return false, fmt.Errorf("failed to mark synced: %w", err)
	}
	_ = w.events.Log(&id, models.EventTrackSynced, &d, map[string]any{"video_id": videoID, "message_id": messageID, "title": title})
	metrics.TracksSynced.WithLabelValues(string(models.YtToTg)).Inc()
	metrics.TrackSyncDuration.WithLabelValues(string(models.YtToTg)).Observe(time.Since(start).Seconds())
	logInfo(w.logger, "synced", models.YtToTg, "track_id", id, "video_id", videoID, "message_id", messageID)
	return true, nil
}
