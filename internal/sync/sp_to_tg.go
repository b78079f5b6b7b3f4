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

// SpToTgWorker implements the "source-pull-and-transfer" shape for
// sp_to_tg: retry already-discovered tracks, diff the Spotify playlist
// against the last snapshot, and for every new track both transfer it to
// TG and fan out a companion sp_to_yt track.
//
// Since SP has no audio download API, both the retry and discovery paths
// resolve a YT match first to obtain downloadable audio.
//
// Grounded on original_source/sync/sp_to_tg.py.
type SpToTgWorker struct {
	tracks *store.TrackStore
	state *store.StateStore
	events *store.EventLog
	chat adapters.ChatAdapter
	sp adapters.TargetAdapter
	yt adapters.TargetAdapter
	dl adapters.Downloader
	logger *log.Logger
}

// NewSpToTgWorker builds the sp_to_tg worker. sp is the source-side
// playlist reader; yt is used only to resolve a downloadable match.
func NewSpToTgWorker(tracks *store.TrackStore, state *store.StateStore, events *store.EventLog, chat adapters.ChatAdapter, sp, yt adapters.TargetAdapter, dl adapters.Downloader, logger *log.Logger) *SpToTgWorker {
	return &SpToTgWorker{tracks: tracks, state: state, events: events, chat: chat, sp: sp, yt: yt, dl: dl, logger: logger}
}

func (w *SpToTgWorker) Direction() models.Direction { return models.SpToTg }

func (w *SpToTgWorker) Cycle(ctx context.Context) (int, error) {
	synced := 0

	retries, err := w.tracks.GetPending(models.SpToTg)
	if err != nil {
		return synced, fmt.Errorf("failed to load pending tracks: %w", err)
	}
	for _, t := range retries {
		if t.SpTrackID == nil {
			continue
		}
		trackID := t.ID
		err := unexpectedErrorGuard(func() error { return w.retryTrack(ctx, t) })
		if err != nil {
			logError(w.logger, "retry failed", models.SpToTg, "track_id", trackID, "error", err)
			metrics.SyncErrors.WithLabelValues(string(models.SpToTg), "retry_failed").Inc()
			continue
		}
		synced++
	}

	entries, err := w.sp.GetPlaylistEntries(ctx)
	if err != nil {
		logError(w.logger, "playlist fetch failed", models.SpToTg, "error", err)
		return synced, nil
	}

	currentIDs := make([]string, 0, len(entries))
	byID := make(map[string]adapters.PlaylistEntry, len(entries))
	for _, e := range entries {
		currentIDs = append(currentIDs, e.ExternalID)
		byID[e.ExternalID] = e
	}

	prevIDs, err := w.state.Snapshot("sp")
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
		logInfo(w.logger, "new tracks discovered", models.SpToTg, "count", len(newIDs))
		for _, spTrackID := range newIDs {
			var didSync bool
			err := unexpectedErrorGuard(func() error {
				var err error
				didSync, err = w.syncTrack(ctx, spTrackID, byID[spTrackID])
				return err
			})
			if err != nil {
				logError(w.logger, "discovery sync failed", models.SpToTg, "sp_track_id", spTrackID, "error", err)
				metrics.SyncErrors.WithLabelValues(string(models.SpToTg), "sync_failed").Inc()
				continue
			}
			if didSync {
				synced++
			}
		}
	}

	if err := w.state.SetSnapshot("sp", currentIDs); err != nil {
		return synced, fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return synced, nil
}

func (w *SpToTgWorker) retryTrack(ctx context.Context, t *models.Track) error {
	start := time.Now()
	logInfo(w.logger, "retrying", models.SpToTg, "track_id", t.ID, "sp_track_id", *t.SpTrackID)

	t.Status = models.StatusSyncing
	if err := w.tracks.Update(t); err != nil {
		return fmt.Errorf("failed to update track status: %w", err)
	}

	videoID, err := w.resolveYtMatch(ctx, t.Artist, t.Title)
	if err != nil {
		markFailed(w.tracks, w.events, models.SpToTg, t.ID, models.ReasonNoYtMatchForDL, models.EventNoYtMatchForDL,
			map[string]any{"sp_track_id": *t.SpTrackID}, "no_yt_match")
		return err
	}

	return w.downloadAndUpload(ctx, t.ID, videoID, t.Title, t.Artist, t.DurationSeconds, start, models.SpToTg)
}

// syncTrack creates and transfers a newly discovered SP playlist entry,
// fanning out a companion sp_to_yt record.
func (w *SpToTgWorker) syncTrack(ctx context.Context, spTrackID string, entry adapters.PlaylistEntry) (bool, error) {
	start := time.Now()

	if existing, err := w.tracks.GetBySpTrackID(models.SpToTg, spTrackID); err == nil && existing != nil {
		if existing.Status == models.StatusSynced || existing.Status == models.StatusDuplicate {
			return false, nil
		}
	}

	name := entry.Title
	if name == "" {
		name = spTrackID
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

	method := models.MethodSpMetadata
	track := &models.Track{
		Direction: models.SpToTg,
		Status: models.StatusPending,
		Title: name,
		Artist: artist,
		SpTrackID: &spTrackID,
		DurationSeconds: duration,
		IdentificationMethod: &method,
	}
	id, err := w.tracks.Create(track)
	if err != nil {
		return false, fmt.Errorf("failed to create track: %w", err)
	}
	track.ID = id
	metrics.TracksDiscovered.WithLabelValues(string(models.SpToTg)).Inc()
	spToTg := models.SpToTg
	_ = w.events.Log(&id, models.EventTrackDiscovered, &spToTg, map[string]any{"sp_track_id": spTrackID})

	// Fan-out: a companion sp_to_yt track, unless another track already
	// owns this sp_track_id (Open Question decision #3 in DESIGN.md).
	if existingYt, err := w.tracks.GetBySpTrackID(models.SpToYt, spTrackID); err != nil || existingYt == nil {
		fanout := &models.Track{
			Direction: models.SpToYt,
			Status: models.StatusPending,
			Title: name,
			Artist: artist,
			SpTrackID: &spTrackID,
			DurationSeconds: duration,
			IdentificationMethod: &method,
		}
		if fanoutID, err := w.tracks.Create(fanout); err != nil {
			logError(w.logger, "fan-out create failed", models.SpToTg, "sp_track_id", spTrackID, "error", err)
		} else {
			metrics.TracksDiscovered.WithLabelValues(string(models.SpToYt)).Inc()
			spToYt := models.SpToYt
			_ = w.events.Log(&fanoutID, models.EventTrackDiscovered, &spToYt, map[string]any{"sp_track_id": spTrackID})
		}
	}

	videoID, err := w.resolveYtMatch(ctx, artist, name)
	if err != nil {
		markFailed(w.tracks, w.events, models.SpToTg, id, models.ReasonNoYtMatchForDL, models.EventNoYtMatchForDL,
			map[string]any{"sp_track_id": spTrackID, "name": name}, "no_yt_match")
		return false, err
	}

	track.YtVideoID = &videoID
	track.Status = models.StatusSyncing
	if err := w.tracks.Update(track); err != nil {
		return false, fmt.Errorf("failed to update track status: %w", err)
	}

	if err := w.downloadAndUpload(ctx, id, videoID, name, artist, duration, start, models.SpToTg); err != nil {
		return false, err
	}
	return true, nil
}

func (w *SpToTgWorker) resolveYtMatch(ctx context.Context, artist *string, title string) (string, error) {
	match, err := w.yt.Search(ctx, artist, title)
	if err != nil {
		return "", fmt.Errorf("yt search failed: %w", err)
	}
	if match == nil {
		return "", fmt.Errorf("no yt match for %q", title)
	}
	return match.ExternalID, nil
}

func (w *SpToTgWorker) downloadAndUpload(ctx context.Context, trackID int64, videoID, title string, artist *string, duration *int, start time.Time, direction models.Direction) error {
	localPath, err := w.dl.Download(ctx, videoID)
	if err != nil {
		metrics.DownloadTotal.WithLabelValues("yt", "failure").Inc()
		markFailed(w.tracks, w.events, direction, trackID, models.ReasonDownloadFailed, models.EventDownloadFailed,
			map[string]any{"video_id": videoID, "error": err.Error()}, "download_failed")
		return err
	}
	metrics.DownloadTotal.WithLabelValues("yt", "success").Inc()
	defer releaseLocalFile(localPath, w.dl.Cleanup)

	caption := fmt.Sprintf("Synced by Navaar | #%d", trackID)
	messageID, err := w.chat.SendAudio(ctx, localPath, &title, artist, duration, caption)
	if err != nil {
		metrics.TgUploadTotal.WithLabelValues("failure").Inc()
		markFailed(w.tracks, w.events, direction, trackID, models.ReasonUploadFailed, models.EventUploadFailed,
			map[string]any{"video_id": videoID, "error": err.Error()}, "upload_failed")
		return err
	}
	metrics.TgUploadTotal.WithLabelValues("success").Inc()

	if _, err := w.tracks.MarkSynced(trackID, func(tt *models.Track) { tt.TgMessageID = &messageID }); err != nil {
		return fmt.Errorf("failed to mark synced: %w", err)
	}
	d := direction
	_ = w.events.Log(&trackID, models.EventTrackSynced, &d, map[string]any{"video_id": videoID, "message_id": messageID, "title": title})
	metrics.TracksSynced.WithLabelValues(string(direction)).Inc()
	metrics.TrackSyncDuration.WithLabelValues(string(direction)).Observe(time.Since(start).Seconds())
	logInfo(w.logger, "synced", direction, "track_id", trackID, "video_id", videoID, "message_id", messageID)
	return nil
}
