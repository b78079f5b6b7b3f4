package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/charmbracelet/log"

	"github.com/navaarsync/navaar/internal/adapters"
	"github.com/navaarsync/navaar/internal/identifier"
	"github.com/navaarsync/navaar/internal/metrics"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/store"
)

// TargetPushWorker implements the "target-push" shape: identify (TG
// sources only), search the target, skip if already present, else add and
// mark synced. One instance covers tg_to_yt, tg_to_sp, yt_to_sp and
// sp_to_yt — the four directions whose original modules differ only in
// which adapters they hold and which no-match vocabulary they log.
//
// Grounded on original_source/sync/{tg_to_yt,tg_to_sp,yt_to_sp,sp_to_yt}.py.
type TargetPushWorker struct {
	direction models.Direction
	tracks *store.TrackStore
	events *store.EventLog
	target adapters.TargetAdapter
	chat adapters.ChatAdapter // non-nil only for tg_to_yt/tg_to_sp

	noMatch noMatchVocabulary
	searchTotal *prometheus.CounterVec
	searchDuration prometheus.Histogram

	logger *log.Logger
}

// NewTargetPushWorker builds a worker for direction, wiring the no-match
// vocabulary and search metrics to whichever target service adapter is
// given ("youtube" or "spotify"). chat is only needed (and only used) when
// direction sources from TG.
func NewTargetPushWorker(direction models.Direction, tracks *store.TrackStore, events *store.EventLog, target adapters.TargetAdapter, chat adapters.ChatAdapter, logger *log.Logger) *TargetPushWorker {
	w := &TargetPushWorker{
		direction: direction,
		tracks: tracks,
		events: events,
		target: target,
		chat: chat,
		logger: logger,
	}
	switch target.Name() {
	case "youtube":
		w.noMatch = noMatchVocabulary{reason: models.ReasonNoYtMatch, event: models.EventNoYtMatch, errorType: "no_yt_match"}
		w.searchTotal = metrics.YtSearchTotal
		w.searchDuration = metrics.YtSearchDuration
	case "spotify":
		w.noMatch = noMatchVocabulary{reason: models.ReasonNoSpMatch, event: models.EventNoSpMatch, errorType: "no_sp_match"}
		w.searchTotal = metrics.SpSearchTotal
		w.searchDuration = metrics.SpSearchDuration
	}
	return w
}

func (w *TargetPushWorker) Direction() models.Direction { return w.direction }

// Cycle processes every pending/retry_scheduled track for this direction
// against a single playlist snapshot fetched up front, so a batch of N
// tracks costs one playlist read instead of N.
func (w *TargetPushWorker) Cycle(ctx context.Context) (int, error) {
	pending, err := w.tracks.GetPending(w.direction)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending tracks: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	logInfo(w.logger, "processing pending tracks", w.direction, "count", len(pending))

	snapshot, err := w.target.GetPlaylistTracks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch target playlist: %w", err)
	}

	processed := 0
	for _, t := range pending {
		trackID := t.ID
		err := unexpectedErrorGuard(func() error {
			return w.processTrack(ctx, t, snapshot)
		})
		if err != nil {
			logError(w.logger, "track processing failed", w.direction, "track_id", trackID, "error", err)
			markFailed(w.tracks, w.events, w.direction, trackID, models.ReasonUnexpectedError, models.EventSyncFailed,
				map[string]any{"reason": "unexpected_error"}, "unexpected")
			continue
		}
		if got, err := w.tracks.Get(trackID); err == nil && got.Status == models.StatusSynced {
			processed++
		}
	}
	return processed, nil
}

func (w *TargetPushWorker) processTrack(ctx context.Context, t *models.Track, snapshot []string) error {
	start := time.Now()

	if w.direction.Source() == "tg" {
		if err := w.identify(ctx, t); err != nil {
			return fmt.Errorf("failed to identify track: %w", err)
		}
	} else {
		t.Status = models.StatusSearching
		if err := w.tracks.Update(t); err != nil {
			return fmt.Errorf("failed to update track status: %w", err)
		}
	}

	searchStart := time.Now()
	match, err := w.target.Search(ctx, t.Artist, t.Title)
	w.searchDuration.Observe(time.Since(searchStart).Seconds())
	if err != nil {
		return fmt.Errorf("target search failed: %w", err)
	}

	if match == nil {
		w.searchTotal.WithLabelValues("not_found").Inc()
		markFailed(w.tracks, w.events, w.direction, t.ID, w.noMatch.reason, w.noMatch.event,
			map[string]any{"artist": t.Artist, "title": t.Title}, w.noMatch.errorType)
		return nil
	}
	w.searchTotal.WithLabelValues("found").Inc()

	externalID := match.ExternalID
	setHandle := func(tt *models.Track) {
		id := externalID
		switch w.direction.Target() {
		case "yt":
			tt.YtVideoID = &id
		case "sp":
			tt.SpTrackID = &id
		}
	}

	dup, err := w.target.IsInPlaylist(ctx, externalID, snapshot)
	if err != nil {
		return fmt.Errorf("duplicate check failed: %w", err)
	}
	if dup {
		if _, err := w.tracks.MarkDuplicate(t.ID, setHandle); err != nil {
			return fmt.Errorf("failed to mark duplicate: %w", err)
		}
		d := w.direction
		_ = w.events.Log(&t.ID, models.EventDuplicateSkipped, &d, map[string]any{"external_id": externalID})
		metrics.DuplicatesSkipped.WithLabelValues(string(w.direction)).Inc()
		logInfo(w.logger, "duplicate skipped", w.direction, "track_id", t.ID, "external_id", externalID)
		return nil
	}

	t.Status = models.StatusSyncing
	if err := w.tracks.Update(t); err != nil {
		return fmt.Errorf("failed to update track status: %w", err)
	}
	if err := w.target.AddToPlaylist(ctx, externalID); err != nil {
		return fmt.Errorf("failed to add to playlist: %w", err)
	}

	if _, err := w.tracks.MarkSynced(t.ID, setHandle); err != nil {
		return fmt.Errorf("failed to mark synced: %w", err)
	}
	d := w.direction
	_ = w.events.Log(&t.ID, models.EventTrackSynced, &d, map[string]any{"external_id": externalID, "title": match.Title})
	metrics.TracksSynced.WithLabelValues(string(w.direction)).Inc()
	metrics.TrackSyncDuration.WithLabelValues(string(w.direction)).Observe(time.Since(start).Seconds())
	logInfo(w.logger, "track synced", w.direction, "track_id", t.ID, "external_id", externalID, "title", match.Title)
	return nil
}

// identify resolves (artist, title) for a TG-sourced track by downloading
// its file and running it through the C4 pipeline, falling back to the
// metadata already on the track when nothing better is found.
func (w *TargetPushWorker) identify(ctx context.Context, t *models.Track) error {
	t.Status = models.StatusIdentifying
	if err := w.tracks.Update(t); err != nil {
		return fmt.Errorf("failed to update track status: %w", err)
	}

	var localPath string
	if t.TgFileID != nil && w.chat != nil {
		path, err := w.chat.DownloadFile(ctx, *t.TgFileID)
		if err != nil {
			return fmt.Errorf("failed to download file: %w", err)
		}
		localPath = path
	}
	defer releaseLocalFile(localPath, func(p string) {
		if w.chat != nil {
			w.chat.Cleanup(p)
		}
	})

	in := identifier.Input{
		LocalFilePath: localPath,
		ProvidedTitle: t.Title,
		ProvidedMethod: models.MethodTgMetadata,
		Filename: localPath,
	}
	if t.Artist != nil {
		in.ProvidedArtist = *t.Artist
	}

	if result, ok := identifier.Identify(in); ok {
		if result.Artist != nil {
			t.Artist = result.Artist
		}
		t.Title = result.Title
		method := result.Method
		t.IdentificationMethod = &method
		metrics.IdentificationTotal.WithLabelValues(string(result.Method)).Inc()
	}

	t.Status = models.StatusSearching
	return w.tracks.Update(t)
}
