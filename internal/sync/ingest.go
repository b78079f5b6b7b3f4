package sync

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/navaarsync/navaar/internal/adapters"
	"github.com/navaarsync/navaar/internal/metrics"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/store"
)

// TgIngestor turns new TG channel audio posts into tg_to_yt tracks. It
// is the only producer for that direction's queue — the Shape A worker
// only ever advances tracks that already exist.
//
// Tracks pending/created here feed tg_to_yt exclusively: tg_message_id
// and tg_file_unique_id both carry a UNIQUE constraint, so a TG post
// can only ever own one track record. Grounded on
// original_source/telegram/bot.py: _handle_channel_post — which is also
// the only place in the original that ever calls create_track for a
// tg-sourced direction; tg_to_sp has no automatic discovery path there
// either (see DESIGN.md).
type TgIngestor struct {
	tracks *store.TrackStore
	events *store.EventLog
	chat adapters.ChatAdapter
	logger *log.Logger
}

// NewTgIngestor builds the ingestor.
func NewTgIngestor(tracks *store.TrackStore, events *store.EventLog, chat adapters.ChatAdapter, logger *log.Logger) *TgIngestor {
	return &TgIngestor{tracks: tracks, events: events, chat: chat, logger: logger}
}

// Serve consumes chat.Posts(ctx) until ctx is canceled, implementing
// suture.Service so a panic or closed channel restarts ingestion rather
// than killing the whole process.
func (i *TgIngestor) Serve(ctx context.Context) error {
	for post := range i.chat.Posts(ctx) {
		if post.SenderIsSelf {
			continue
		}
		if err := i.ingest(post); err != nil {
			logError(i.logger, "failed to ingest tg post", models.TgToYt, "message_id", post.MessageID, "error", err)
		}
	}
	return nil
}

func (i *TgIngestor) ingest(post adapters.ChatPost) error {
	if existing, err := i.tracks.GetByTgFileUniqueID(post.AudioFileUniqueID); err == nil && existing != nil {
		return nil
	}
	if existing, err := i.tracks.GetByTgMessageID(post.MessageID); err == nil && existing != nil {
		return nil
	}

	title := "Unknown"
	if post.Title != nil && *post.Title != "" {
		title = *post.Title
	} else if post.FileName != nil && *post.FileName != "" {
		title = *post.FileName
	}

	messageID := post.MessageID
	fileID := post.AudioFileID
	fileUniqueID := post.AudioFileUniqueID

	track := &models.Track{
		Direction: models.TgToYt,
		Status: models.StatusPending,
		Title: title,
		Artist: post.Performer,
		TgMessageID: &messageID,
		TgFileID: &fileID,
		TgFileUniqueID: &fileUniqueID,
		DurationSeconds: post.DurationSeconds,
	}

	id, err := i.tracks.Create(track)
	if err != nil {
		return err
	}

	metrics.TracksDiscovered.WithLabelValues(string(models.TgToYt)).Inc()
	d := models.TgToYt
	_ = i.events.Log(&id, models.EventTrackDiscovered, &d, map[string]any{
		"message_id": post.MessageID,
		"title": title,
		"performer": post.Performer,
	})
	logInfo(i.logger, "track discovered", models.TgToYt, "track_id", id, "title", title)
	return nil
}
