package sync

import (
	"context"
	"testing"

	"github.com/navaarsync/navaar/internal/adapters"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/shared"
	"github.com/navaarsync/navaar/internal/store"
)

func newTestStateStore(t *testing.T) *store.StateStore {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return store.NewStateStore(db)
}

// newYtToTgWorkerFixture wires a worker with its own tracks/state stores
// sharing one database, since the snapshot and the track rows must agree.
func newYtToTgWorkerFixture(t *testing.T) (*YtToTgWorker, *store.TrackStore, *store.StateStore, *fakeTarget, *fakeChat, *fakeDownloader) {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	tracks := store.NewTrackStore(db)
	state := store.NewStateStore(db)
	events := store.NewEventLog(db)
	chat := newFakeChat()
	yt := newFakeTarget("youtube")
	dl := &fakeDownloader{}

	worker := NewYtToTgWorker(tracks, state, events, chat, yt, dl, testLogger())
	return worker, tracks, state, yt, chat, dl
}

// TestYtToTgWorker_FirstRunMirror covers scenario 3: with no snapshot,
// every item in the current playlist is new, and the snapshot after the
// cycle equals the playlist fetched at cycle start.
func TestYtToTgWorker_FirstRunMirror(t *testing.T) {
	worker, tracks, state, yt, _, _ := newYtToTgWorkerFixture(t)
	yt.entries = []adapters.PlaylistEntry{
		{ExternalID: "v1", Title: "Song One"},
		{ExternalID: "v2", Title: "Song Two"},
	}

	processed, err := worker.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 tracks synced, got %d", processed)
	}

	for _, vid := range []string{"v1", "v2"} {
		got, err := tracks.GetByYtVideoID(models.YtToTg, vid)
		if err != nil {
			t.Fatalf("failed to find track for %s: %v", vid, err)
		}
		if got.Status != models.StatusSynced {
			t.Errorf("expected %s synced, got %s", vid, got.Status)
		}
		if got.TgMessageID == nil {
			t.Errorf("expected %s to have a tg_message_id set", vid)
		}
	}

	snapshot, err := state.Snapshot("yt")
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if len(snapshot) != 2 || snapshot[0] != "v1" || snapshot[1] != "v2" {
		t.Errorf("expected snapshot [v1 v2] preserving source order, got %v", snapshot)
	}
}

// TestYtToTgWorker_IdempotentReplay covers the "idempotent replay" law:
// running a second cycle against an unchanged playlist creates no new
// tracks.
func TestYtToTgWorker_IdempotentReplay(t *testing.T) {
	worker, tracks, _, yt, _, _ := newYtToTgWorkerFixture(t)
	yt.entries = []adapters.PlaylistEntry{{ExternalID: "v1", Title: "Song One"}}

	if _, err := worker.Cycle(context.Background()); err != nil {
		t.Fatalf("unexpected first cycle error: %v", err)
	}
	processed, err := worker.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected second cycle error: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 new tracks on replay, got %d", processed)
	}

	recent, err := tracks.GetRecent(10, models.YtToTg)
	if err != nil {
		t.Fatalf("failed to get recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected exactly 1 track across both cycles, got %d", len(recent))
	}
}

// TestYtToTgWorker_NoNewTracks covers scenario 1: snapshot already
// matches the source playlist, so the cycle returns 0 and never downloads.
func TestYtToTgWorker_NoNewTracks(t *testing.T) {
	worker, _, state, yt, _, dl := newYtToTgWorkerFixture(t)
	if err := state.SetSnapshot("yt", []string{"v1", "v2"}); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}
	yt.entries = []adapters.PlaylistEntry{{ExternalID: "v1"}, {ExternalID: "v2"}}

	processed, err := worker.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 processed, got %d", processed)
	}
	if len(dl.cleanedUp) != 0 {
		t.Errorf("expected no downloads invoked, but cleanup was called for %v", dl.cleanedUp)
	}
}

// TestYtToTgWorker_DownloadFailure covers scenario 4: a downloader error
// on a newly discovered track marks it failed with download_failed.
func TestYtToTgWorker_DownloadFailure(t *testing.T) {
	worker, tracks, _, yt, _, dl := newYtToTgWorkerFixture(t)
	yt.entries = []adapters.PlaylistEntry{{ExternalID: "v1", Title: "Song"}}
	dl.downloadErr = errAlwaysFails

	processed, err := worker.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 synced, got %d", processed)
	}

	got, err := tracks.GetByYtVideoID(models.YtToTg, "v1")
	if err != nil {
		t.Fatalf("failed to find track: %v", err)
	}
	if got.Status != models.StatusFailed {
		t.Fatalf("expected status failed, got %s", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != string(models.ReasonDownloadFailed) {
		t.Errorf("expected failure_reason download_failed, got %v", got.FailureReason)
	}
}

// TestYtToTgWorker_CrossServiceDedupSkipsSyncedOrDuplicate covers the
// "cross-service dedup" law: a track already synced/duplicate for this
// external id is never recreated on rediscovery.
func TestYtToTgWorker_CrossServiceDedupSkipsSyncedOrDuplicate(t *testing.T) {
	worker, tracks, state, yt, _, _ := newYtToTgWorkerFixture(t)

	videoID := "v1"
	existing := &models.Track{Direction: models.YtToTg, Title: "Song", YtVideoID: &videoID}
	id, err := tracks.Create(existing)
	if err != nil {
		t.Fatalf("failed to seed existing track: %v", err)
	}
	if _, err := tracks.MarkSynced(id, nil); err != nil {
		t.Fatalf("failed to mark existing track synced: %v", err)
	}

	// Snapshot doesn't know about v1 yet, so discovery treats it as new —
	// the cross-service dedup gate must still refuse to recreate it.
	yt.entries = []adapters.PlaylistEntry{{ExternalID: "v1", Title: "Song"}}

	if _, err := worker.Cycle(context.Background()); err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}

	recent, err := tracks.GetRecent(10, models.YtToTg)
	if err != nil {
		t.Fatalf("failed to get recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected exactly 1 track (no duplicate created), got %d", len(recent))
	}

	snapshot, err := state.Snapshot("yt")
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0] != "v1" {
		t.Errorf("expected snapshot to still be written after processing, got %v", snapshot)
	}
}
