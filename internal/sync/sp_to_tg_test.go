package sync

import (
	"context"
	"testing"

	"github.com/navaarsync/navaar/internal/adapters"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/shared"
	"github.com/navaarsync/navaar/internal/store"
)

func newSpToTgWorkerFixture(t *testing.T) (*SpToTgWorker, *store.TrackStore, *store.StateStore, *fakeTarget, *fakeTarget, *fakeDownloader) {
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
	sp := newFakeTarget("spotify")
	yt := newFakeTarget("youtube")
	dl := &fakeDownloader{}

	worker := NewSpToTgWorker(tracks, state, events, chat, sp, yt, dl, testLogger())
	return worker, tracks, state, sp, yt, dl
}

// TestSpToTgWorker_NewTrackFansOutToSpToYt covers the fan-out rule: a new
// sp_to_tg discovery also creates a companion sp_to_yt track.
func TestSpToTgWorker_NewTrackFansOutToSpToYt(t *testing.T) {
	worker, tracks, _, sp, yt, _ := newSpToTgWorkerFixture(t)
	sp.entries = []adapters.PlaylistEntry{{ExternalID: "sp1", Title: "Song", Artist: "Artist"}}
	yt.withMatch(strPtrSpTg("Artist"), "Song", &adapters.Match{ExternalID: "yt1"})

	processed, err := worker.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 sp_to_tg sync, got %d", processed)
	}

	spToTg, err := tracks.GetBySpTrackID(models.SpToTg, "sp1")
	if err != nil {
		t.Fatalf("failed to find sp_to_tg track: %v", err)
	}
	if spToTg.Status != models.StatusSynced {
		t.Errorf("expected sp_to_tg synced, got %s", spToTg.Status)
	}

	spToYt, err := tracks.GetBySpTrackID(models.SpToYt, "sp1")
	if err != nil {
		t.Fatalf("expected a fanned-out sp_to_yt track, got error: %v", err)
	}
	if spToYt.Status != models.StatusPending {
		t.Errorf("expected fanned-out track pending (for the target-push worker to pick up), got %s", spToYt.Status)
	}
}

// TestSpToTgWorker_FanOutSkippedWhenCompanionExists covers the "unless a
// prior track already owns that source id" guard.
func TestSpToTgWorker_FanOutSkippedWhenCompanionExists(t *testing.T) {
	worker, tracks, _, sp, yt, _ := newSpToTgWorkerFixture(t)

	existingSpTrackID := "sp1"
	if _, err := tracks.Create(&models.Track{Direction: models.SpToYt, Title: "Song", SpTrackID: &existingSpTrackID}); err != nil {
		t.Fatalf("failed to seed companion track: %v", err)
	}

	sp.entries = []adapters.PlaylistEntry{{ExternalID: "sp1", Title: "Song"}}
	yt.withMatch(nil, "Song", &adapters.Match{ExternalID: "yt1"})

	if _, err := worker.Cycle(context.Background()); err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}

	recent, err := tracks.GetRecent(10, models.SpToYt)
	if err != nil {
		t.Fatalf("failed to get recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected exactly 1 sp_to_yt track (no duplicate fan-out), got %d", len(recent))
	}
}

// TestSpToTgWorker_NoYtMatchFailsWithReason covers a new sp_to_tg track
// for which no downloadable YT match can be found.
func TestSpToTgWorker_NoYtMatchFailsWithReason(t *testing.T) {
	worker, tracks, _, sp, _, _ := newSpToTgWorkerFixture(t)
	sp.entries = []adapters.PlaylistEntry{{ExternalID: "sp1", Title: "Unfindable"}}

	processed, err := worker.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 synced, got %d", processed)
	}

	got, err := tracks.GetBySpTrackID(models.SpToTg, "sp1")
	if err != nil {
		t.Fatalf("failed to find track: %v", err)
	}
	if got.Status != models.StatusFailed {
		t.Fatalf("expected status failed, got %s", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != string(models.ReasonNoYtMatchForDL) {
		t.Errorf("expected failure_reason no_yt_match_for_download, got %v", got.FailureReason)
	}
}

// TestSpToTgWorker_CrossServiceDedupDoesNotCountAsProcessed guards the
// fix to syncTrack's return value: a rediscovered, already-synced track
// must not inflate the cycle's processed count.
func TestSpToTgWorker_CrossServiceDedupDoesNotCountAsProcessed(t *testing.T) {
	worker, tracks, _, sp, _, _ := newSpToTgWorkerFixture(t)

	spTrackID := "sp1"
	existing := &models.Track{Direction: models.SpToTg, Title: "Song", SpTrackID: &spTrackID}
	id, err := tracks.Create(existing)
	if err != nil {
		t.Fatalf("failed to seed track: %v", err)
	}
	if _, err := tracks.MarkSynced(id, nil); err != nil {
		t.Fatalf("failed to mark existing track synced: %v", err)
	}

	sp.entries = []adapters.PlaylistEntry{{ExternalID: "sp1", Title: "Song"}}

	processed, err := worker.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected 0 processed for a cross-service dedup hit, got %d", processed)
	}
}

func strPtrSpTg(s string) *string { return &s }
