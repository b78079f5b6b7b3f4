package sync

import (
	"context"
	"testing"

	"github.com/navaarsync/navaar/internal/adapters"
	"github.com/navaarsync/navaar/internal/models"
)

func TestTgIngestor_CreatesPendingTgToYtTrack(t *testing.T) {
	tracks, events := newTestStores(t)
	chat := newFakeChat()
	chat.posts = make(chan adapters.ChatPost, 1)

	title := "Some Title"
	performer := "Some Artist"
	chat.posts <- adapters.ChatPost{
		MessageID:         100,
		AudioFileID:       "file1",
		AudioFileUniqueID: "unique1",
		Title:             &title,
		Performer:         &performer,
	}
	close(chat.posts)

	ingestor := NewTgIngestor(tracks, events, chat, testLogger())
	if err := ingestor.Serve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := tracks.GetByTgFileUniqueID("unique1")
	if err != nil {
		t.Fatalf("failed to find ingested track: %v", err)
	}
	if got.Direction != models.TgToYt {
		t.Errorf("expected direction tg_to_yt, got %s", got.Direction)
	}
	if got.Status != models.StatusPending {
		t.Errorf("expected status pending, got %s", got.Status)
	}
	if got.Title != title {
		t.Errorf("expected title %q, got %q", title, got.Title)
	}
	if got.Artist == nil || *got.Artist != performer {
		t.Errorf("expected artist %q, got %v", performer, got.Artist)
	}
}

// TestTgIngestor_IgnoresSelfPosts covers the callback contract: posts
// where sender_is_self is true must never become tracks.
func TestTgIngestor_IgnoresSelfPosts(t *testing.T) {
	tracks, events := newTestStores(t)
	chat := newFakeChat()
	chat.posts = make(chan adapters.ChatPost, 1)
	chat.posts <- adapters.ChatPost{
		MessageID:         200,
		AudioFileID:       "file2",
		AudioFileUniqueID: "unique2",
		SenderIsSelf:      true,
	}
	close(chat.posts)

	ingestor := NewTgIngestor(tracks, events, chat, testLogger())
	if err := ingestor.Serve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := tracks.GetByTgFileUniqueID("unique2"); err == nil {
		t.Fatal("expected no track to be created for a self-authored post")
	}
}

// TestTgIngestor_DedupsByFileUniqueID covers §3.1: tg_file_unique_id is
// the sole dedup mechanism for TG-originated items.
func TestTgIngestor_DedupsByFileUniqueID(t *testing.T) {
	tracks, events := newTestStores(t)
	chat := newFakeChat()
	chat.posts = make(chan adapters.ChatPost, 2)
	chat.posts <- adapters.ChatPost{MessageID: 1, AudioFileID: "f", AudioFileUniqueID: "dup-unique"}
	chat.posts <- adapters.ChatPost{MessageID: 2, AudioFileID: "f", AudioFileUniqueID: "dup-unique"}
	close(chat.posts)

	ingestor := NewTgIngestor(tracks, events, chat, testLogger())
	if err := ingestor.Serve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recent, err := tracks.GetRecent(10, models.TgToYt)
	if err != nil {
		t.Fatalf("failed to get recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected exactly 1 track created for 2 posts with the same file_unique_id, got %d", len(recent))
	}
}
