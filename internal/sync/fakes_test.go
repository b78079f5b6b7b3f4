package sync

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/navaarsync/navaar/internal/adapters"
	"github.com/navaarsync/navaar/internal/shared"
)

func testLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

// fakeTarget is an in-memory adapters.TargetAdapter stand-in for
// exercising the C5 workers without a network call.
type fakeTarget struct {
	name string

	matches  map[string]*adapters.Match // keyed by "artist|title"
	playlist []string
	entries  []adapters.PlaylistEntry

	searchErr       error
	playlistErr     error
	addErr          error
	addedExternalID []string
}

func newFakeTarget(name string) *fakeTarget {
	return &fakeTarget{name: name, matches: make(map[string]*adapters.Match)}
}

func (f *fakeTarget) Name() string { return f.name }

func matchKey(artist *string, title string) string {
	a := ""
	if artist != nil {
		a = *artist
	}
	return a + "|" + title
}

func (f *fakeTarget) withMatch(artist *string, title string, m *adapters.Match) *fakeTarget {
	f.matches[matchKey(artist, title)] = m
	return f
}

func (f *fakeTarget) Search(ctx context.Context, artist *string, title string) (*adapters.Match, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.matches[matchKey(artist, title)], nil
}

func (f *fakeTarget) GetPlaylistTracks(ctx context.Context) ([]string, error) {
	if f.playlistErr != nil {
		return nil, f.playlistErr
	}
	return f.playlist, nil
}

func (f *fakeTarget) GetPlaylistEntries(ctx context.Context) ([]adapters.PlaylistEntry, error) {
	if f.playlistErr != nil {
		return nil, f.playlistErr
	}
	return f.entries, nil
}

func (f *fakeTarget) AddToPlaylist(ctx context.Context, externalID string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.addedExternalID = append(f.addedExternalID, externalID)
	f.playlist = append(f.playlist, externalID)
	return nil
}

func (f *fakeTarget) IsInPlaylist(ctx context.Context, externalID string, snapshot []string) (bool, error) {
	return slices.Contains(snapshot, externalID), nil
}

// fakeChat is a no-download, no-upload adapters.ChatAdapter stand-in.
type fakeChat struct {
	downloadPath string
	downloadErr  error
	sendErr      error
	nextMsgID    int64
	cleanedUp    []string
	posts        chan adapters.ChatPost

	onDownload func() // if set, invoked before DownloadFile returns
}

func newFakeChat() *fakeChat {
	return &fakeChat{nextMsgID: 1}
}

func (f *fakeChat) DownloadFile(ctx context.Context, fileID string) (string, error) {
	if f.onDownload != nil {
		f.onDownload()
	}
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	if f.downloadPath == "" {
		return "/tmp/fake.mp3", nil
	}
	return f.downloadPath, nil
}

func (f *fakeChat) SendAudio(ctx context.Context, path string, title, performer *string, duration *int, caption string) (int64, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	id := f.nextMsgID
	f.nextMsgID++
	return id, nil
}

func (f *fakeChat) Cleanup(path string) {
	f.cleanedUp = append(f.cleanedUp, path)
}

func (f *fakeChat) Posts(ctx context.Context) <-chan adapters.ChatPost {
	if f.posts == nil {
		ch := make(chan adapters.ChatPost)
		close(ch)
		return ch
	}
	return f.posts
}

// fakeDownloader is an in-memory adapters.Downloader stand-in.
type fakeDownloader struct {
	downloadErr error
	cleanedUp   []string
}

func (f *fakeDownloader) Download(ctx context.Context, externalID string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return "/tmp/" + externalID + ".mp3", nil
}

func (f *fakeDownloader) Cleanup(path string) {
	f.cleanedUp = append(f.cleanedUp, path)
}
