package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadURL(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("audio bytes"))
		}))
		defer server.Close()

		dest := filepath.Join(t.TempDir(), "out.mp3")
		if err := downloadURL(context.Background(), server.URL, dest); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("expected file to exist: %v", err)
		}
		if string(content) != "audio bytes" {
			t.Errorf("unexpected content: %s", content)
		}
	})

	t.Run("Non 2xx Status Is An Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		dest := filepath.Join(t.TempDir(), "out.mp3")
		if err := downloadURL(context.Background(), server.URL, dest); err == nil {
			t.Fatal("expected error for 404 response")
		}
	})
}

func TestYtDlpDownloaderCleanup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	d := NewYtDlpDownloader("yt-dlp", dir, nil)
	d.Cleanup(path)

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file to be removed, stat err: %v", err)
	}
}

func TestYtDlpDownloaderCleanupIgnoresMissingFile(t *testing.T) {
	d := NewYtDlpDownloader("yt-dlp", t.TempDir(), nil)
	d.Cleanup(filepath.Join(t.TempDir(), "missing.mp3"))
}
