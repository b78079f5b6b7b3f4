package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Downloader is the audio downloader capability contract, used by
// the yt_to_tg and sp_to_tg direction workers to pull audio for a track
// already identified in the source service.
type Downloader interface {
	Download(ctx context.Context, externalID string) (localPath string, err error)
	Cleanup(path string)
}

// YtDlpDownloader shells out to the yt-dlp binary to fetch audio for a
// YT video id. This is the one place the sync core touches an external
// process rather than an HTTP API, because no stable download API exists
// for YT Music.
//
// Out-of-pack dependency (see the full design): the yt-dlp binary via os/exec.
type YtDlpDownloader struct {
	binaryPath string
	outputDir string
	logger *log.Logger
}

// NewYtDlpDownloader builds a downloader that shells out to binaryPath
// (typically "yt-dlp" resolved via PATH) and writes files under outputDir.
func NewYtDlpDownloader(binaryPath, outputDir string, logger *log.Logger) *YtDlpDownloader {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &YtDlpDownloader{binaryPath: binaryPath, outputDir: outputDir, logger: logger}
}

// Download fetches the best-available audio for a YT video id as an mp3,
// retrying transient failures (download_failed on exhaustion).
func (d *YtDlpDownloader) Download(ctx context.Context, externalID string) (string, error) {
	var localPath string
	err := WithRetry(ctx, func() error {
		outTemplate := filepath.Join(d.outputDir, externalID+".%(ext)s")
		videoURL := "https://www.youtube.com/watch?v=" + externalID

		cmd := exec.CommandContext(ctx, d.binaryPath,
			"--extract-audio",
			"--audio-format", "mp3",
			"--no-playlist",
			"--output", outTemplate,
			videoURL,
		)

		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("yt-dlp failed: %w (%s)", err, string(out))
		}

		localPath = filepath.Join(d.outputDir, externalID+".mp3")
		if _, statErr := os.Stat(localPath); statErr != nil {
			return fmt.Errorf("yt-dlp reported success but output is missing: %w", statErr)
		}
		return nil
	})
	return localPath, err
}

// Cleanup removes a downloaded file, logging rather than failing the
// caller — a leftover temp file is not worth failing a sync cycle over.
func (d *YtDlpDownloader) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("failed to clean up downloaded file", "path", path, "error", err)
	}
}

// downloadURL streams an HTTP GET response body to dest, used by the TG
// adapter to pull file contents once the Bot API has resolved a file id
// to a direct link.
func downloadURL(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write downloaded file: %w", err)
	}
	return nil
}
