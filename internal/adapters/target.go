package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/charmbracelet/log"
)

// Match is a candidate track returned by a target service's search, ready
// to be compared against the pending track's title/artist.
type Match struct {
	ExternalID string
	Title string
	Artist string
	DurationSeconds int
}

// PlaylistEntry is one item of a full playlist listing, carrying enough
// metadata for a pull-based direction to create a track
// record without a further lookup.
type PlaylistEntry struct {
	ExternalID string
	Title string
	Artist string
	DurationSeconds int
	YtSetVideoID string // only populated by YouTubeAdapter
}

// TargetAdapter is the target-service adapter contract, implemented
// once each for YT Music and Spotify. "Target" here means whichever
// service a direction is syncing INTO — the same adapter also serves as
// the "source" for directions that pull FROM it (yt_to_tg, sp_to_tg).
type TargetAdapter interface {
	// Search returns the best candidate for title (and artist, if known),
	// or nil if nothing matched closely enough.
	Search(ctx context.Context, artist *string, title string) (*Match, error)
	// GetPlaylistTracks returns every external id currently in the
	// configured playlist — the snapshot source for C2.
	GetPlaylistTracks(ctx context.Context) ([]string, error)
	// GetPlaylistEntries returns the full playlist listing with metadata,
	// in source order, used by the Shape B discovery phase to create new
	// track records without a further per-item lookup.
	GetPlaylistEntries(ctx context.Context) ([]PlaylistEntry, error)
	// AddToPlaylist appends externalID to the configured playlist.
	AddToPlaylist(ctx context.Context, externalID string) error
	// IsInPlaylist reports whether externalID is already present,
	// consulting snapshot when given rather than issuing a live call.
	IsInPlaylist(ctx context.Context, externalID string, snapshot []string) (bool, error)
	// Name identifies the adapter for logging ("youtube", "spotify").
	Name() string
}

// YouTubeAdapter implements TargetAdapter by delegating to a local proxy
// process, the same shape the original APIService uses to route around
// the lack of a public YT Music playlist-mutation API.
//
// Grounded on the original internal/services/api.go APIService.
type YouTubeAdapter struct {
	baseURL string
	playlistID string
	authData string
	client *http.Client
	logger *log.Logger
}

// NewYouTubeAdapter builds a YouTubeAdapter against a running proxy.
func NewYouTubeAdapter(baseURL, playlistID, authData string, client *http.Client, logger *log.Logger) *YouTubeAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &YouTubeAdapter{baseURL: strings.TrimRight(baseURL, "/"), playlistID: playlistID, authData: authData, client: client, logger: logger}
}

func (y *YouTubeAdapter) Name() string { return "youtube" }

func (y *YouTubeAdapter) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if y.authData != "" {
		req.Header.Set("X-Auth-Data", y.authData)
	}
	return y.client.Do(req)
}

func (y *YouTubeAdapter) Search(ctx context.Context, artist *string, title string) (*Match, error) {
	var match *Match
	err := WithRetry(ctx, func() error {
		q := title
		if artist != nil {
			q = *artist + " " + title
		}
		resp, err := y.do(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(q), nil)
		if err != nil {
			return fmt.Errorf("search request failed: %w", err)
		}
		defer resp.Body.Close()

		var results []struct {
			VideoID string `json:"video_id"`
			Title string `json:"title"`
			Artist string `json:"artist"`
			Duration int `json:"duration_seconds"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
			return fmt.Errorf("failed to decode search results: %w", err)
		}
		if len(results) == 0 {
			return nil
		}
		best := results[0]
		match = &Match{ExternalID: best.VideoID, Title: best.Title, Artist: best.Artist, DurationSeconds: best.Duration}
		return nil
	})
	return match, err
}

func (y *YouTubeAdapter) GetPlaylistTracks(ctx context.Context) ([]string, error) {
	var ids []string
	err := WithRetry(ctx, func() error {
		resp, err := y.do(ctx, http.MethodGet, "/api/playlists/"+y.playlistID+"/tracks", nil)
		if err != nil {
			return fmt.Errorf("playlist fetch failed: %w", err)
		}
		defer resp.Body.Close()

		var tracks []struct {
			VideoID string `json:"video_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&tracks); err != nil {
			return fmt.Errorf("failed to decode playlist tracks: %w", err)
		}
		ids = make([]string, 0, len(tracks))
		for _, t := range tracks {
			ids = append(ids, t.VideoID)
		}
		return nil
	})
	return ids, err
}

func (y *YouTubeAdapter) GetPlaylistEntries(ctx context.Context) ([]PlaylistEntry, error) {
	var entries []PlaylistEntry
	err := WithRetry(ctx, func() error {
		resp, err := y.do(ctx, http.MethodGet, "/api/playlists/"+y.playlistID+"/tracks", nil)
		if err != nil {
			return fmt.Errorf("playlist fetch failed: %w", err)
		}
		defer resp.Body.Close()

		var tracks []struct {
			VideoID string `json:"video_id"`
			SetVideoID string `json:"set_video_id"`
			Title string `json:"title"`
			Artist string `json:"artist"`
			Duration int `json:"duration_seconds"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&tracks); err != nil {
			return fmt.Errorf("failed to decode playlist tracks: %w", err)
		}
		entries = make([]PlaylistEntry, 0, len(tracks))
		for _, t := range tracks {
			if t.VideoID == "" {
				continue
			}
			entries = append(entries, PlaylistEntry{
				ExternalID: t.VideoID,
				Title: t.Title,
				Artist: t.Artist,
				DurationSeconds: t.Duration,
				YtSetVideoID: t.SetVideoID,
			})
		}
		return nil
	})
	return entries, err
}

func (y *YouTubeAdapter) AddToPlaylist(ctx context.Context, externalID string) error {
	return WithRetry(ctx, func() error {
		body, _ := json.Marshal(map[string]string{"video_id": externalID})
		resp, err := y.do(ctx, http.MethodPost, "/api/playlists/"+y.playlistID+"/tracks", body)
		if err != nil {
			return fmt.Errorf("add to playlist failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("add to playlist returned %d: %s", resp.StatusCode, string(b))
		}
		return nil
	})
}

func (y *YouTubeAdapter) IsInPlaylist(ctx context.Context, externalID string, snapshot []string) (bool, error) {
	if snapshot != nil {
		return slices.Contains(snapshot, externalID), nil
	}
	ids, err := y.GetPlaylistTracks(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, externalID), nil
}

// SpotifyAdapter implements TargetAdapter directly against the Spotify
// Web API using a stored OAuth2 token, following the original pattern of
// keeping the transport client thin and pushing retries into WithRetry.
type SpotifyAdapter struct {
	playlistID string
	client *http.Client
	logger *log.Logger
}

// NewSpotifyAdapter builds a SpotifyAdapter from an oauth2.Config and the
// oauth2.Token produced by the bootstrap OAuth flow (internal/server.OAuthHandler).
func NewSpotifyAdapter(ctx context.Context, config *oauth2.Config, token *oauth2.Token, playlistID string, logger *log.Logger) *SpotifyAdapter {
	client := config.Client(ctx, token)
	return &SpotifyAdapter{playlistID: playlistID, client: client, logger: logger}
}

func (s *SpotifyAdapter) Name() string { return "spotify" }

const spotifyAPIBase = "https://api.spotify.com/v1"

func (s *SpotifyAdapter) Search(ctx context.Context, artist *string, title string) (*Match, error) {
	var match *Match
	err := WithRetry(ctx, func() error {
		q := title
		if artist != nil {
			q = "artist:" + *artist + " track:" + title
		}
		u := spotifyAPIBase + "/search?type=track&limit=1&q=" + url.QueryEscape(q)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to build search request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("search request failed: %w", err)
		}
		defer resp.Body.Close()

		var body struct {
			Tracks struct {
				Items []struct {
					ID string `json:"id"`
					Name string `json:"name"`
					DurationMs int `json:"duration_ms"`
					Artists []struct {
						Name string `json:"name"`
					} `json:"artists"`
				} `json:"items"`
			} `json:"tracks"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode search response: %w", err)
		}
		if len(body.Tracks.Items) == 0 {
			return nil
		}
		item := body.Tracks.Items[0]
		artistName := ""
		if len(item.Artists) > 0 {
			artistName = item.Artists[0].Name
		}
		match = &Match{ExternalID: item.ID, Title: item.Name, Artist: artistName, DurationSeconds: item.DurationMs / 1000}
		return nil
	})
	return match, err
}

func (s *SpotifyAdapter) GetPlaylistTracks(ctx context.Context) ([]string, error) {
	var ids []string
	err := WithRetry(ctx, func() error {
		ids = nil
		next := spotifyAPIBase + "/playlists/" + s.playlistID + "/tracks?limit=100"
		for next != "" {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
			if err != nil {
				return fmt.Errorf("failed to build playlist request: %w", err)
			}
			resp, err := s.client.Do(req)
			if err != nil {
				return fmt.Errorf("playlist fetch failed: %w", err)
			}

			var page struct {
				Items []struct {
					Track struct {
						ID string `json:"id"`
					} `json:"track"`
				} `json:"items"`
				Next string `json:"next"`
			}
			decErr := json.NewDecoder(resp.Body).Decode(&page)
			resp.Body.Close()
			if decErr != nil {
				return fmt.Errorf("failed to decode playlist page: %w", decErr)
			}
			for _, item := range page.Items {
				if item.Track.ID != "" {
					ids = append(ids, item.Track.ID)
				}
			}
			next = page.Next
		}
		return nil
	})
	return ids, err
}

func (s *SpotifyAdapter) GetPlaylistEntries(ctx context.Context) ([]PlaylistEntry, error) {
	var entries []PlaylistEntry
	err := WithRetry(ctx, func() error {
		entries = nil
		next := spotifyAPIBase + "/playlists/" + s.playlistID + "/tracks?limit=100"
		for next != "" {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
			if err != nil {
				return fmt.Errorf("failed to build playlist request: %w", err)
			}
			resp, err := s.client.Do(req)
			if err != nil {
				return fmt.Errorf("playlist fetch failed: %w", err)
			}

			var page struct {
				Items []struct {
					Track struct {
						ID string `json:"id"`
						Name string `json:"name"`
						DurationMs int `json:"duration_ms"`
						Artists []struct {
							Name string `json:"name"`
						} `json:"artists"`
					} `json:"track"`
				} `json:"items"`
				Next string `json:"next"`
			}
			decErr := json.NewDecoder(resp.Body).Decode(&page)
			resp.Body.Close()
			if decErr != nil {
				return fmt.Errorf("failed to decode playlist page: %w", decErr)
			}
			for _, item := range page.Items {
				if item.Track.ID == "" {
					continue
				}
				artist := ""
				if len(item.Track.Artists) > 0 {
					artist = item.Track.Artists[0].Name
				}
				entries = append(entries, PlaylistEntry{
					ExternalID: item.Track.ID,
					Title: item.Track.Name,
					Artist: artist,
					DurationSeconds: item.Track.DurationMs / 1000,
				})
			}
			next = page.Next
		}
		return nil
	})
	return entries, err
}

func (s *SpotifyAdapter) AddToPlaylist(ctx context.Context, externalID string) error {
	return WithRetry(ctx, func() error {
		body, _ := json.Marshal(map[string][]string{"uris": {"spotify:track:" + externalID}})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, spotifyAPIBase+"/playlists/"+s.playlistID+"/tracks", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build add request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("add to playlist failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("add to playlist returned %s: %s", strconv.Itoa(resp.StatusCode), string(b))
		}
		return nil
	})
}

func (s *SpotifyAdapter) IsInPlaylist(ctx context.Context, externalID string, snapshot []string) (bool, error) {
	if snapshot != nil {
		return slices.Contains(snapshot, externalID), nil
	}
	ids, err := s.GetPlaylistTracks(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, externalID), nil
}
