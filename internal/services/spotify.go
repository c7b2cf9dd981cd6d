// Spotify API implementation of [Player]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/spotifyctl/internal/shared"
	"github.com/zmb3/spotify/v2"
)

// DefaultBaseURL is the Spotify Web API root. It must end in a slash.
const DefaultBaseURL = "https://api.spotify.com/v1/"

// currentlyPlaying is the body of GET /me/player/currently-playing.
type currentlyPlaying struct {
	IsPlaying            bool            `json:"is_playing"`
	ProgressMS           *int64          `json:"progress_ms"`
	CurrentlyPlayingType string          `json:"currently_playing_type"`
	Item                 json.RawMessage `json:"item"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyShow struct {
	Name string `json:"name"`
}

// spotifyItem holds the union of track and episode fields; Type selects which apply.
type spotifyItem struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Artists []spotifyArtist `json:"artists"`
	Show    *spotifyShow    `json:"show"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// SpotifyService implements [Player] for the Spotify Web API.
type SpotifyService struct {
	client     *spotify.Client
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyService creates a service bound to an authenticated HTTP client.
//
// baseURL defaults to [DefaultBaseURL]; a missing trailing slash is added.
func NewSpotifyService(httpClient *http.Client, baseURL string) *SpotifyService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &SpotifyService{
		client:     spotify.New(httpClient, spotify.WithBaseURL(baseURL)),
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// CurrentPlayback fetches the currently playing track or episode.
func (s *SpotifyService) CurrentPlayback(ctx context.Context) (*PlaybackSnapshot, error) {
	endpoint := s.baseURL + "me/player/currently-playing?additional_types=track,episode"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, body)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var playing currentlyPlaying
	if err := json.Unmarshal(body, &playing); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}

	return playing.snapshot()
}

func (c currentlyPlaying) snapshot() (*PlaybackSnapshot, error) {
	snap := &PlaybackSnapshot{IsPlaying: c.IsPlaying}

	if c.ProgressMS != nil {
		progress := time.Duration(*c.ProgressMS) * time.Millisecond
		snap.Progress = &progress
	}

	raw := strings.TrimSpace(string(c.Item))
	if raw == "" || raw == "null" {
		return snap, nil
	}

	var item spotifyItem
	if err := json.Unmarshal(c.Item, &item); err != nil {
		return nil, fmt.Errorf("%w: failed to decode item: %v", shared.ErrAPIRequest, err)
	}

	switch item.Type {
	case "episode":
		ep := Episode{Title: item.Name}
		if item.Show != nil {
			ep.Show = item.Show.Name
		}
		snap.Item = ep
	case "track", "":
		tr := Track{Title: item.Name}
		for _, a := range item.Artists {
			tr.Artists = append(tr.Artists, a.Name)
		}
		snap.Item = tr
	}

	return snap, nil
}

// Next skips to the next item.
func (s *SpotifyService) Next(ctx context.Context) error {
	if err := s.client.Next(ctx); err != nil {
		return fmt.Errorf("%w: skip to next: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Previous skips to the previous item.
func (s *SpotifyService) Previous(ctx context.Context) error {
	if err := s.client.Previous(ctx); err != nil {
		return fmt.Errorf("%w: skip to previous: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Seek moves the playhead of the current item.
func (s *SpotifyService) Seek(ctx context.Context, position time.Duration) error {
	if err := s.client.Seek(ctx, int(position.Milliseconds())); err != nil {
		return fmt.Errorf("%w: seek to %v: %v", shared.ErrAPIRequest, position, err)
	}
	return nil
}

// Pause pauses playback on the active device.
func (s *SpotifyService) Pause(ctx context.Context) error {
	if err := s.client.Pause(ctx); err != nil {
		return fmt.Errorf("%w: pause: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Resume resumes playback of the current context on the active device.
func (s *SpotifyService) Resume(ctx context.Context) error {
	if err := s.client.Play(ctx); err != nil {
		return fmt.Errorf("%w: resume: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// apiError converts a non-2xx response into an error carrying Spotify's message when present.
func apiError(status int, body []byte) error {
	var e spotifyError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return fmt.Errorf("%w: spotify API error: status %d: %s", shared.ErrAPIRequest, status, e.Error.Message)
	}
	return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, status)
}
