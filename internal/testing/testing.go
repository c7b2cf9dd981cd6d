// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotifyctl/internal/services"
)

// MockPlayer is a test double for [services.Player] that records every call.
type MockPlayer struct {
	mu       sync.Mutex
	Snapshot *services.PlaybackSnapshot
	ReadErr  error
	WriteErr error
	Calls    []string
	Seeks    []time.Duration
}

// NewMockPlayer returns a player reporting snap.
func NewMockPlayer(snap *services.PlaybackSnapshot) *MockPlayer {
	return &MockPlayer{Snapshot: snap}
}

// Playing builds a snapshot of a playing track at the given progress.
func Playing(progress time.Duration) *services.PlaybackSnapshot {
	return &services.PlaybackSnapshot{
		IsPlaying: true,
		Item:      services.Track{Artists: []string{"Artist"}, Title: "Title"},
		Progress:  &progress,
	}
}

func (m *MockPlayer) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *MockPlayer) CurrentPlayback(ctx context.Context) (*services.PlaybackSnapshot, error) {
	m.record("current")
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.Snapshot, nil
}

func (m *MockPlayer) Next(ctx context.Context) error {
	m.record("next")
	return m.WriteErr
}

func (m *MockPlayer) Previous(ctx context.Context) error {
	m.record("previous")
	return m.WriteErr
}

func (m *MockPlayer) Seek(ctx context.Context, position time.Duration) error {
	m.record("seek")
	m.mu.Lock()
	m.Seeks = append(m.Seeks, position)
	m.mu.Unlock()
	return m.WriteErr
}

func (m *MockPlayer) Pause(ctx context.Context) error {
	m.record("pause")
	return m.WriteErr
}

func (m *MockPlayer) Resume(ctx context.Context) error {
	m.record("resume")
	return m.WriteErr
}

// Mutations returns recorded calls other than snapshot reads.
func (m *MockPlayer) Mutations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.Calls {
		if c != "current" {
			out = append(out, c)
		}
	}
	return out
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
