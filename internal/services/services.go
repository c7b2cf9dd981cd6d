// package services defines interface Player for the remote playback API
//
// Spotify Web API (via zmb3/spotify and raw requests)
package services

import (
	"context"
	"time"
)

// Player defines the remote playback operations the controller needs.
type Player interface {
	// CurrentPlayback fetches the current playback snapshot.
	// Returns nil when the service reports nothing playing.
	CurrentPlayback(ctx context.Context) (*PlaybackSnapshot, error)

	// Next skips to the next item in the user's queue.
	Next(ctx context.Context) error

	// Previous skips to the previous item.
	Previous(ctx context.Context) error

	// Seek moves the playhead of the current item to position.
	Seek(ctx context.Context, position time.Duration) error

	// Pause pauses playback.
	Pause(ctx context.Context) error

	// Resume resumes whatever was last loaded.
	Resume(ctx context.Context) error
}

// PlaybackSnapshot is a point-in-time read of playback state.
type PlaybackSnapshot struct {
	IsPlaying bool
	Item      PlayableItem   // nil when the service returned no item
	Progress  *time.Duration // nil when the service did not report progress
}

// PlayableItem is either a [Track] or an [Episode].
type PlayableItem interface {
	playable()
}

// Track is a music track. Artists is in credit order and may be empty.
type Track struct {
	Artists []string
	Title   string
}

// Episode is a podcast episode.
type Episode struct {
	Show  string
	Title string
}

func (Track) playable()   {}
func (Episode) playable() {}
