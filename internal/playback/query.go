package playback

import (
	"context"

	"github.com/desertthunder/spotifyctl/internal/services"
)

// DescribeCurrent returns the display line for the current item.
// The boolean is false when nothing is playing or the service returned no item.
func DescribeCurrent(ctx context.Context, player services.Player) (string, bool, error) {
	snap, err := player.CurrentPlayback(ctx)
	if err != nil {
		return "", false, err
	}
	if snap == nil {
		return "", false, nil
	}
	line, ok := Describe(snap.Item)
	return line, ok, nil
}

// Describe formats a playable item. Only the first credited artist is shown.
func Describe(item services.PlayableItem) (string, bool) {
	switch it := item.(type) {
	case services.Track:
		if len(it.Artists) == 0 {
			return it.Title, true
		}
		return it.Artists[0] + " - " + it.Title, true
	case services.Episode:
		return it.Show + " - " + it.Title, true
	default:
		return "", false
	}
}
