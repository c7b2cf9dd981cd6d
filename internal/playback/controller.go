package playback

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotifyctl/internal/services"
)

// DefaultMaxProgress is the restart threshold in seconds used by the previous command.
const DefaultMaxProgress = 15

// Controller issues playback commands against a [services.Player].
type Controller struct {
	player services.Player
	logger *log.Logger
}

// NewController creates a controller. A nil logger discards output.
func NewController(player services.Player, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{player: player, logger: logger}
}

// SkipNext skips to the next item unconditionally.
func (c *Controller) SkipNext(ctx context.Context) error {
	c.logger.Debug("skip to next")
	return c.player.Next(ctx)
}

// PreviousOrRestart skips to the previous item when the current one has
// played for fewer than maxProgressSeconds whole seconds, and restarts the
// current item otherwise. Unknown progress restarts.
func (c *Controller) PreviousOrRestart(ctx context.Context, maxProgressSeconds int) error {
	c.logger.Debug("previous", "max_progress", maxProgressSeconds)

	snap, err := c.player.CurrentPlayback(ctx)
	if err != nil {
		return err
	}

	switch {
	case snap == nil:
		c.logger.Debug("no playing result")
		return nil
	case !snap.IsPlaying:
		c.logger.Debug("not playing")
		return nil
	}

	if snap.Progress != nil {
		seconds := int64(*snap.Progress / time.Second)
		c.logger.Debug("progress", "seconds", seconds, "max", maxProgressSeconds)
		if seconds < int64(maxProgressSeconds) {
			c.logger.Debug("skip to previous")
			return c.player.Previous(ctx)
		}
	}

	c.logger.Debug("seek to 0")
	return c.player.Seek(ctx, 0)
}

// TogglePlayPause pauses when playing and resumes otherwise.
func (c *Controller) TogglePlayPause(ctx context.Context) error {
	snap, err := c.player.CurrentPlayback(ctx)
	if err != nil {
		return err
	}

	if snap == nil {
		c.logger.Debug("no playing result")
		return nil
	}

	if snap.IsPlaying {
		c.logger.Debug("is playing")
		return c.player.Pause(ctx)
	}

	c.logger.Debug("is not playing")
	return c.player.Resume(ctx)
}
