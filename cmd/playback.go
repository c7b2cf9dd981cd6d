package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotifyctl/internal/playback"
	"github.com/desertthunder/spotifyctl/internal/shared"
	"github.com/urfave/cli/v3"
)

// Get prints "Artist - Title" or "Show - Title" for the current item, and nothing when nothing is playing.
func (r *Runner) Get(ctx context.Context, cmd *cli.Command) error {
	player, err := r.player(ctx)
	if err != nil {
		return err
	}

	line, ok, err := playback.DescribeCurrent(ctx, player)
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Debug("nothing playing")
		return nil
	}

	return r.writePlain("%s\n", line)
}

// Next skips to the next item.
func (r *Runner) Next(ctx context.Context, cmd *cli.Command) error {
	player, err := r.player(ctx)
	if err != nil {
		return err
	}
	return playback.NewController(player, r.logger).SkipNext(ctx)
}

// Previous skips back or restarts depending on progress.
//
// The threshold comes from --max-progress, then playback.max_progress_seconds.
func (r *Runner) Previous(ctx context.Context, cmd *cli.Command) error {
	maxProgress := r.config.MaxProgress()
	if cmd.IsSet("max-progress") {
		maxProgress = int(cmd.Int("max-progress"))
	}
	if maxProgress < 0 {
		return fmt.Errorf("%w: --max-progress must not be negative", shared.ErrInvalidArgument)
	}

	player, err := r.player(ctx)
	if err != nil {
		return err
	}
	return playback.NewController(player, r.logger).PreviousOrRestart(ctx, maxProgress)
}

// PlayPause toggles between paused and playing.
func (r *Runner) PlayPause(ctx context.Context, cmd *cli.Command) error {
	player, err := r.player(ctx)
	if err != nil {
		return err
	}
	return playback.NewController(player, r.logger).TogglePlayPause(ctx)
}
