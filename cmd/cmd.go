// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/spotifyctl/internal/playback"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file (default: <user config dir>/spotifyctl/config.toml)",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Log playback decisions and HTTP callback requests",
		},
		&cli.BoolFlag{
			Name:  "no-browser",
			Usage: "Print the authorization URL instead of opening a browser",
		},
		&cli.BoolFlag{
			Name:  "paste",
			Usage: "Paste the redirected URL instead of running a local callback server",
		},
	}
}

// getCommand prints the current item
func getCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "get",
		Usage:  "Print the currently playing track or episode",
		Before: r.configure,
		Action: r.Get,
	}
}

// nextCommand skips forward
func nextCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "next",
		Usage:  "Skip to the next item",
		Before: r.configure,
		Action: r.Next,
	}
}

// previousCommand skips back or restarts the current item
func previousCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "previous",
		Aliases:   []string{"prev"},
		Usage:     "Skip to the previous item, or restart the current one if it has played long enough",
		UsageText: "spotifyctl previous [--max-progress N]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max-progress",
				Aliases: []string{"m"},
				Usage:   "Skip back only when fewer than N seconds have played",
				Value:   playback.DefaultMaxProgress,
			},
		},
		Before: r.configure,
		Action: r.Previous,
	}
}

// playPauseCommand toggles playback
func playPauseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "play-pause",
		Usage:  "Pause when playing, resume otherwise",
		Before: r.configure,
		Action: r.PlayPause,
	}
}

// authCommand manages the cached Spotify token
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify and cache the token",
				Before: r.configure,
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the cached token without contacting Spotify",
				Before: r.configure,
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the cached token",
				Before: r.configure,
				Action: r.AuthLogout,
			},
		},
	}
}
