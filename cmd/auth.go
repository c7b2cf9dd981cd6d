package main

import (
	"context"
	"strings"
	"time"

	"github.com/desertthunder/spotifyctl/internal/session"
	"github.com/desertthunder/spotifyctl/internal/ui"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the interactive authorization flow even when a valid token is cached.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	manager, store, err := r.manager()
	if err != nil {
		return err
	}

	if _, err := manager.Authorize(ctx); err != nil {
		return err
	}

	r.writePlainln("%s", ui.Styles.OK("✓ Authorization successful"))
	return r.writePlain("✓ Token saved to %s\n", store.Path())
}

// AuthStatus reports the cached token. It never contacts Spotify.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	store, err := r.tokenStore()
	if err != nil {
		return err
	}

	r.writePlain("%s\n", ui.Styles.Title("Spotify authorization"))
	r.writePlain("Token file: %s\n", store.Path())

	token, ok := store.Load()
	if !ok {
		r.writePlain("%s\n", ui.Styles.Warn("No cached token"))
		return r.writePlain("%s\n", ui.Styles.Help("Run: spotifyctl auth login"))
	}

	now := time.Now()
	switch {
	case !token.Expired(now, r.config.RefreshMargin()):
		r.writePlain("Access token: %s (expires %s, in %s)\n",
			ui.Styles.OK("valid"), token.Expiry.Local().Format(time.RFC3339), token.Expiry.Sub(now).Round(time.Second))
	case token.RefreshToken != "":
		r.writePlain("Access token: %s (expires %s), refreshed on next use\n",
			ui.Styles.Warn("stale"), token.Expiry.Local().Format(time.RFC3339))
	default:
		r.writePlain("Access token: %s (expired %s)\n",
			ui.Styles.Err("expired"), token.Expiry.Local().Format(time.RFC3339))
	}

	if token.RefreshToken != "" {
		r.writePlain("Refresh token: present\n")
	} else {
		r.writePlain("Refresh token: %s\n", ui.Styles.Warn("missing"))
	}

	r.writePlain("Scopes: %s\n", strings.Join(token.Scopes, " "))
	if !token.HasScopes(session.Scopes) {
		r.writePlain("%s\n", ui.Styles.Err("Missing required scopes; run: spotifyctl auth login"))
	}

	return nil
}

// AuthLogout deletes the token cache.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	store, err := r.tokenStore()
	if err != nil {
		return err
	}

	if err := store.Clear(); err != nil {
		return err
	}

	return r.writePlain("✓ Removed %s\n", store.Path())
}
