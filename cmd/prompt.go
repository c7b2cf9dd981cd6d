package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/spotifyctl/internal/server"
	"github.com/desertthunder/spotifyctl/internal/session"
	"github.com/desertthunder/spotifyctl/internal/shared"
	"github.com/desertthunder/spotifyctl/internal/ui"
)

func (r *Runner) codePrompt() session.CodePrompt {
	switch {
	case r.prompt != nil:
		return r.prompt
	case r.config.Auth.Paste:
		return r.pastePrompt
	default:
		return r.callbackPrompt
	}
}

// showAuthURL opens the browser when enabled, falling back to printing the URL.
func (r *Runner) showAuthURL(authURL string) {
	if r.config.Auth.OpenBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		err := r.openBrowser(authURL)
		if err == nil {
			return
		}
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("%s", ui.Styles.Warn("⚠ Could not open browser automatically."))
	}
	r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
}

// callbackPrompt serves the redirect URI locally and waits for Spotify to redirect the browser to it.
func (r *Runner) callbackPrompt(ctx context.Context, authURL, state string) (string, error) {
	redirect, err := url.Parse(r.config.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return "", fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, r.config.Spotify.RedirectURI)
	}

	oauthHandler := server.NewOAuthHandler(redirect.Path, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.showAuthURL(authURL)

	wait := r.config.AuthTimeout()
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", wait)

	timeout := time.NewTimer(wait)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return "", fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return "", fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, wait)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if result.Error() != nil {
		return "", result.Error()
	}

	return result.Code, nil
}

// pastePrompt asks the user to paste the URL the browser was redirected to.
func (r *Runner) pastePrompt(ctx context.Context, authURL, state string) (string, error) {
	r.showAuthURL(authURL)
	r.writePlain("%s\n", ui.Styles.Help("After approving, paste the full URL you were redirected to (or just the code):"))
	r.writePlain("> ")

	type readResult struct {
		line string
		err  error
	}

	lines := make(chan readResult, 1)
	go func() {
		line, err := bufio.NewReader(r.input).ReadString('\n')
		lines <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-lines:
		if res.err != nil && !(errors.Is(res.err, io.EOF) && strings.TrimSpace(res.line) != "") {
			return "", fmt.Errorf("%w: failed to read redirect URL: %v", shared.ErrInvalidArgument, res.err)
		}
		return parseRedirect(res.line, state)
	}
}

// parseRedirect extracts the authorization code from a pasted redirect URL or bare code.
//
// A state present in the URL must match; the provider's error parameter is surfaced.
func parseRedirect(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: nothing was pasted", shared.ErrInvalidArgument)
	}

	if !strings.Contains(input, "?") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	query := u.Query()
	if e := query.Get("error"); e != "" {
		return "", fmt.Errorf("%w: %s", server.ErrDenied, e)
	}
	if got := query.Get("state"); got != "" && got != state {
		return "", server.ErrStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: no code in %q", shared.ErrInvalidArgument, u.Redacted())
	}
	return code, nil
}
