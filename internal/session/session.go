package session

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotifyctl/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Scopes are the capabilities every command needs: reading and modifying playback state.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
}

// DefaultRefreshMargin is how close to expiry a cached token may get before it is refreshed.
const DefaultRefreshMargin = time.Minute

// CodePrompt obtains an authorization code after the user visits authURL.
//
// Implementations block until the user completes (or abandons) the flow and must verify state when the
// redirect carries one.
type CodePrompt func(ctx context.Context, authURL, state string) (string, error)

// Store is the persistence the manager needs. [TokenStore] implements it.
type Store interface {
	Load() (*CachedToken, bool)
	Save(token *CachedToken) error
}

// Credentials identify the application to the Spotify accounts service.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// ManagerOpts contains configuration options for creating a [Manager].
type ManagerOpts struct {
	Credentials   Credentials
	Store         Store
	Prompt        CodePrompt
	Endpoint      oauth2.Endpoint // zero value uses the Spotify accounts service
	RefreshMargin time.Duration
	HTTPClient    *http.Client // used for token endpoint calls and as the base transport of sessions
	Logger        *log.Logger
	Now           func() time.Time
	State         func() string
}

// Manager owns the single authenticated session of a process.
type Manager struct {
	config     *oauth2.Config
	store      Store
	prompt     CodePrompt
	margin     time.Duration
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
	state      func() string
}

// NewManager creates a [Manager]. Store and Prompt are required.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Credentials.ClientID == "" || opts.Credentials.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", shared.ErrMissingCredentials)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: no token store", shared.ErrInvalidConfig)
	}
	if opts.Prompt == nil {
		return nil, fmt.Errorf("%w: no authorization prompt", shared.ErrInvalidConfig)
	}
	if opts.Endpoint.AuthURL == "" || opts.Endpoint.TokenURL == "" {
		opts.Endpoint = oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		}
	}
	if opts.Endpoint.AuthStyle == oauth2.AuthStyleAutoDetect {
		// Spotify takes client credentials as HTTP basic auth; auto-detection would resend failed requests.
		opts.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
	}
	if opts.RefreshMargin < 0 {
		opts.RefreshMargin = 0
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.State == nil {
		opts.State = shared.GenerateState
	}

	return &Manager{
		config: &oauth2.Config{
			ClientID:     opts.Credentials.ClientID,
			ClientSecret: opts.Credentials.ClientSecret,
			RedirectURL:  opts.Credentials.RedirectURI,
			Scopes:       Scopes,
			Endpoint:     opts.Endpoint,
		},
		store:      opts.Store,
		prompt:     opts.Prompt,
		margin:     opts.RefreshMargin,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		now:        opts.Now,
		state:      opts.State,
	}, nil
}

// Session returns a session carrying a valid token, loading, refreshing or acquiring one as needed.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	cached, ok := m.store.Load()
	switch {
	case !ok:
		m.logger.Debug("no cached token, starting authorization")
		return m.Authorize(ctx)
	case !cached.HasScopes(Scopes):
		m.logger.Debug("cached token lacks required scopes", "granted", cached.Scopes)
		return m.Authorize(ctx)
	case cached.Expired(m.now(), m.margin):
		if cached.RefreshToken == "" {
			m.logger.Debug("cached token expired without refresh token, starting authorization")
			return m.Authorize(ctx)
		}
		refreshed, err := m.refresh(ctx, cached)
		if err != nil {
			return nil, err
		}
		return m.newSession(ctx, refreshed), nil
	default:
		m.logger.Debug("using cached token", "expiry", cached.Expiry)
		return m.newSession(ctx, cached), nil
	}
}

// Authorize runs the interactive flow unconditionally and persists the new token.
func (m *Manager) Authorize(ctx context.Context) (*Session, error) {
	state := m.state()
	authURL := m.config.AuthCodeURL(state)

	code, err := m.prompt(ctx, authURL, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: no authorization code received", shared.ErrAuthFailed)
	}

	tok, err := m.config.Exchange(m.tokenContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", shared.ErrAuthFailed, err)
	}

	cached := fromOAuth2(tok, nil, Scopes)
	if !cached.HasScopes(Scopes) {
		return nil, fmt.Errorf("%w: granted scopes %v do not cover %v", shared.ErrAuthFailed, cached.Scopes, Scopes)
	}

	if err := m.store.Save(cached); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenCache, err)
	}

	m.logger.Debug("authorization complete", "expiry", cached.Expiry)
	return m.newSession(ctx, cached), nil
}

// refresh exchanges the refresh token for a new access token and persists the result.
func (m *Manager) refresh(ctx context.Context, cached *CachedToken) (*CachedToken, error) {
	m.logger.Debug("refreshing cached token", "expiry", cached.Expiry)

	// An empty access token forces the oauth2 package to refresh regardless of its own expiry delta.
	src := m.config.TokenSource(m.tokenContext(ctx), &oauth2.Token{RefreshToken: cached.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	refreshed := fromOAuth2(tok, cached, Scopes)
	if err := m.store.Save(refreshed); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenCache, err)
	}
	return refreshed, nil
}

func (m *Manager) tokenContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

func (m *Manager) newSession(ctx context.Context, cached *CachedToken) *Session {
	ctx = m.tokenContext(ctx)
	s := &Session{token: cached}

	src := &refreshableTokenSource{
		source: m.config.TokenSource(ctx, cached.OAuth2()),
		last:   cached.AccessToken,
		callback: func(tok *oauth2.Token) {
			s.mu.Lock()
			next := fromOAuth2(tok, s.token, Scopes)
			s.token = next
			s.mu.Unlock()

			if err := m.store.Save(next); err != nil {
				m.logger.Warn("failed to persist refreshed token", "error", err)
			}
		},
	}
	s.client = oauth2.NewClient(ctx, src)
	return s
}

// Session is an authenticated handle on the Spotify API.
type Session struct {
	mu     sync.Mutex
	token  *CachedToken
	client *http.Client
}

// Client returns an [http.Client] that attaches the bearer token to every request.
func (s *Session) Client() *http.Client {
	return s.client
}

// Token returns the token the session currently holds.
func (s *Session) Token() CachedToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.token
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports every new access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	tok, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := tok.AccessToken != r.last
	r.last = tok.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(tok)
	}
	return tok, nil
}

// grantedScopes reads the space separated scope field of a token response.
func grantedScopes(tok *oauth2.Token) []string {
	raw, ok := tok.Extra("scope").(string)
	if !ok {
		return nil
	}
	return strings.Fields(raw)
}
