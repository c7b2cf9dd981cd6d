package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// CachedToken is the durable form of an OAuth2 token plus the scopes it was granted.
type CachedToken struct {
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenType    string    `toml:"token_type"`
	Expiry       time.Time `toml:"expiry"`
	Scopes       []string  `toml:"scopes"`
}

// HasScopes reports whether every required scope was granted.
func (t *CachedToken) HasScopes(required []string) bool {
	for _, s := range required {
		if !slices.Contains(t.Scopes, s) {
			return false
		}
	}
	return true
}

// Expired reports whether the token expires within margin of now.
// A zero expiry means the service never told us, which counts as expired.
func (t *CachedToken) Expired(now time.Time, margin time.Duration) bool {
	if t.Expiry.IsZero() {
		return true
	}
	return !now.Add(margin).Before(t.Expiry)
}

// OAuth2 converts the cached token into an [oauth2.Token].
func (t *CachedToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// fromOAuth2 builds a CachedToken from a token endpoint response.
//
// The previous refresh token and scopes are kept when the response omits them.
func fromOAuth2(tok *oauth2.Token, prev *CachedToken, requested []string) *CachedToken {
	cached := &CachedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.UTC().Truncate(time.Second),
		Scopes:       grantedScopes(tok),
	}

	if cached.RefreshToken == "" && prev != nil {
		cached.RefreshToken = prev.RefreshToken
	}
	if len(cached.Scopes) == 0 {
		if prev != nil && len(prev.Scopes) > 0 {
			cached.Scopes = slices.Clone(prev.Scopes)
		} else {
			cached.Scopes = slices.Clone(requested)
		}
	}
	return cached
}

// TokenStore reads and writes the token cache file.
type TokenStore struct {
	path   string
	logger *log.Logger
}

// NewTokenStore creates a store backed by the file at path.
func NewTokenStore(path string, logger *log.Logger) *TokenStore {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &TokenStore{path: path, logger: logger}
}

// Path returns the cache file location.
func (s *TokenStore) Path() string {
	return s.path
}

// Load returns the cached token, or false when the file is missing or cannot be parsed.
func (s *TokenStore) Load() (*CachedToken, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("token cache unreadable", "path", s.path, "error", err)
		}
		return nil, false
	}

	var token CachedToken
	if _, err := toml.Decode(string(data), &token); err != nil {
		s.logger.Debug("token cache malformed", "path", s.path, "error", err)
		return nil, false
	}

	if token.AccessToken == "" {
		s.logger.Debug("token cache has no access token", "path", s.path)
		return nil, false
	}

	return &token, true
}

// Save writes token to the cache, replacing any previous content.
//
// The file is written to a temporary sibling and renamed into place so a crash never leaves a partial token behind.
func (s *TokenStore) Save(token *CachedToken) error {
	if token == nil {
		return fmt.Errorf("nil token")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	out := *token
	out.Expiry = out.Expiry.UTC().Truncate(time.Second)

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := toml.NewEncoder(tmp).Encode(out); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	s.logger.Debug("token cache written", "path", s.path, "expiry", out.Expiry)
	return nil
}

// Clear removes the cache file. A missing file is not an error.
func (s *TokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
