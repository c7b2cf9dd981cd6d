package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	appName        = "spotifyctl"
	tokenFileName  = ".spotifyctl.token"
	configFileName = "config.toml"
)

// Environment variables read by [Config.ApplyEnv].
const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvRedirectURI  = "SPOTIFY_REDIRECT_URI"
	EnvTokenPath    = "SPOTIFYCTL_TOKEN_PATH"
	EnvConfigPath   = "SPOTIFYCTL_CONFIG"
	EnvLogLevel     = "SPOTIFYCTL_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Token    TokenConfig    `toml:"token"`
	Auth     AuthConfig     `toml:"auth"`
	Playback PlaybackConfig `toml:"playback"`
	Log      LogConfig      `toml:"log"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	APIURL       string `toml:"api_url"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
}

// TokenConfig controls where the OAuth token cache lives and when it is refreshed.
type TokenConfig struct {
	Path                 string `toml:"path"`
	RefreshMarginSeconds int    `toml:"refresh_margin_seconds"`
}

// AuthConfig controls the interactive authorization flow.
type AuthConfig struct {
	TimeoutSeconds int  `toml:"timeout_seconds"`
	OpenBrowser    bool `toml:"open_browser"`
	Paste          bool `toml:"paste"`
}

// PlaybackConfig contains defaults for playback commands.
type PlaybackConfig struct {
	MaxProgressSeconds int `toml:"max_progress_seconds"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// DefaultConfigPath returns <user config dir>/spotifyctl/config.toml.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// DefaultTokenPath returns <user config dir>/.spotifyctl.token.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}
	return filepath.Join(dir, tokenFileName), nil
}

// ApplyEnv overlays environment values onto the config. Set variables always win over the file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	overlay := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	overlay(EnvClientID, &c.Spotify.ClientID)
	overlay(EnvClientSecret, &c.Spotify.ClientSecret)
	overlay(EnvRedirectURI, &c.Spotify.RedirectURI)
	overlay(EnvTokenPath, &c.Token.Path)
	overlay(EnvLogLevel, &c.Log.Level)
}

// Validate reports whether the credentials needed for the OAuth flow are present.
func (c *Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", ErrMissingCredentials, strings.Join(missing, " and "))
	}
	if c.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify.redirect_uri is empty", ErrInvalidConfig)
	}
	return nil
}

// TokenPath resolves the token cache location, falling back to [DefaultTokenPath].
func (c *Config) TokenPath() (string, error) {
	if c.Token.Path != "" {
		return expandHome(c.Token.Path)
	}
	return DefaultTokenPath()
}

// RefreshMargin is how long before expiry a cached token is treated as expired.
func (c *Config) RefreshMargin() time.Duration {
	if c.Token.RefreshMarginSeconds < 0 {
		return 0
	}
	return time.Duration(c.Token.RefreshMarginSeconds) * time.Second
}

// AuthTimeout bounds the wait for the authorization callback.
func (c *Config) AuthTimeout() time.Duration {
	if c.Auth.TimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Auth.TimeoutSeconds) * time.Second
}

// MaxProgress returns the configured previous-track threshold, defaulting to 15 seconds.
func (c *Config) MaxProgress() int {
	if c.Playback.MaxProgressSeconds <= 0 {
		return 15
	}
	return c.Playback.MaxProgressSeconds
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
