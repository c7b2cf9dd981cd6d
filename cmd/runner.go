package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotifyctl/internal/services"
	"github.com/desertthunder/spotifyctl/internal/session"
	"github.com/desertthunder/spotifyctl/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	preset      bool
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	input       io.Reader
	lookupEnv   func(string) (string, bool)
	openBrowser func(string) error
	prompt      session.CodePrompt
}

// RunnerOpts contains configuration options for creating a Runner.
//
// When Config is nil, it is loaded from --config, SPOTIFYCTL_CONFIG or the default path before each command.
type RunnerOpts struct {
	Config      *shared.Config
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Input       io.Reader
	LookupEnv   func(string) (string, bool)
	OpenBrowser func(string) error
	Prompt      session.CodePrompt // overrides the callback and paste prompts
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		preset:      opts.Config != nil,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       opts.Input,
		lookupEnv:   opts.LookupEnv,
		openBrowser: opts.OpenBrowser,
		prompt:      opts.Prompt,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "spotifyctl",
		Usage:    "Control Spotify playback from the terminal",
		Version:  version,
		Flags:    globalFlags(),
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		getCommand, nextCommand, previousCommand, playPauseCommand, authCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure resolves configuration for the command about to run.
//
// Precedence, lowest first: embedded defaults, config file, environment, flags.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.preset {
		path := cmd.String("config")
		if path == "" {
			path, _ = r.lookupEnv(shared.EnvConfigPath)
		}

		if path == "" {
			if def, err := shared.DefaultConfigPath(); err == nil {
				path = def
			} else {
				r.logger.Debug("no default config path", "error", err)
			}
		}

		config, err := shared.LoadConfigOrDefault(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.logger.Debug("configuration loaded", "path", path)
	}

	r.config.ApplyEnv(r.lookupEnv)

	if err := shared.SetLogLevel(r.logger, r.config.Log.Level); err != nil {
		return ctx, fmt.Errorf("%w: log level %q: %v", shared.ErrInvalidConfig, r.config.Log.Level, err)
	}
	if cmd.Bool("debug") {
		r.logger.SetLevel(log.DebugLevel)
	}
	if cmd.Bool("no-browser") {
		r.config.Auth.OpenBrowser = false
	}
	if cmd.Bool("paste") {
		r.config.Auth.Paste = true
	}

	return ctx, nil
}

func (r *Runner) tokenStore() (*session.TokenStore, error) {
	path, err := r.config.TokenPath()
	if err != nil {
		return nil, err
	}
	return session.NewTokenStore(path, r.logger), nil
}

func (r *Runner) manager() (*session.Manager, *session.TokenStore, error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}

	store, err := r.tokenStore()
	if err != nil {
		return nil, nil, err
	}

	manager, err := session.NewManager(session.ManagerOpts{
		Credentials: session.Credentials{
			ClientID:     r.config.Spotify.ClientID,
			ClientSecret: r.config.Spotify.ClientSecret,
			RedirectURI:  r.config.Spotify.RedirectURI,
		},
		Store:  store,
		Prompt: r.codePrompt(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  r.config.Spotify.AuthURL,
			TokenURL: r.config.Spotify.TokenURL,
		},
		RefreshMargin: r.config.RefreshMargin(),
		HTTPClient:    r.httpClient,
		Logger:        r.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return manager, store, nil
}

// player returns a Spotify client bound to a valid session.
func (r *Runner) player(ctx context.Context) (services.Player, error) {
	manager, _, err := r.manager()
	if err != nil {
		return nil, err
	}

	sess, err := manager.Session(ctx)
	if err != nil {
		return nil, err
	}

	return services.NewSpotifyService(sess.Client(), r.config.Spotify.APIURL), nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
