package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/desertthunder/spotifyctl/internal/shared"
	"github.com/joho/godotenv"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := runner.app().Run(context.Background(), os.Args); err != nil {
		logger.Error(err)
		os.Exit(shared.ExitCode(err))
	}
}
