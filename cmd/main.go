package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/transportal/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "transportal",
		Usage:    "Session-aware web front end and push layer for Transmission",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case errors.Is(err, shared.ErrMissingConfig), errors.Is(err, shared.ErrInvalidConfig):
			logger.Fatal("invalid configuration", "error", err)
		case errors.Is(err, shared.ErrAuthRejected):
			logger.Fatal("transmission rejected the credentials", "error", err)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
