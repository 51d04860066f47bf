package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch runs the terminal watcher against the configured daemon.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	creds, err := r.credentials(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	svc := r.service()
	if _, err := svc.Version(ctx, creds); err != nil {
		return fmt.Errorf("failed to reach %s: %w", r.config.RPCURL(), err)
	}

	model := ui.NewModel(ctx, ui.Options{
		Torrents:    svc,
		Credentials: creds,
		Query:       queryFrom(cmd),
		Interval:    r.config.PollInterval(),
		Logger:      shared.WithLogger(fileLogger, "stream", shared.GenerateID(), "transport", "tui"),
	})
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return model.Err()
}
