package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/transportal/internal/formatter"
	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the example configuration to --path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Wrote %s\n", path)
}

// ConfigShow prints the configuration the other commands would run with.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	if err := toml.NewEncoder(r.output).Encode(r.config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Check logs in to the daemon the way the web front end does and prints its version.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	creds, err := r.credentials(cmd)
	if err != nil {
		return err
	}

	version, err := r.service().Version(ctx, creds)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", r.config.RPCURL(), err)
	}

	r.writePlainHeader("Transmission")
	r.writePlain("URL:     %s\n", r.config.RPCURL())
	r.writePlain("Version: %s\n", version)
	r.writePlain("User:    %s\n", creds.Username)
	return nil
}

// Torrents prints the torrent list once in the requested format.
func (r *Runner) Torrents(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	creds, err := r.credentials(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	torrents, err := r.service().List(ctx, creds, queryFrom(cmd))
	if err != nil {
		return fmt.Errorf("failed to list torrents: %w", err)
	}

	data, err := formatter.Torrents(torrents, format)
	if err != nil {
		return err
	}

	path := cmd.String("output")
	written, err := formatter.WriteExport(data, path)
	if err != nil {
		return err
	}
	if written {
		r.logger.Info("exported torrents", "count", len(torrents), "path", path)
		return nil
	}

	_, err = r.output.Write(data)
	return err
}

func queryFrom(cmd *cli.Command) models.Query {
	return models.ParseQuery(url.Values{
		"q":    {cmd.String("filter")},
		"sort": {cmd.String("sort")},
		"dir":  {cmd.String("dir")},
	})
}
