// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/desertthunder/transportal/internal/shared"
	"github.com/urfave/cli/v3"
)

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Load environment overrides from a dotenv file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
		},
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "Transmission RPC username",
			Sources: cli.EnvVars(shared.EnvPrefix + "USERNAME"),
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Transmission RPC password",
			Sources: cli.EnvVars(shared.EnvPrefix + "PASSWORD"),
		},
	}
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"q"},
			Usage:   "Only show torrents whose name contains this text",
		},
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Sort key (added, name, progress, size, status, eta)",
			Value: "added",
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Sort direction (ascend or descend)",
			Value: "descend",
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// serveCommand runs the HTTP front end
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web front end",
		Flags: flags(configFlags(), []cli.Flag{
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the front end in the default browser once listening",
			},
		}),
		Action: r.Serve,
	}
}

// configCommand manages configuration files
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file operations",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the example configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write the configuration file",
						Value: "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration after environment overrides",
				Flags:  configFlags(),
				Action: r.ConfigShow,
			},
		},
	}
}

// checkCommand probes the upstream daemon
func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "Verify credentials against Transmission and print its version",
		Flags:  flags(configFlags(), credentialFlags()),
		Action: r.Check,
	}
}

// torrentsCommand prints the torrent list once
func torrentsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "torrents",
		Aliases: []string{"ls"},
		Usage:   "List torrents",
		Flags: flags(configFlags(), credentialFlags(), queryFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (text, json, csv, markdown)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this file instead of stdout",
			},
		}),
		Action: r.Torrents,
	}
}

// watchCommand runs the terminal watcher
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch torrents live in the terminal",
		Flags: flags(configFlags(), credentialFlags(), queryFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "File to write logs to while the watcher owns the terminal",
				Value: "./tmp/transportal-watch.log",
			},
		}),
		Action: r.Watch,
	}
}

// auditCommand reads and maintains the audit log
func auditCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Show recent audit log entries",
		Flags: flags(configFlags(), []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of entries to show",
				Value:   50,
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Only show entries for this username",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		}),
		Action: r.Audit,
		Commands: []*cli.Command{
			{
				Name:  "prune",
				Usage: "Delete entries older than a duration",
				Flags: flags(configFlags(), []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age of the newest entry to delete",
						Value: 30 * 24 * time.Hour,
					},
				}),
				Action: r.AuditPrune,
			},
			{
				Name:  "migrate",
				Usage: "Apply audit log migrations",
				Flags: flags(configFlags(), []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				}),
				Action: r.AuditMigrate,
			},
		},
	}
}
