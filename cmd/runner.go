package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	torrents   services.Torrents
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Torrents   services.Torrents // built from the config when nil
	HTTPClient *http.Client      // upstream client; one with the configured RPC timeout when nil
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		torrents:   opts.Torrents,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, configCommand, checkCommand, torrentsCommand, watchCommand, auditCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// configure loads the command's configuration into the runner.
//
// The dotenv file is applied first so its variables take part in the environment overrides. A
// missing config file is an error only when --config was given explicitly; otherwise the runner
// keeps its current config with the environment applied.
func (r *Runner) configure(cmd *cli.Command) error {
	if path := cmd.String("env-file"); path != "" {
		if err := shared.LoadEnvFile(path); err != nil {
			return err
		}
	}

	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		r.config = config
	} else if cmd.IsSet("config") {
		return fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
		if err := r.config.ApplyEnv(); err != nil {
			return err
		}
		if err := r.config.Validate(); err != nil {
			return err
		}
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	if level != "" {
		ll, err := shared.ParseLogLevel(level)
		if err != nil {
			return err
		}
		shared.SetLogLevel(r.logger, ll)
	}
	return nil
}

// service returns the injected torrent service or one talking to the configured daemon.
func (r *Runner) service() services.Torrents {
	if r.torrents != nil {
		return r.torrents
	}
	r.torrents = services.NewTorrentService(services.NewRPCClient(r.config.RPCURL(), r.rpcClient(), r.logger))
	return r.torrents
}

func (r *Runner) rpcClient() *http.Client {
	if r.httpClient != nil {
		return r.httpClient
	}
	return &http.Client{Timeout: r.config.RPCTimeout()}
}

// credentials reads --username and --password, which may also come from the environment.
func (r *Runner) credentials(cmd *cli.Command) (services.Credentials, error) {
	creds := services.Credentials{Username: cmd.String("username"), Password: cmd.String("password")}
	if creds.Username == "" || creds.Password == "" {
		return services.Credentials{}, fmt.Errorf("%w: --username and --password are required", shared.ErrMissingArgument)
	}
	return creds, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
