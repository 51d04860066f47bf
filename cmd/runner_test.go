package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/shared"
	tu "github.com/desertthunder/transportal/internal/testing"
	"github.com/urfave/cli/v3"
)

// runConfigure parses args with the shared config flags and loads them into r.
func runConfigure(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	cmd := &cli.Command{
		Name:   "test",
		Flags:  configFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error { return r.configure(cmd) },
	}
	return cmd.Run(context.Background(), append([]string{"test"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			torrents := services.NewTorrentService(services.NewRPCClient("http://127.0.0.1:9091/transmission/rpc", httpClient, logger))

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Torrents:   torrents,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.service() != torrents {
				t.Error("expected torrents to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses the configured RPC timeout", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Connection.RPCTimeoutMS = 2500
			runner := NewRunner(RunnerOpts{Config: config})

			if got := runner.rpcClient().Timeout; got != 2500*time.Millisecond {
				t.Errorf("expected 2.5s timeout, got %v", got)
			}
			if runner.service() == nil {
				t.Error("expected a torrent service built from config")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writes plain text without formatting", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("simple text")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "simple text" {
				t.Errorf("expected 'simple text', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("configure", func(t *testing.T) {
		t.Run("loads an explicit config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := shared.CreateConfigFile(path); err != nil {
				t.Fatalf("failed to create config: %v", err)
			}
			data := strings.Replace(tu.MustReadFile(t, path), "poll_interval_ms = 1000", "poll_interval_ms = 250", 1)
			if err := os.WriteFile(path, []byte(data), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner := NewRunner(RunnerOpts{})
			if err := runConfigure(t, runner, "--config", path); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.PollInterval() != 250*time.Millisecond {
				t.Errorf("expected 250ms poll interval, got %v", runner.config.PollInterval())
			}
		})

		t.Run("rejects a missing explicit config file", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			err := runConfigure(t, runner, "--config", filepath.Join(t.TempDir(), "missing.toml"))
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("keeps the current config when the default file is absent", func(t *testing.T) {
			t.Chdir(t.TempDir())
			config := shared.DefaultConfig()
			config.Connection.RPCURLBase = "http://seedbox:9091"
			runner := NewRunner(RunnerOpts{Config: config})

			if err := runConfigure(t, runner); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.RPCURL() != "http://seedbox:9091/transmission/rpc" {
				t.Errorf("unexpected RPC URL %s", runner.config.RPCURL())
			}
		})

		t.Run("applies a dotenv file before the environment", func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(shared.EnvPrefix+"KEEP_ALIVE_SECS", "")
			os.Unsetenv(shared.EnvPrefix + "KEEP_ALIVE_SECS")

			envFile := filepath.Join(t.TempDir(), ".env")
			if err := os.WriteFile(envFile, []byte(shared.EnvPrefix+"KEEP_ALIVE_SECS=3\n"), 0644); err != nil {
				t.Fatalf("failed to write env file: %v", err)
			}

			runner := NewRunner(RunnerOpts{})
			if err := runConfigure(t, runner, "--env-file", envFile); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.KeepAlive() != 3*time.Second {
				t.Errorf("expected 3s keep-alive, got %v", runner.config.KeepAlive())
			}
		})

		t.Run("sets the log level from the flag", func(t *testing.T) {
			t.Chdir(t.TempDir())
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})

			if err := runConfigure(t, runner, "--log-level", "debug"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.logger.GetLevel() != log.DebugLevel {
				t.Errorf("expected debug level, got %v", runner.logger.GetLevel())
			}
		})

		t.Run("rejects unknown log levels", func(t *testing.T) {
			t.Chdir(t.TempDir())
			runner := NewRunner(RunnerOpts{})

			err := runConfigure(t, runner, "--log-level", "chatty")
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}
