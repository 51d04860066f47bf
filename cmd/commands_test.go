package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/repositories"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/shared"
	th "github.com/desertthunder/transportal/internal/testing"
	"github.com/urfave/cli/v3"
)

const ubuntuHash = "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"

type commandEnv struct {
	fake   *th.FakeTransmission
	runner *Runner
	out    *bytes.Buffer
}

func newCommandEnv(t *testing.T) *commandEnv {
	t.Helper()
	t.Chdir(t.TempDir())

	fake := th.NewFakeTransmission(t, "admin", "hunter2")
	fake.SetTorrents(
		models.Torrent{ID: 1, HashString: ubuntuHash, Name: "ubuntu-24.04.iso", AddedDate: 200, PercentDone: 0.5, TotalSize: 4 << 30, Status: models.StatusDownloading},
		models.Torrent{ID: 2, HashString: strings.Repeat("0", 40), Name: "archlinux.iso", AddedDate: 100, PercentDone: 1, Status: models.StatusStopped},
	)

	out := &bytes.Buffer{}
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "audit.db")

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Torrents: services.NewTorrentService(services.NewRPCClient(fake.URL(), nil, nil)),
		Logger:   shared.NewLogger(io.Discard),
		Output:   out,
	})
	return &commandEnv{fake: fake, runner: runner, out: out}
}

func (e *commandEnv) run(t *testing.T, cmd *cli.Command, args ...string) error {
	t.Helper()
	return cmd.Run(context.Background(), append([]string{cmd.Name}, args...))
}

func TestCheck(t *testing.T) {
	t.Run("prints the daemon version", func(t *testing.T) {
		env := newCommandEnv(t)

		if err := env.run(t, checkCommand(env.runner), "-u", "admin", "-p", "hunter2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "4.0.6") {
			t.Errorf("expected version in output, got %q", env.out.String())
		}
	})

	t.Run("reports rejected credentials", func(t *testing.T) {
		env := newCommandEnv(t)

		err := env.run(t, checkCommand(env.runner), "-u", "admin", "-p", "wrong")
		if !errors.Is(err, shared.ErrAuthRejected) {
			t.Errorf("expected ErrAuthRejected, got %v", err)
		}
	})

	t.Run("requires credentials", func(t *testing.T) {
		env := newCommandEnv(t)
		t.Setenv(shared.EnvPrefix+"USERNAME", "")
		t.Setenv(shared.EnvPrefix+"PASSWORD", "")

		err := env.run(t, checkCommand(env.runner))
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if env.fake.Requests() != 0 {
			t.Error("expected no upstream requests")
		}
	})
}

func TestTorrentsCommand(t *testing.T) {
	t.Run("prints a text table sorted by name", func(t *testing.T) {
		env := newCommandEnv(t)

		err := env.run(t, torrentsCommand(env.runner), "-u", "admin", "-p", "hunter2", "--sort", "name", "--dir", "ascend")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := env.out.String()
		arch, ubuntu := strings.Index(out, "archlinux.iso"), strings.Index(out, "ubuntu-24.04.iso")
		if arch < 0 || ubuntu < 0 || arch > ubuntu {
			t.Errorf("expected archlinux before ubuntu, got %q", out)
		}
	})

	t.Run("filters and renders JSON", func(t *testing.T) {
		env := newCommandEnv(t)

		err := env.run(t, torrentsCommand(env.runner), "-u", "admin", "-p", "hunter2", "--filter", "ubuntu", "--format", "json")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var torrents []models.Torrent
		if err := json.Unmarshal(env.out.Bytes(), &torrents); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if len(torrents) != 1 || torrents[0].HashString != ubuntuHash {
			t.Errorf("expected only ubuntu, got %+v", torrents)
		}
	})

	t.Run("writes to --output", func(t *testing.T) {
		env := newCommandEnv(t)
		path := filepath.Join(t.TempDir(), "torrents.csv")

		err := env.run(t, torrentsCommand(env.runner), "-u", "admin", "-p", "hunter2", "--format", "csv", "--output", path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if env.out.Len() != 0 {
			t.Error("expected nothing on stdout")
		}
		if !strings.HasPrefix(th.MustReadFile(t, path), "Hash,Name,Status") {
			t.Error("expected CSV header in export")
		}
	})

	t.Run("rejects unknown formats before calling upstream", func(t *testing.T) {
		env := newCommandEnv(t)

		err := env.run(t, torrentsCommand(env.runner), "-u", "admin", "-p", "hunter2", "--format", "yaml")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if env.fake.Requests() != 0 {
			t.Error("expected no upstream requests")
		}
	})

	t.Run("surfaces upstream failures", func(t *testing.T) {
		env := newCommandEnv(t)
		env.fake.FailWith(http.StatusInternalServerError)

		if err := env.run(t, torrentsCommand(env.runner), "-u", "admin", "-p", "hunter2"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestConfigCommands(t *testing.T) {
	t.Run("init writes the example config once", func(t *testing.T) {
		env := newCommandEnv(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := env.run(t, configCommand(env.runner), "init", "--path", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		th.AssertFileExists(t, path)

		if err := env.run(t, configCommand(env.runner), "init", "--path", path); err == nil {
			t.Error("expected error when the file exists")
		}
	})

	t.Run("show prints the effective config", func(t *testing.T) {
		env := newCommandEnv(t)
		t.Setenv(shared.EnvPrefix+"POLL_INTERVAL_MS", "750")

		if err := env.run(t, configCommand(env.runner), "show"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "poll_interval_ms = 750") {
			t.Errorf("expected overridden poll interval, got %q", env.out.String())
		}
	})
}

func TestAuditCommands(t *testing.T) {
	seed := func(t *testing.T, env *commandEnv) {
		t.Helper()
		db, err := env.runner.openDatabase()
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		repo := repositories.NewAuditRepository(db)
		entries := []models.AuditEntry{
			{Action: models.ActionLogin, Username: "admin", RemoteAddr: "127.0.0.1", CreatedAt: time.Now().UTC().Add(-90 * 24 * time.Hour)},
			{Action: models.ActionPause, Username: "admin", Target: ubuntuHash},
			{Action: models.ActionLoginFailed, Username: "mallory", Detail: "invalid credentials"},
		}
		for i := range entries {
			if err := repo.Record(context.Background(), &entries[i]); err != nil {
				t.Fatalf("failed to seed audit log: %v", err)
			}
		}
	}

	t.Run("lists recent entries", func(t *testing.T) {
		env := newCommandEnv(t)
		seed(t, env)

		if err := env.run(t, auditCommand(env.runner), "--limit", "2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := env.out.String()
		if !strings.Contains(out, "login_failed") || !strings.Contains(out, "pause") {
			t.Errorf("expected the two newest entries, got %q", out)
		}
		if strings.Contains(out, "127.0.0.1") {
			t.Error("expected the oldest entry to be cut by the limit")
		}
	})

	t.Run("filters by user as JSON", func(t *testing.T) {
		env := newCommandEnv(t)
		seed(t, env)

		if err := env.run(t, auditCommand(env.runner), "--user", "mallory", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var entries []models.AuditEntry
		if err := json.Unmarshal(env.out.Bytes(), &entries); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if len(entries) != 1 || entries[0].Username != "mallory" {
			t.Errorf("expected mallory's entry, got %+v", entries)
		}
	})

	t.Run("prune removes old entries", func(t *testing.T) {
		env := newCommandEnv(t)
		seed(t, env)

		if err := env.run(t, auditCommand(env.runner), "prune", "--older-than", "720h"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "Removed 1 entries") {
			t.Errorf("unexpected output %q", env.out.String())
		}
	})

	t.Run("requires a database path", func(t *testing.T) {
		env := newCommandEnv(t)
		env.runner.config.Database.Path = ""

		err := env.run(t, auditCommand(env.runner))
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestOpenAudit(t *testing.T) {
	t.Run("is disabled without a database path", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		runner.config.Database.Path = ""

		audit, closeAudit, err := runner.openAudit()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer closeAudit()
		if audit != nil {
			t.Error("expected no audit log")
		}
	})

	t.Run("records into the configured database", func(t *testing.T) {
		env := newCommandEnv(t)

		audit, closeAudit, err := env.runner.openAudit()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer closeAudit()

		if err := audit.Record(context.Background(), &models.AuditEntry{Action: models.ActionLogout, Username: "admin"}); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}
