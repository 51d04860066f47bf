package ui

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/tasks"
	th "github.com/desertthunder/transportal/internal/testing"
	"go.uber.org/goleak"
)

const (
	ubuntuHash = "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"
	archHash   = "0123456789abcdef0123456789abcdef01234567"
)

var creds = services.Credentials{Username: "admin", Password: "hunter2"}

func newTestModel(t *testing.T, interval time.Duration) (*Model, *th.FakeTransmission) {
	t.Helper()

	fake := th.NewFakeTransmission(t, creds.Username, creds.Password)
	fake.SetTorrents(
		models.Torrent{ID: 1, HashString: ubuntuHash, Name: "ubuntu-24.04.iso", AddedDate: 200, PercentDone: 0.5, Status: models.StatusDownloading},
		models.Torrent{ID: 2, HashString: archHash, Name: "archlinux.iso", AddedDate: 100, PercentDone: 1, Status: models.StatusStopped},
	)

	m := NewModel(context.Background(), Options{
		Torrents:    services.NewTorrentService(services.NewRPCClient(fake.URL(), nil, nil)),
		Credentials: creds,
		Interval:    interval,
	})
	t.Cleanup(m.Close)

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, fake
}

// run executes cmd with a timeout, failing the test when it blocks.
func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}

	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()

	select {
	case msg := <-out:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("command did not finish")
		return nil
	}
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestModel(t *testing.T) {
	t.Run("first update fills the list", func(t *testing.T) {
		m, _ := newTestModel(t, time.Hour)

		msg := run(t, m.Init())
		m.Update(msg)

		if len(m.torrents) != 2 {
			t.Fatalf("expected 2 torrents, got %d", len(m.torrents))
		}
		if len(m.list.Items()) != 2 {
			t.Errorf("expected 2 list items, got %d", len(m.list.Items()))
		}
		view := m.View()
		if !strings.Contains(view, "ubuntu-24.04.iso") || !strings.Contains(view, "2 torrents") {
			t.Errorf("unexpected view %q", view)
		}
	})

	t.Run("toggle pauses the selected torrent and wakes the engine", func(t *testing.T) {
		m, fake := newTestModel(t, time.Hour)
		m.Update(run(t, m.Init()))

		_, cmd := m.Update(keyPress("p"))
		m.Update(run(t, cmd))

		for _, tr := range fake.Torrents() {
			if tr.HashString == ubuntuHash && tr.Status != models.StatusStopped {
				t.Errorf("expected ubuntu to be stopped, got %s", tr.Status)
			}
		}
		if !strings.Contains(m.status, "paused ubuntu-24.04.iso") {
			t.Errorf("unexpected status %q", m.status)
		}

		msg := run(t, m.waitForEvent())
		m.Update(msg)
		if m.torrents[0].Status != models.StatusStopped {
			t.Errorf("expected woken poll to show stopped, got %s", m.torrents[0].Status)
		}
	})

	t.Run("detail view follows the selection", func(t *testing.T) {
		m, _ := newTestModel(t, time.Hour)
		m.Update(run(t, m.Init()))

		m.Update(keyPress("enter"))
		if m.view != DetailView {
			t.Fatal("expected detail view")
		}
		if !strings.Contains(m.View(), ubuntuHash) {
			t.Error("expected hash in detail view")
		}

		m.Update(keyPress("esc"))
		if m.view != ListView {
			t.Error("expected list view")
		}
	})

	t.Run("error events show in the status line", func(t *testing.T) {
		m, _ := newTestModel(t, time.Hour)
		m.Update(pushEventMsg(tasks.Event{Kind: tasks.EventError, Data: []byte("upstream unreachable")}))

		if !strings.Contains(m.View(), "upstream unreachable") {
			t.Error("expected error in view")
		}
	})

	t.Run("rejected credentials close the stream", func(t *testing.T) {
		m, fake := newTestModel(t, time.Millisecond)
		fake.FailWith(http.StatusUnauthorized)

		msg := run(t, m.Init())
		m.Update(msg)
		if m.err == nil {
			t.Fatal("expected error event")
		}

		m.Update(run(t, m.waitForEvent()))
		if !m.closed {
			t.Fatal("expected stream to close")
		}
		if !errors.Is(m.Err(), shared.ErrAuthRejected) {
			t.Errorf("expected ErrAuthRejected, got %v", m.Err())
		}
	})

	t.Run("quit stops the engine", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		fake := th.NewFakeTransmission(t, creds.Username, creds.Password)
		defer fake.Server.Close()

		m := NewModel(context.Background(), Options{
			Torrents:    services.NewTorrentService(services.NewRPCClient(fake.URL(), nil, nil)),
			Credentials: creds,
			Interval:    time.Millisecond,
		})
		m.Update(run(t, m.Init()))

		_, cmd := m.Update(keyPress("q"))
		if _, ok := run(t, cmd).(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
		m.Close()
	})
}
