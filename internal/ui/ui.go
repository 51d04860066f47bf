package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/formatter"
	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	DetailView
)

// Options configures a watcher [Model].
type Options struct {
	Torrents    services.Torrents
	Credentials services.Credentials
	Query       models.Query
	Interval    time.Duration
	Logger      *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	view   ViewState

	svc     services.Torrents
	creds   services.Credentials
	engine  *tasks.PushEngine
	events  chan tasks.Event
	done    chan error
	stopped chan struct{}
	once    sync.Once

	wakeMu sync.Mutex
	wake   chan struct{}

	list     list.Model
	torrents []models.Torrent
	selected string
	updated  time.Time
	status   string
	err      error
	closed   bool
	width    int
	height   int
	help     help.Model
	keys     keyMap
	now      func() time.Time
}

// NewModel creates a watcher polling opts.Torrents with opts.Credentials. The engine starts with
// [Model.Init] and stops when ctx ends, on quit, or on [Model.Close].
func NewModel(ctx context.Context, opts Options) *Model {
	ctx, cancel := context.WithCancel(ctx)

	m := &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    ListView,
		svc:     opts.Torrents,
		creds:   opts.Credentials,
		events:  make(chan tasks.Event),
		done:    make(chan error, 1),
		stopped: make(chan struct{}),
		wake:    make(chan struct{}),
		help:    help.New(),
		keys:    newKeyMap(),
		now:     time.Now,
	}

	m.engine = &tasks.PushEngine{
		Interval: opts.Interval,
		Fetch:    tasks.ListView(opts.Torrents, m.credentials, opts.Query, formatter.ExportToJSON),
		Wake:     m.changed,
		Logger:   opts.Logger,
	}

	m.list = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.list.Title = "Torrents"
	m.list.SetShowHelp(false)

	return m
}

// Init starts the push engine and waits for its first event.
func (m *Model) Init() tea.Cmd {
	m.start()
	return m.waitForEvent()
}

// Close stops the push engine and waits for it to return.
func (m *Model) Close() {
	m.cancel()
	m.start()
	<-m.stopped
}

// Err returns the error that ended the stream, if any.
func (m *Model) Err() error {
	if m.closed {
		return m.err
	}
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgPushEvent:
			cmd := m.apply(msg.data.(tasks.Event))
			return m, tea.Batch(cmd, m.waitForEvent())
		case MsgStreamClosed:
			m.closed = true
			if err, ok := msg.data.(error); ok && err != nil {
				m.err = err
			}
			return m, nil
		case MsgActionDone:
			r := msg.data.(actionResult)
			if r.err != nil {
				m.err = fmt.Errorf("%s %s: %w", r.action, r.name, r.err)
				return m, nil
			}
			m.status = fmt.Sprintf("%s %s", r.action, r.name)
			m.notify()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("transportal · %d torrents", len(m.torrents))))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	switch m.view {
	case DetailView:
		b.WriteString(m.renderDetail())
	default:
		b.WriteString(m.list.View())
	}

	b.WriteString("\n\n")
	if m.view == DetailView {
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.toggle, m.keys.verify, m.keys.quit}))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m *Model) start() {
	m.once.Do(func() {
		go func() {
			defer close(m.stopped)
			m.done <- m.engine.Run(m.ctx, m.events)
		}()
	})
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return pushEventMsg(ev)
		case err := <-m.done:
			return streamClosedMsg(err)
		}
	}
}

func (m *Model) credentials() (services.Credentials, error) {
	return m.creds, nil
}

func (m *Model) changed() <-chan struct{} {
	m.wakeMu.Lock()
	defer m.wakeMu.Unlock()
	return m.wake
}

// notify wakes the engine for an early poll.
func (m *Model) notify() {
	m.wakeMu.Lock()
	defer m.wakeMu.Unlock()
	close(m.wake)
	m.wake = make(chan struct{})
}

func (m *Model) apply(ev tasks.Event) tea.Cmd {
	switch ev.Kind {
	case tasks.EventUpdate:
		var torrents []models.Torrent
		if err := json.Unmarshal(ev.Data, &torrents); err != nil {
			m.err = fmt.Errorf("failed to decode update: %w", err)
			return nil
		}
		m.torrents = torrents
		m.updated = m.now()
		m.err = nil
		return m.list.SetItems(torrentItems(torrents))
	case tasks.EventError:
		m.err = errors.New(string(ev.Data))
	}
	return nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering && msg.String() != "ctrl+c" {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter) && m.view == ListView:
		if t, ok := m.current(); ok {
			m.selected = t.HashString
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.back) && m.view == DetailView:
		m.view = ListView
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		if t.Status.Active() {
			return m, m.act("paused", m.svc.Stop, t)
		}
		return m, m.act("started", m.svc.Start, t)
	case key.Matches(msg, m.keys.verify):
		if t, ok := m.current(); ok {
			return m, m.act("verifying", m.svc.Verify, t)
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.status = "refreshing"
		m.notify()
		return m, nil
	}

	if m.view == DetailView {
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// current returns the torrent under the cursor, or the one shown in the detail view.
func (m *Model) current() (models.Torrent, bool) {
	if m.view == DetailView {
		for _, t := range m.torrents {
			if t.HashString == m.selected {
				return t, true
			}
		}
		return models.Torrent{}, false
	}

	item, ok := m.list.SelectedItem().(torrentItem)
	if !ok {
		return models.Torrent{}, false
	}
	return item.torrent, true
}

func (m *Model) act(action string, fn func(context.Context, services.Credentials, string) error, t models.Torrent) tea.Cmd {
	return func() tea.Msg {
		err := fn(m.ctx, m.creds, t.HashString)
		return actionDoneMsg(action, t.Name, err)
	}
}

func (m *Model) renderStatus() string {
	var line string
	switch {
	case m.err != nil:
		line = styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	case m.status != "":
		line = styles.ok.Render(m.status)
	case !m.updated.IsZero():
		line = styles.help.Render("updated " + m.updated.Format(time.TimeOnly))
	default:
		line = styles.help.Render("connecting...")
	}

	if m.closed {
		line += "  " + styles.warn.Render("stream closed, press q to quit")
	}
	return line
}

func (m *Model) renderDetail() string {
	t, ok := m.current()
	if !ok {
		return styles.warn.Render("Torrent removed\n\nPress esc to go back")
	}

	eta := "-"
	if d, ok := t.ETA(); ok {
		eta = d.String()
	}

	rows := [][2]string{
		{"Hash", t.HashString},
		{"Status", styles.Status(t).Render(t.Status.String())},
		{"Progress", fmt.Sprintf("%d%%", t.Percent())},
		{"Size", shared.FormatBytes(t.TotalSize)},
		{"Download", shared.FormatRate(t.RateDownload)},
		{"Upload", shared.FormatRate(t.RateUpload)},
		{"ETA", eta},
		{"Added", t.Added().Format(time.DateTime)},
	}
	if len(t.Labels) > 0 {
		rows = append(rows, [2]string{"Labels", strings.Join(t.Labels, ", ")})
	}
	if t.ErrorString != "" {
		rows = append(rows, [2]string{"Error", styles.err.Render(t.ErrorString)})
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(t.Name))
	for _, row := range rows {
		fmt.Fprintf(&b, "\n%-10s %s", row[0], row[1])
	}
	return b.String()
}
