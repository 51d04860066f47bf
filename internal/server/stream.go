package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/tasks"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const writeWait = 10 * time.Second

var errSessionEnded = errors.New("session ended")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// streamHandler serves the push streams.
type streamHandler struct{ *Proxy }

func (h streamHandler) Routes() []Route {
	gate := []Middleware{RequireSession(h.registry)}

	return []Route{
		{Method: http.MethodGet, Path: "/sse/torrents", Handler: h.sseTorrents, Middleware: gate},
		{Method: http.MethodGet, Path: "/sse/torrent", Handler: h.sseTorrent, Middleware: gate},
		{Method: http.MethodGet, Path: "/ws/torrents", Handler: h.wsTorrents, Middleware: gate},
	}
}

func (h streamHandler) listView(a authenticated, q models.Query) tasks.ViewFunc {
	return tasks.ListView(h.torrents, a.session.Credentials, q, h.renderer.List)
}

func (h streamHandler) sseTorrents(w http.ResponseWriter, r *http.Request) {
	a, _ := authFrom(r.Context())
	h.serveSSE(w, r, a, h.listView(a, models.ParseQuery(r.URL.Query())))
}

func (h streamHandler) sseTorrent(w http.ResponseWriter, r *http.Request) {
	a, _ := authFrom(r.Context())
	hash := r.URL.Query().Get("hash")
	if err := services.ValidateHash(hash); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.serveSSE(w, r, a, tasks.DetailView(h.torrents, a.session.Credentials, hash, h.renderer.Torrent))
}

// serveSSE streams view as server-sent events until the client disconnects.
func (h streamHandler) serveSSE(w http.ResponseWriter, r *http.Request, a authenticated, view tasks.ViewFunc) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	emit := func(ev tasks.Event) error {
		if err := writeEvent(w, ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	ping := func() error {
		if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	logger := h.streamLogger(a, "sse", r.URL.Path)
	if err := h.pump(r.Context(), a, view, emit, ping, logger); errors.Is(err, shared.ErrAuthRejected) {
		h.reject(r, a)
	}
}

// writeEvent writes ev as one SSE message, one data field per line of its payload.
func writeEvent(w io.Writer, ev tasks.Event) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: %s\n", ev.Kind)

	data := strings.ReplaceAll(string(ev.Data), "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")
	for _, line := range strings.Split(data, "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())
	return err
}

// wsTorrents streams the torrent list as JSON frames over a WebSocket.
func (h streamHandler) wsTorrents(w http.ResponseWriter, r *http.Request) {
	a, _ := authFrom(r.Context())
	view := h.listView(a, models.ParseQuery(r.URL.Query()))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// A hijacked connection's request context survives the client, so reads detect the close.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	emit := func(ev tasks.Event) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	}
	ping := func() error {
		return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	}

	logger := h.streamLogger(a, "ws", r.URL.Path)
	err = h.pump(ctx, a, view, emit, ping, logger)

	code, reason := websocket.CloseNormalClosure, ""
	if errors.Is(err, shared.ErrAuthRejected) {
		h.reject(r, a)
		code, reason = websocket.ClosePolicyViolation, "session rejected"
	}
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	conn.Close()
	<-readerDone
}

func (p *Proxy) streamLogger(a authenticated, transport, path string) *log.Logger {
	return shared.WithLogger(p.logger, "stream", shared.GenerateID(), "transport", transport, "path", path, "username", a.session.Username)
}

// pump runs one push loop and hands its events to emit until ctx ends, emit fails, the session is
// destroyed or the daemon rejects the credentials. It returns only after the loop has stopped.
func (p *Proxy) pump(ctx context.Context, a authenticated, view tasks.ViewFunc, emit func(tasks.Event) error, ping func() error, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	events := make(chan tasks.Event)
	engine := &tasks.PushEngine{
		Interval: p.pollInterval,
		Fetch:    view,
		Wake:     a.session.Changed,
		Logger:   logger,
	}

	g.Go(func() error { return engine.Run(gctx, events) })
	g.Go(func() error {
		select {
		case <-a.session.Done():
			return errSessionEnded
		case <-gctx.Done():
			return nil
		}
	})

	var keepAlive <-chan time.Time
	if p.keepAlive > 0 {
		ticker := time.NewTicker(p.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	logger.Debug("stream opened")
	sent := 0

loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case ev := <-events:
			if err := emit(ev); err != nil {
				logger.Debug("client write failed", "error", err)
				break loop
			}
			sent++
		case <-keepAlive:
			if err := ping(); err != nil {
				logger.Debug("keep-alive failed", "error", err)
				break loop
			}
		}
	}

	cancel()
	err := g.Wait()
	logger.Debug("stream closed", "events", sent, "error", err)

	if errors.Is(err, errSessionEnded) {
		return nil
	}
	return err
}
