package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/web"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
)

// RequestIDHeader carries the id [RequestLogger] assigns to each request.
const RequestIDHeader = "X-Request-Id"

// RequestLogger logs method, path, status and duration of every request.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := shared.GenerateID()
			w.Header().Set(RequestIDHeader, id)

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.Status(),
				"bytes", sw.bytes,
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", id,
			)
		})
	}
}

// Recover turns a panicking handler into a 500.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panicked", "method", r.Method, "path", r.URL.Path, "panic", rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// UnauthorizedRedirect rewrites empty 401 responses to HTML clients into a page that sends the
// browser to /login. Responses that carry their own body pass through.
func UnauthorizedRedirect(renderer *web.Renderer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsHTML(r) {
				next.ServeHTTP(w, r)
				return
			}

			uw := &unauthorizedWriter{ResponseWriter: w}
			next.ServeHTTP(uw, r)
			if !uw.pending {
				return
			}

			w.Header().Del("Content-Length")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			renderer.Page(w, "unauthorized", web.LoginPage{})
		})
	}
}

func acceptsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// statusWriter records the status code and body size for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Status returns the recorded status, 200 when the handler wrote nothing.
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := hijack(w.ResponseWriter)
	if err == nil && w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// unauthorizedWriter holds back a 401 header until the handler writes a body.
type unauthorizedWriter struct {
	http.ResponseWriter
	pending bool
	wrote   bool
}

func (w *unauthorizedWriter) WriteHeader(code int) {
	if code == http.StatusUnauthorized && !w.wrote {
		w.pending = true
		return
	}
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *unauthorizedWriter) Write(b []byte) (int, error) {
	w.commit()
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *unauthorizedWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *unauthorizedWriter) commit() {
	if w.pending {
		w.pending = false
		w.wrote = true
		w.ResponseWriter.WriteHeader(http.StatusUnauthorized)
	}
}

func (w *unauthorizedWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return hijack(w.ResponseWriter)
}

func (w *unauthorizedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func hijack(w http.ResponseWriter) (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%w: response writer cannot be hijacked", shared.ErrNotImplemented)
	}
	return h.Hijack()
}

// Compress gzips responses for clients that accept it. WebSocket upgrades bypass it since the
// connection is hijacked.
func Compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}
