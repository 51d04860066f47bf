package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/session"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/web"
)

// AuditLog records user actions. The sqlite audit repository satisfies it.
type AuditLog interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}

// Config wires a [Proxy].
type Config struct {
	Registry *session.Registry
	Torrents services.Torrents
	Renderer *web.Renderer
	Audit    AuditLog // optional
	Logger   *log.Logger

	PollInterval       time.Duration
	KeepAlive          time.Duration // zero disables keep-alive comments and pings
	SecureCookie       bool
	LoginRatePerMinute float64 // zero disables login rate limiting
	TrustForwarded     bool    // take the client address from X-Forwarded-For
}

// Proxy is the session-aware front end for one Transmission daemon.
type Proxy struct {
	registry *session.Registry
	torrents services.Torrents
	renderer *web.Renderer
	audit    AuditLog
	logger   *log.Logger
	limiter  *LoginLimiter

	pollInterval   time.Duration
	keepAlive      time.Duration
	secureCookie   bool
	trustForwarded bool

	router *BasicRouter
}

// NewProxy validates cfg and registers every route.
func NewProxy(cfg Config) (*Proxy, error) {
	switch {
	case cfg.Registry == nil:
		return nil, fmt.Errorf("%w: session registry", shared.ErrMissingArgument)
	case cfg.Torrents == nil:
		return nil, fmt.Errorf("%w: torrent service", shared.ErrMissingArgument)
	case cfg.Renderer == nil:
		return nil, fmt.Errorf("%w: renderer", shared.ErrMissingArgument)
	case cfg.PollInterval <= 0:
		return nil, fmt.Errorf("%w: poll interval must be positive", shared.ErrInvalidArgument)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	p := &Proxy{
		registry:       cfg.Registry,
		torrents:       cfg.Torrents,
		renderer:       cfg.Renderer,
		audit:          cfg.Audit,
		logger:         logger,
		limiter:        NewLoginLimiter(cfg.LoginRatePerMinute),
		pollInterval:   cfg.PollInterval,
		keepAlive:      cfg.KeepAlive,
		secureCookie:   cfg.SecureCookie,
		trustForwarded: cfg.TrustForwarded,
		router:         NewBasicRouter(),
	}

	p.router.Use(RequestLogger(logger), Recover(logger), UnauthorizedRedirect(cfg.Renderer))
	p.router.Handler(authHandler{p})
	p.router.Handler(torrentHandler{p})
	p.router.Handler(streamHandler{p})

	return p, nil
}

// ServeHTTP implements [http.Handler].
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

func (p *Proxy) page(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.renderer.Page(w, name, data); err != nil {
		p.logger.Error("failed to render page", "page", name, "error", err)
	}
}

func (p *Proxy) fragment(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (p *Proxy) record(r *http.Request, action models.AuditAction, username, target, detail string) {
	if p.audit == nil {
		return
	}

	entry := &models.AuditEntry{
		Action:     action,
		Username:   username,
		Target:     target,
		RemoteAddr: p.clientIP(r),
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.audit.Record(context.WithoutCancel(r.Context()), entry); err != nil {
		p.logger.Warn("failed to record audit entry", "action", action, "error", err)
	}
}

// clientIP is the address rate limiting and auditing key on.
func (p *Proxy) clientIP(r *http.Request) string {
	if p.trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
