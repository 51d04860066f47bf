package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/transportal/internal/repositories"
	"github.com/desertthunder/transportal/internal/server"
	"github.com/desertthunder/transportal/internal/session"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/web"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the web front end until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	config := r.config

	perms, err := config.UnixPerms()
	if err != nil {
		return err
	}

	registry, err := session.NewRegistry(config.SessionMaxAge(), r.logger)
	if err != nil {
		return err
	}
	defer registry.Close()

	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}

	audit, closeAudit, err := r.openAudit()
	if err != nil {
		return err
	}
	defer closeAudit()

	_, unix := config.UnixSocketPath()
	proxy, err := server.NewProxy(server.Config{
		Registry:           registry,
		Torrents:           r.service(),
		Renderer:           renderer,
		Audit:              audit,
		Logger:             r.logger,
		PollInterval:       config.PollInterval(),
		KeepAlive:          config.KeepAlive(),
		SecureCookie:       config.Security.SecureCookieAttribute,
		LoginRatePerMinute: config.Security.LoginRatePerMinute,
		TrustForwarded:     unix,
	})
	if err != nil {
		return fmt.Errorf("failed to build proxy: %w", err)
	}

	listener, err := server.Listen(config.Connection.BindAddress, perms)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Connection.BindAddress, err)
	}

	httpServer := &http.Server{
		Handler:           server.Compress(proxy),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "address", config.Connection.BindAddress, "upstream", config.RPCURL())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	if cmd.Bool("open") {
		r.openBrowser(unix)
	}

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down", "sessions", registry.Len())

	// Streams never finish on their own; closing the registry ends them so Shutdown can drain.
	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
		return httpServer.Close()
	}
	return nil
}

// openAudit opens the audit log when database.path is set. The returned close func is never nil.
func (r *Runner) openAudit() (server.AuditLog, func(), error) {
	if r.config.Database.Path == "" {
		r.logger.Debug("audit log disabled")
		return nil, func() {}, nil
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, nil, err
	}

	r.logger.Info("audit log enabled", "path", r.config.Database.Path)
	return repositories.NewAuditRepository(db), func() { db.Close() }, nil
}

func (r *Runner) openBrowser(unix bool) {
	if unix {
		r.logger.Warn("--open has no effect on a unix socket")
		return
	}

	url, err := shared.BrowserURL(r.config.Connection.BindAddress)
	if err != nil {
		r.logger.Warn("failed to build browser URL", "error", err)
		return
	}
	if err := shared.OpenBrowser(url); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", url)
	}
}
