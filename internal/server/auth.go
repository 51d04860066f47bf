package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/session"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/web"
)

type contextKey int

const sessionKey contextKey = iota

type authenticated struct {
	secret  session.Secret
	session *session.Session
}

// SessionFrom returns the session [RequireSession] stored in ctx.
func SessionFrom(ctx context.Context) (*session.Session, bool) {
	a, ok := ctx.Value(sessionKey).(authenticated)
	return a.session, ok
}

func authFrom(ctx context.Context) (authenticated, bool) {
	a, ok := ctx.Value(sessionKey).(authenticated)
	return a, ok
}

// RequireSession answers 401 unless the request carries the secret of a live session.
//
// Rejected requests have no side effects: nothing is destroyed and no cookie is set.
func RequireSession(registry *session.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret, err := session.FromRequest(r)
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			s, ok := registry.Resolve(secret)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, authenticated{secret: secret, session: s})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authHandler serves login and logout.
type authHandler struct{ *Proxy }

func (h authHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/login", Handler: h.loginPage},
		{Method: http.MethodPost, Path: "/login", Handler: h.login, Middleware: []Middleware{RateLimit(h.limiter, h.clientIP)}},
		{Method: http.MethodPost, Path: "/logout", Handler: h.logout},
	}
}

func (h authHandler) loginPage(w http.ResponseWriter, r *http.Request) {
	if secret, err := session.FromRequest(r); err == nil {
		if _, ok := h.registry.Resolve(secret); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	h.page(w, http.StatusOK, "login", web.LoginPage{})
}

// login verifies the credentials against the daemon before any session exists.
func (h authHandler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.page(w, http.StatusBadRequest, "login", web.LoginPage{Error: "Malformed form"})
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		h.page(w, http.StatusBadRequest, "login", web.LoginPage{Username: username, Error: "Username and password are required"})
		return
	}

	version, err := h.torrents.Version(r.Context(), services.Credentials{Username: username, Password: password})
	if err != nil {
		status, message := loginFailure(err)
		h.logger.Warn("login failed", "username", username, "status", status, "error", err)
		h.record(r, models.ActionLoginFailed, username, "", err.Error())
		h.page(w, status, "login", web.LoginPage{Username: username, Error: message})
		return
	}

	secret, s, err := h.registry.Create(username, password)
	if err != nil {
		h.logger.Error("failed to create session", "username", username, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if s.ClaimCookie() {
		http.SetCookie(w, session.Cookie(secret, h.secureCookie, h.registry.MaxAge()))
	}

	h.logger.Info("logged in", "username", username, "daemon", version)
	h.record(r, models.ActionLogin, username, "", version)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUpstreamForbidden):
		return http.StatusForbidden, "Transmission refused access from this host"
	case errors.Is(err, shared.ErrAuthRejected):
		return http.StatusUnauthorized, "Invalid username or password"
	default:
		return http.StatusBadGateway, "Transmission is unreachable"
	}
}

// logout is safe to repeat and always clears the cookie.
func (h authHandler) logout(w http.ResponseWriter, r *http.Request) {
	if secret, err := session.FromRequest(r); err == nil {
		if s, ok := h.registry.Resolve(secret); ok {
			h.logger.Info("logged out", "username", s.Username)
			h.record(r, models.ActionLogout, s.Username, "", "")
		}
		h.registry.Destroy(secret)
	}

	http.SetCookie(w, session.ExpiredCookie(h.secureCookie))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// reject ends a session the daemon no longer accepts.
func (p *Proxy) reject(r *http.Request, a authenticated) {
	p.registry.Destroy(a.secret)
	p.logger.Warn("upstream rejected session credentials", "username", a.session.Username)
	p.record(r, models.ActionSessionRejected, a.session.Username, "", "")
}

// fail maps an upstream or input error onto a response.
func (p *Proxy) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrAuthRejected):
		if a, ok := authFrom(r.Context()); ok {
			p.reject(r, a)
		}
		http.SetCookie(w, session.ExpiredCookie(p.secureCookie))
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, shared.ErrTorrentNotFound):
		http.Error(w, "torrent not found", http.StatusNotFound)
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		p.logger.Error("upstream request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "transmission request failed", http.StatusBadGateway)
	}
}

// credentials opens the session's credentials, answering 500 when the sealed box is corrupt.
func (p *Proxy) credentials(w http.ResponseWriter, r *http.Request) (services.Credentials, authenticated, bool) {
	a, ok := authFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return services.Credentials{}, a, false
	}
	creds, err := a.session.Credentials()
	if err != nil {
		p.logger.Error("failed to open session credentials", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return services.Credentials{}, a, false
	}
	return creds, a, true
}
