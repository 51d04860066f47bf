package session

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/shared"
)

// Registry holds the live sessions. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Secret]*Session

	vault  *Vault
	maxAge time.Duration
	logger *log.Logger
	now    func() time.Time
	random io.Reader
}

// NewRegistry creates an empty registry. A zero maxAge keeps sessions until logout or shutdown.
func NewRegistry(maxAge time.Duration, logger *log.Logger) (*Registry, error) {
	vault, err := NewVault()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	return &Registry{
		sessions: make(map[Secret]*Session),
		vault:    vault,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
		random:   rand.Reader,
	}, nil
}

// MaxAge returns the configured session lifetime, zero when unbounded.
func (r *Registry) MaxAge() time.Duration {
	return r.maxAge
}

// Create stores a session for credentials the caller has already verified upstream.
//
// It only fails when the system random source does.
func (r *Registry) Create(username, password string) (Secret, *Session, error) {
	sealed, err := r.vault.Seal([]byte(password))
	if err != nil {
		return Secret{}, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var secret Secret
	for {
		if _, err := io.ReadFull(r.random, secret[:]); err != nil {
			return Secret{}, nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		if _, taken := r.sessions[secret]; !taken {
			break
		}
		r.logger.Warn("session secret collision, drawing again")
	}

	s := newSession(username, sealed, r.vault, r.now(), r.maxAge)
	r.sessions[secret] = s

	r.logger.Debug("session created", "username", username, "sessions", len(r.sessions))
	return secret, s, nil
}

// Resolve looks up a session. Expired sessions are evicted and reported missing.
func (r *Registry) Resolve(secret Secret) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[secret]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if s.Expired(r.now()) {
		r.mu.Lock()
		if r.sessions[secret] == s {
			delete(r.sessions, secret)
			s.close()
		}
		r.mu.Unlock()
		r.logger.Debug("session expired", "username", s.Username)
		return nil, false
	}

	return s, true
}

// Destroy removes a session. Destroying an unknown secret is a no-op.
func (r *Registry) Destroy(secret Secret) {
	r.mu.Lock()
	s, ok := r.sessions[secret]
	delete(r.sessions, secret)
	r.mu.Unlock()

	if ok {
		s.close()
		r.logger.Debug("session destroyed", "username", s.Username)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close drops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[Secret]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	r.logger.Info("session registry closed", "dropped", len(sessions))
}
