package session

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/shared"
)

// Secret identifies a session. It is the only value the browser holds.
type Secret [16]byte

// String renders the secret as 32 lowercase hex characters.
func (s Secret) String() string {
	return hex.EncodeToString(s[:])
}

// ParseSecret decodes a cookie value produced by [Secret.String].
func ParseSecret(value string) (Secret, error) {
	var s Secret
	if len(value) != hex.EncodedLen(len(s)) {
		return s, fmt.Errorf("%w: bad length", shared.ErrInvalidSecret)
	}
	if _, err := hex.Decode(s[:], []byte(strings.ToLower(value))); err != nil {
		return s, fmt.Errorf("%w: %v", shared.ErrInvalidSecret, err)
	}
	return s, nil
}

// Session is one logged-in user.
type Session struct {
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time // zero when sessions don't expire

	sealed []byte
	vault  *Vault
	issued atomic.Bool

	mu      sync.Mutex
	changed chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(username string, sealed []byte, vault *Vault, now time.Time, maxAge time.Duration) *Session {
	s := &Session{
		Username:  username,
		CreatedAt: now,
		sealed:    sealed,
		vault:     vault,
		changed:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	if maxAge > 0 {
		s.ExpiresAt = now.Add(maxAge)
	}
	return s
}

// Credentials opens the sealed password for one upstream call.
func (s *Session) Credentials() (services.Credentials, error) {
	password, err := s.vault.Open(s.sealed)
	if err != nil {
		return services.Credentials{}, fmt.Errorf("failed to open credentials for %s: %w", s.Username, err)
	}
	return services.Credentials{Username: s.Username, Password: string(password)}, nil
}

// ClaimCookie returns true the first time it is called and false afterwards.
func (s *Session) ClaimCookie() bool {
	return s.issued.CompareAndSwap(false, true)
}

// Expired reports whether the session has outlived its max age at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Notify wakes every receiver of the current [Session.Changed] channel.
func (s *Session) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.changed)
	s.changed = make(chan struct{})
}

// Changed returns a channel closed by the next [Session.Notify].
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Done is closed once the session is destroyed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
