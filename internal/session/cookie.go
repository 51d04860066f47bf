package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/transportal/internal/shared"
)

// CookieName is the cookie carrying the session secret.
const CookieName = "session_secret"

// Cookie builds the session cookie. maxAge is only set when sessions expire.
func Cookie(secret Secret, secure bool, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    secret.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}

// ExpiredCookie clears the session cookie.
func ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
}

// FromRequest reads and parses the session cookie.
func FromRequest(r *http.Request) (Secret, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Secret{}, fmt.Errorf("%w: %w", shared.ErrSessionNotFound, err)
	}
	return ParseSecret(c.Value)
}
