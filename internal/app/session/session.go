// Package session keeps the demo's only piece of per-client state, the
// terminal reader ID, in a cookie the browser holds.
package session

import (
	"net/http"
	"time"
)

const (
	CookieName = "terminal"
	DefaultTTL = 900000 * time.Millisecond
)

type Store struct {
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewStore returns a cookie store whose cookies live for ttl. A non-positive
// ttl falls back to DefaultTTL.
func NewStore(ttl time.Duration, secure bool) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Store{
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// ReaderID returns the reader ID held by the request's session, if any.
func (s *Store) ReaderID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	return cookie.Value, true
}

// SetReaderID replaces the session's reader ID. The cookie stays readable from
// page scripts.
func (s *Store) SetReaderID(w http.ResponseWriter, readerID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    readerID,
		Path:     "/",
		MaxAge:   int(s.ttl / time.Second),
		Expires:  s.now().Add(s.ttl),
		HttpOnly: false,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}
