// Package session manages the credential pair that gates every protected
// request: cookie storage, expiry decisions, and race-safe refresh.
package session

import (
	"net/http"
	"time"
)

// Cookie names owned by the session store.
const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// Pair is a credential pair. Both tokens must be present for a session to
// exist; a partial pair reads as no session at all.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// normalize applies defaults for zero-valued fields.
func (o CookieOptions) normalize() CookieOptions {
	if o.AccessTTL == 0 {
		o.AccessTTL = 24 * time.Hour
	}
	if o.RefreshTTL == 0 {
		o.RefreshTTL = 7 * 24 * time.Hour
	}
	return o
}

// Store reads and writes the credential pair to the client cookie jar. It
// holds no state of its own; the cookie jar is the only persistence.
type Store struct {
	opts CookieOptions
}

// NewStore creates a cookie-backed session store.
func NewStore(opts CookieOptions) *Store {
	return &Store{opts: opts.normalize()}
}

// Pair reads the credential pair from the request. Returns false when either
// cookie is missing or empty.
func (s *Store) Pair(r *http.Request) (Pair, bool) {
	access, err := r.Cookie(AccessCookieName)
	if err != nil || access.Value == "" {
		return Pair{}, false
	}
	refresh, err := r.Cookie(RefreshCookieName)
	if err != nil || refresh.Value == "" {
		return Pair{}, false
	}
	return Pair{AccessToken: access.Value, RefreshToken: refresh.Value}, true
}

// Write issues both session cookies. Idempotent: a second write for the same
// pair replaces the cookies with identical values.
func (s *Store) Write(w http.ResponseWriter, pair Pair) {
	s.setCookie(w, AccessCookieName, pair.AccessToken, s.opts.AccessTTL)
	s.setCookie(w, RefreshCookieName, pair.RefreshToken, s.opts.RefreshTTL)
}

// WriteAccess replaces only the access token cookie. Used after a refresh,
// which never rotates the refresh token.
func (s *Store) WriteAccess(w http.ResponseWriter, accessToken string) {
	s.setCookie(w, AccessCookieName, accessToken, s.opts.AccessTTL)
}

// Clear expires both session cookies. Idempotent.
func (s *Store) Clear(w http.ResponseWriter) {
	s.expireCookie(w, AccessCookieName)
	s.expireCookie(w, RefreshCookieName)
}

func (s *Store) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.opts.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Store) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   s.opts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
