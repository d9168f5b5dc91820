package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumenapps/relay-service/internal/auth/token"
)

// DefaultSkew is the safety margin subtracted from a token's expiry instant
// to avoid races with clock drift.
const DefaultSkew = 10 * time.Second

// InvalidReason explains why a session could not be made fresh.
type InvalidReason string

const (
	// ReasonNoSession means no credential pair was present.
	ReasonNoSession InvalidReason = "no_session"
	// ReasonRefreshExpired means the refresh token itself was expired.
	ReasonRefreshExpired InvalidReason = "refresh_expired"
	// ReasonRefreshFailed means the backend refresh call did not succeed.
	ReasonRefreshFailed InvalidReason = "refresh_failed"
)

// InvalidError is returned when a credential pair cannot be made usable.
// It is terminal for the current request; the caller decides whether it
// means a login redirect or a 401.
type InvalidError struct {
	Reason InvalidReason
	Err    error
}

// Error implements the error interface.
func (e *InvalidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session invalid (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session invalid (%s)", e.Reason)
}

// Unwrap returns the underlying error.
func (e *InvalidError) Unwrap() error {
	return e.Err
}

// AsInvalid extracts an InvalidError from an error chain.
func AsInvalid(err error) (*InvalidError, bool) {
	var invalid *InvalidError
	if errors.As(err, &invalid) {
		return invalid, true
	}
	return nil, false
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Manager owns the decision of whether a credential pair is usable. It is
// the single implementation of expiry and refresh logic; every call site
// depends on it rather than re-deriving expiry arithmetic.
type Manager struct {
	store     *Store
	refresher Refresher
	skew      time.Duration
	now       func() time.Time
}

// ManagerConfig holds the configuration for the lifecycle manager.
type ManagerConfig struct {
	Store     *Store
	Refresher Refresher
	Skew      time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewManager creates a token lifecycle manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}

	skew := cfg.Skew
	if skew == 0 {
		skew = DefaultSkew
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		store:     cfg.Store,
		refresher: cfg.Refresher,
		skew:      skew,
		now:       now,
	}, nil
}

// IsExpired reports whether the token is expired under the configured skew.
// Fails closed: undecodable tokens and tokens without an expiry claim count
// as expired.
func (m *Manager) IsExpired(raw string) bool {
	return token.Expired(raw, m.now(), m.skew)
}

// EnsureFresh returns a credential pair guaranteed usable for the remainder
// of the request, refreshing the access token against the backend when
// needed. Every failure path deletes the session and returns an
// InvalidError; there is no retry.
func (m *Manager) EnsureFresh(ctx context.Context, r *http.Request, w http.ResponseWriter) (Pair, error) {
	pair, ok := m.store.Pair(r)
	if !ok {
		return Pair{}, &InvalidError{Reason: ReasonNoSession}
	}

	if m.IsExpired(pair.RefreshToken) {
		m.store.Clear(w)
		return Pair{}, &InvalidError{Reason: ReasonRefreshExpired}
	}

	if !m.IsExpired(pair.AccessToken) {
		return pair, nil
	}

	access, err := m.refresher.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed, deleting session")
		m.store.Clear(w)
		return Pair{}, &InvalidError{Reason: ReasonRefreshFailed, Err: err}
	}

	m.store.WriteAccess(w, access)
	pair.AccessToken = access
	return pair, nil
}

// CreateSession persists a new credential pair to the cookie jar.
func (m *Manager) CreateSession(w http.ResponseWriter, pair Pair) {
	m.store.Write(w, pair)
}

// DeleteSession removes the credential pair from the cookie jar.
func (m *Manager) DeleteSession(w http.ResponseWriter) {
	m.store.Clear(w)
}

// Scope memoizes the ensure-fresh result for one inbound request, so that
// several independent code paths observe a single refresh attempt. The gate
// installs one Scope per request; handlers share it.
type Scope struct {
	manager *Manager
	r       *http.Request
	w       http.ResponseWriter

	once sync.Once
	pair Pair
	err  error
}

// NewScope creates a request-scoped view of the lifecycle manager.
func NewScope(manager *Manager, r *http.Request, w http.ResponseWriter) *Scope {
	return &Scope{manager: manager, r: r, w: w}
}

// EnsureFresh runs the manager's EnsureFresh at most once for this request
// and returns the shared result to every caller.
func (s *Scope) EnsureFresh(ctx context.Context) (Pair, error) {
	s.once.Do(func() {
		s.pair, s.err = s.manager.EnsureFresh(ctx, s.r, s.w)
	})
	return s.pair, s.err
}
