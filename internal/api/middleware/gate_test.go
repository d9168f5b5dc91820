package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenapps/relay-service/internal/api/middleware"
	"github.com/lumenapps/relay-service/internal/auth/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
		"iat": exp.Add(-time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

type stubRefresher struct {
	access string
	err    error
	calls  atomic.Int64
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.access, nil
}

type gateFixture struct {
	router    *gin.Engine
	refresher *stubRefresher
	hits      *atomic.Int64
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	store := session.NewStore(session.CookieOptions{})
	refresher := &stubRefresher{access: signToken(t, time.Now().Add(time.Hour))}
	manager, err := session.NewManager(&session.ManagerConfig{Store: store, Refresher: refresher})
	require.NoError(t, err)

	gate := middleware.NewGate(manager, store, middleware.GateConfig{
		ProtectedPrefixes: []string{"/chat", "/account", "/api/v1/chat"},
		AuthOnlyPrefixes:  []string{"/login", "/register"},
	})

	hits := &atomic.Int64{}
	router := gin.New()
	router.Use(gate.Handle())
	handler := func(c *gin.Context) {
		hits.Add(1)
		c.Status(http.StatusOK)
	}
	router.GET("/chat", handler)
	router.GET("/login", handler)
	router.GET("/about", handler)
	router.POST("/api/v1/chat/stream", handler)

	return &gateFixture{router: router, refresher: refresher, hits: hits}
}

func (f *gateFixture) do(method, path string, pair *session.Pair) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if pair != nil {
		req.AddCookie(&http.Cookie{Name: session.AccessCookieName, Value: pair.AccessToken})
		req.AddCookie(&http.Cookie{Name: session.RefreshCookieName, Value: pair.RefreshToken})
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGate_ProtectedPageWithoutSessionRedirects(t *testing.T) {
	f := newGateFixture(t)

	rec := f.do(http.MethodGet, "/chat", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fchat", rec.Header().Get("Location"))
	assert.Zero(t, f.hits.Load())
}

func TestGate_ProtectedAPIWithoutSessionGets401JSON(t *testing.T) {
	f := newGateFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/chat/stream", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), "SESSION_INVALID")
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestGate_ValidSessionPassesWithoutRefresh(t *testing.T) {
	f := newGateFixture(t)
	pair := &session.Pair{
		AccessToken:  signToken(t, time.Now().Add(time.Hour)),
		RefreshToken: signToken(t, time.Now().Add(24*time.Hour)),
	}

	rec := f.do(http.MethodGet, "/chat", pair)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, f.hits.Load())
	assert.Zero(t, f.refresher.calls.Load(), "fresh access token must not trigger a refresh")
}

func TestGate_ExpiredAccessRefreshesTransparently(t *testing.T) {
	f := newGateFixture(t)
	pair := &session.Pair{
		AccessToken:  signToken(t, time.Now().Add(-time.Minute)),
		RefreshToken: signToken(t, time.Now().Add(24*time.Hour)),
	}

	rec := f.do(http.MethodGet, "/chat", pair)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, f.refresher.calls.Load())

	// The refreshed access token is written back to the client.
	var updated *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.AccessCookieName {
			updated = c
		}
	}
	require.NotNil(t, updated)
	assert.Equal(t, f.refresher.access, updated.Value)
}

func TestGate_ExpiredRefreshRedirectsAndClearsSession(t *testing.T) {
	f := newGateFixture(t)
	pair := &session.Pair{
		AccessToken:  signToken(t, time.Now().Add(-time.Minute)),
		RefreshToken: signToken(t, time.Now().Add(-time.Minute)),
	}

	rec := f.do(http.MethodGet, "/chat", pair)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fchat", rec.Header().Get("Location"))
	assert.Zero(t, f.refresher.calls.Load(), "expired refresh token is never sent to the backend")

	cleared := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	assert.True(t, cleared[session.AccessCookieName])
	assert.True(t, cleared[session.RefreshCookieName])
}

func TestGate_RefreshFailureRedirects(t *testing.T) {
	f := newGateFixture(t)
	f.refresher.err = errors.New("backend unavailable")
	pair := &session.Pair{
		AccessToken:  signToken(t, time.Now().Add(-time.Minute)),
		RefreshToken: signToken(t, time.Now().Add(24*time.Hour)),
	}

	rec := f.do(http.MethodGet, "/chat", pair)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.EqualValues(t, 1, f.refresher.calls.Load())
	assert.Zero(t, f.hits.Load())
}

func TestGate_AuthOnlyPageRedirectsAuthenticatedVisitor(t *testing.T) {
	f := newGateFixture(t)
	pair := &session.Pair{
		AccessToken:  signToken(t, time.Now().Add(time.Hour)),
		RefreshToken: signToken(t, time.Now().Add(24*time.Hour)),
	}

	rec := f.do(http.MethodGet, "/login", pair)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/chat", rec.Header().Get("Location"))
	assert.Zero(t, f.hits.Load())
}

func TestGate_AuthOnlyPageAllowsAnonymousVisitor(t *testing.T) {
	f := newGateFixture(t)

	rec := f.do(http.MethodGet, "/login", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, f.hits.Load())
}

func TestGate_UnclassifiedPathPassesThrough(t *testing.T) {
	f := newGateFixture(t)

	anon := f.do(http.MethodGet, "/about", nil)
	assert.Equal(t, http.StatusOK, anon.Code)

	pair := &session.Pair{
		AccessToken:  signToken(t, time.Now().Add(time.Hour)),
		RefreshToken: signToken(t, time.Now().Add(24*time.Hour)),
	}
	authed := f.do(http.MethodGet, "/about", pair)
	assert.Equal(t, http.StatusOK, authed.Code)
	assert.EqualValues(t, 2, f.hits.Load())
}

func TestGate_Classify(t *testing.T) {
	gate := middleware.NewGate(nil, nil, middleware.GateConfig{
		ProtectedPrefixes: []string{"/chat", "/api/v1/chat"},
		AuthOnlyPrefixes:  []string{"/login", "/chat"},
	})

	tests := []struct {
		path string
		want middleware.RouteClass
	}{
		{"/chat", middleware.RouteProtected},
		{"/chat/abc123", middleware.RouteProtected},
		{"/api/v1/chat/stream", middleware.RouteProtected},
		{"/login", middleware.RouteAuthOnly},
		{"/", middleware.RouteUnclassified},
		{"/about", middleware.RouteUnclassified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gate.Classify(tt.path), tt.path)
	}
}
