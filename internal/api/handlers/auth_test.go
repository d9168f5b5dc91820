package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenapps/relay-service/internal/api/handlers"
	"github.com/lumenapps/relay-service/internal/api/middleware"
	"github.com/lumenapps/relay-service/internal/auth/session"
	"github.com/lumenapps/relay-service/internal/services/backend"
)

type authFixture struct {
	router  *gin.Engine
	access  string
	refresh string
}

// newAuthFixture wires the auth handler against a fake upstream token
// endpoint.
func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	access := signToken(t, time.Now().Add(time.Hour))
	refresh := signToken(t, time.Now().Add(24*time.Hour))

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["username"] != "alice" || body["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"detail": "invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access": access, "refresh": refresh})
	}))
	t.Cleanup(upstream.Close)

	client, err := backend.NewClient(&backend.ClientConfig{BaseURL: upstream.URL, HTTPClient: upstream.Client()})
	require.NoError(t, err)

	store := session.NewStore(session.CookieOptions{})
	manager, err := session.NewManager(&session.ManagerConfig{Store: store, Refresher: client})
	require.NoError(t, err)

	handler := handlers.NewAuthHandler(client, manager)
	gate := middleware.NewGate(manager, store, middleware.GateConfig{
		ProtectedPrefixes: []string{"/api/v1/auth/session"},
	})

	router := gin.New()
	router.Use(gate.Handle())
	router.POST("/api/v1/auth/login", handler.Login)
	router.POST("/api/v1/auth/logout", handler.Logout)
	router.GET("/api/v1/auth/session", handler.Session)

	return &authFixture{router: router, access: access, refresh: refresh}
}

func TestLogin_EstablishesSessionCookies(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username": "alice", "password": "secret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, session.AccessCookieName)
	require.Contains(t, cookies, session.RefreshCookieName)
	assert.Equal(t, f.access, cookies[session.AccessCookieName].Value)
	assert.Equal(t, f.refresh, cookies[session.RefreshCookieName].Value)
	assert.True(t, cookies[session.AccessCookieName].HttpOnly)
	assert.True(t, cookies[session.RefreshCookieName].HttpOnly)

	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.Subject)
}

func TestLogin_BadCredentialsPassThrough(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username": "alice", "password": "wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
	assert.Empty(t, rec.Result().Cookies(), "no session on failed login")
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username": "alice"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestLogout_ClearsSessionCookies(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	addSessionCookies(t, req)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.AccessCookieName || c.Name == session.RefreshCookieName {
			assert.Negative(t, c.MaxAge, "cookie %s must be expired", c.Name)
		}
	}
}

func TestSession_ReportsSubjectAndExpiry(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	addSessionCookies(t, req)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.Subject)

	expires, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))
}

func TestSession_Unauthenticated(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_INVALID")
}
