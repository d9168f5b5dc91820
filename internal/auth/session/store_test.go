package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenapps/relay-service/internal/auth/session"
)

// requestWithCookies builds a request carrying the recorder's Set-Cookie
// headers, simulating the client sending them back.
func requestWithCookies(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge >= 0 && cookie.Value != "" {
			req.AddCookie(cookie)
		}
	}
	return req
}

func TestStore_WriteThenRead(t *testing.T) {
	store := session.NewStore(session.CookieOptions{})
	rec := httptest.NewRecorder()

	written := session.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}
	store.Write(rec, written)

	pair, ok := store.Pair(requestWithCookies(t, rec))
	require.True(t, ok)
	assert.Equal(t, written, pair)
}

func TestStore_CookieAttributes(t *testing.T) {
	store := session.NewStore(session.CookieOptions{Secure: true})
	rec := httptest.NewRecorder()

	store.Write(rec, session.Pair{AccessToken: "a", RefreshToken: "r"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access := byName[session.AccessCookieName]
	require.NotNil(t, access)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, 24*60*60, access.MaxAge)

	refresh := byName[session.RefreshCookieName]
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, 7*24*60*60, refresh.MaxAge)
}

func TestStore_PartialPairIsAbsent(t *testing.T) {
	store := session.NewStore(session.CookieOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.AccessCookieName, Value: "access-only"})

	_, ok := store.Pair(req)
	assert.False(t, ok)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.RefreshCookieName, Value: "refresh-only"})

	_, ok = store.Pair(req)
	assert.False(t, ok)
}

func TestStore_NoCookies(t *testing.T) {
	store := session.NewStore(session.CookieOptions{})
	_, ok := store.Pair(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestStore_Clear(t *testing.T) {
	store := session.NewStore(session.CookieOptions{})
	rec := httptest.NewRecorder()

	store.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

func TestStore_WriteAccessReplacesOnlyAccess(t *testing.T) {
	store := session.NewStore(session.CookieOptions{})
	rec := httptest.NewRecorder()

	store.WriteAccess(rec, "access-2")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.AccessCookieName, cookies[0].Name)
	assert.Equal(t, "access-2", cookies[0].Value)
}
