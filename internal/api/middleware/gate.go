// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lumenapps/relay-service/internal/auth/session"
	domainerrors "github.com/lumenapps/relay-service/internal/domain/errors"
)

// RouteClass is the gate's classification of an inbound path.
type RouteClass int

const (
	// RouteUnclassified passes through the gate untouched.
	RouteUnclassified RouteClass = iota
	// RouteProtected requires a valid session.
	RouteProtected
	// RouteAuthOnly must not be visited while authenticated.
	RouteAuthOnly
)

const scopeContextKey = "session_scope"

// GateConfig holds the route classification tables and redirect targets.
type GateConfig struct {
	// LoginPath is where unauthenticated page requests are redirected.
	LoginPath string
	// HomePath is where authenticated visitors of auth-only pages land.
	HomePath string
	// ProtectedPrefixes lists path prefixes requiring a session.
	ProtectedPrefixes []string
	// AuthOnlyPrefixes lists path prefixes reserved for unauthenticated
	// visitors.
	AuthOnlyPrefixes []string
	// APIPrefix marks programmatic routes, which get JSON errors instead of
	// redirects.
	APIPrefix string
}

// normalize applies defaults for zero-valued fields.
func (c GateConfig) normalize() GateConfig {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.HomePath == "" {
		c.HomePath = "/chat"
	}
	if c.APIPrefix == "" {
		c.APIPrefix = "/api/"
	}
	return c
}

// Gate sits in front of every inbound request. It refreshes an expired
// access token transparently, then allows, redirects, or denies according to
// the route class. Authentication failures are fully resolved here; nothing
// downstream sees an invalid session.
type Gate struct {
	manager *session.Manager
	store   *session.Store
	cfg     GateConfig
}

// NewGate creates the request gate.
func NewGate(manager *session.Manager, store *session.Store, cfg GateConfig) *Gate {
	return &Gate{
		manager: manager,
		store:   store,
		cfg:     cfg.normalize(),
	}
}

// Handle returns the gin middleware implementing the gate.
func (g *Gate) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := session.NewScope(g.manager, c.Request, c.Writer)
		c.Set(scopeContextKey, scope)

		authenticated := g.resolveSession(c, scope)

		path := c.Request.URL.Path
		switch g.Classify(path) {
		case RouteProtected:
			if !authenticated {
				g.deny(c, path)
				return
			}
		case RouteAuthOnly:
			if authenticated {
				c.Redirect(http.StatusFound, g.cfg.HomePath)
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// resolveSession runs the transparent refresh step and reports whether the
// request is authenticated afterwards. On refresh failure the lifecycle
// manager has already cleared the cookies, so the request simply proceeds as
// unauthenticated.
func (g *Gate) resolveSession(c *gin.Context, scope *session.Scope) bool {
	pair, ok := g.store.Pair(c.Request)
	if !ok {
		return false
	}

	if !g.manager.IsExpired(pair.AccessToken) {
		return true
	}

	if _, err := scope.EnsureFresh(c.Request.Context()); err != nil {
		if invalid, is := session.AsInvalid(err); is {
			log.Debug().Str("reason", string(invalid.Reason)).Str("path", c.Request.URL.Path).Msg("session refresh failed at gate")
		}
		return false
	}
	return true
}

// Classify maps a path to exactly one route class. Protected wins over
// auth-only when prefixes overlap.
func (g *Gate) Classify(path string) RouteClass {
	for _, prefix := range g.cfg.ProtectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return RouteProtected
		}
	}
	for _, prefix := range g.cfg.AuthOnlyPrefixes {
		if strings.HasPrefix(path, prefix) {
			return RouteAuthOnly
		}
	}
	return RouteUnclassified
}

// deny rejects an unauthenticated request to a protected route: a redirect
// for page navigations, a 401 JSON body for API and stream consumers, to
// whom a redirect is meaningless.
func (g *Gate) deny(c *gin.Context, path string) {
	if strings.HasPrefix(path, g.cfg.APIPrefix) {
		derr := domainerrors.NewSessionInvalidError("authentication required")
		c.AbortWithStatusJSON(derr.HTTPStatus, derr)
		return
	}

	target := g.cfg.LoginPath + "?redirect=" + url.QueryEscape(path)
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// GetScope retrieves the request-scoped session view installed by the gate.
func GetScope(c *gin.Context) *session.Scope {
	if value, exists := c.Get(scopeContextKey); exists {
		return value.(*session.Scope)
	}
	return nil
}
