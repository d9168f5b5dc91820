package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lumenapps/relay-service/internal/auth/session"
	"github.com/lumenapps/relay-service/internal/auth/token"
	"github.com/lumenapps/relay-service/internal/core/cache"
	domainerrors "github.com/lumenapps/relay-service/internal/domain/errors"
)

// RateLimitConfig holds the fixed-window rate limit settings.
type RateLimitConfig struct {
	// Requests is the budget per window.
	Requests int64
	// Window is the fixed window length.
	Window time.Duration
}

// normalize applies defaults for zero-valued fields.
func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Requests == 0 {
		c.Requests = 20
	}
	if c.Window == 0 {
		c.Window = time.Minute
	}
	return c
}

// RateLimitMiddleware applies a fixed-window request budget per caller,
// backed by cache counters. The limiter is operational protection only; it
// fails open when the cache is unreachable so the relay never depends on it
// for correctness.
type RateLimitMiddleware struct {
	cacheClient cache.Client
	cfg         RateLimitConfig
}

// NewRateLimitMiddleware creates a rate limit middleware.
func NewRateLimitMiddleware(cacheClient cache.Client, cfg RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cacheClient: cacheClient,
		cfg:         cfg.normalize(),
	}
}

// Limit returns a gin middleware enforcing the budget.
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := m.buildKey(c)

		count, err := m.cacheClient.Incr(c.Request.Context(), key, m.cfg.Window)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if count > m.cfg.Requests {
			derr := domainerrors.NewRateLimitedError()
			c.AbortWithStatusJSON(derr.HTTPStatus, derr)
			return
		}

		c.Next()
	}
}

// buildKey identifies the caller by token subject when a session is present,
// falling back to the client IP.
func (m *RateLimitMiddleware) buildKey(c *gin.Context) string {
	subject := ""
	if cookie, err := c.Request.Cookie(session.AccessCookieName); err == nil {
		if claims, err := token.Decode(cookie.Value); err == nil {
			subject = claims.Subject
		}
	}
	if subject == "" {
		subject = c.ClientIP()
	}

	window := time.Now().Unix() / int64(m.cfg.Window.Seconds())
	return fmt.Sprintf("ratelimit:%s:%d", subject, window)
}
