package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig contains the configuration for CORS middleware. Credentials are
// always allowed: the browser client authenticates with cookies.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       int
}

// DefaultCORSConfig returns the development defaults.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
		MaxAge: 86400,
	}
}

// NewCORSMiddleware creates a CORS middleware with the given configuration.
// Wildcard origins are not supported because credentialed requests forbid
// them.
func NewCORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	allowMethods := strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions,
	}, ", ")
	allowHeaders := strings.Join([]string{
		"Origin", "Content-Type", "Accept", "X-Request-ID", "Cache-Control",
	}, ", ")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		for _, allowed := range cfg.AllowOrigins {
			if allowed == origin {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Access-Control-Allow-Methods", allowMethods)
				c.Header("Access-Control-Allow-Headers", allowHeaders)
				c.Header("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				c.Header("Vary", "Origin")
				break
			}
		}

		// Preflight must be answered before the gate and route handlers run.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
