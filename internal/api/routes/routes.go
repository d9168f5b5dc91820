// Package routes defines the HTTP routes for the relay service.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/lumenapps/relay-service/internal/api/handlers"
	"github.com/lumenapps/relay-service/internal/api/middleware"
)

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler *handlers.HealthHandler
	AuthHandler   *handlers.AuthHandler
	ChatHandler   *handlers.ChatHandler
	Gate          *middleware.Gate
	RateLimit     *middleware.RateLimitMiddleware
}

// Setup configures all routes on the Gin engine. The gate runs as global
// middleware: it classifies every inbound path, so routes never re-check
// authentication themselves.
func Setup(r *gin.Engine, cfg *Config) {
	r.Use(cfg.Gate.Handle())

	v1 := r.Group("/api/v1")
	{
		// Health check routes (unclassified, no session required)
		v1.GET("/health", cfg.HealthHandler.Health)
		v1.GET("/ready", cfg.HealthHandler.Ready)
		v1.GET("/live", cfg.HealthHandler.Live)

		auth := v1.Group("/auth")
		{
			auth.POST("/login", cfg.AuthHandler.Login)
			auth.POST("/logout", cfg.AuthHandler.Logout)
			// Protected by the gate via path classification.
			auth.GET("/session", cfg.AuthHandler.Session)
		}

		chat := v1.Group("/chat")
		{
			chat.POST("/stream", cfg.RateLimit.Limit(), cfg.ChatHandler.Stream)
			chat.GET("/latest-id", cfg.ChatHandler.LatestChatID)
		}
	}

	r.NoRoute(middleware.NotFound())
	r.NoMethod(middleware.MethodNotAllowed())
}

// SetupWithMiddleware sets up routes with common middleware.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware, corsCfg middleware.CORSConfig) {
	r.Use(loggingMw.Logger())
	r.Use(errorMw.Recovery())
	r.Use(middleware.NewCORSMiddleware(corsCfg))
	r.Use(gin.Recovery())

	Setup(r, cfg)
}
