// Package main is the entry point for the session-gated streaming relay.
// @title Streaming Relay Service API
// @version 1.0
// @description Session-gated relay between the browser client and the chat backend: credential refresh, request gating, and stream translation

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https
package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lumenapps/relay-service/docs"
	"github.com/lumenapps/relay-service/internal/api/handlers"
	"github.com/lumenapps/relay-service/internal/api/middleware"
	"github.com/lumenapps/relay-service/internal/api/routes"
	"github.com/lumenapps/relay-service/internal/auth/session"
	"github.com/lumenapps/relay-service/internal/config"
	"github.com/lumenapps/relay-service/internal/core/cache"
	rediscache "github.com/lumenapps/relay-service/internal/infrastructure/cache/redis"
	"github.com/lumenapps/relay-service/internal/relay"
	"github.com/lumenapps/relay-service/internal/services/backend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("failed to load configuration: %v", err)
	}

	setupLogging(cfg.Log)

	cacheClient, err := createCacheClient(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache client")
	}
	defer cacheClient.Close()

	backendClient, err := backend.NewClient(&backend.ClientConfig{
		BaseURL:       cfg.Backend.URL,
		Timeout:       cfg.Backend.Timeout,
		StreamTimeout: cfg.Backend.StreamTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize backend client")
	}

	store := session.NewStore(session.CookieOptions{
		Secure:     cfg.Auth.CookieSecure,
		Domain:     cfg.Auth.CookieDomain,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})

	manager, err := session.NewManager(&session.ManagerConfig{
		Store:     store,
		Refresher: backendClient,
		Skew:      cfg.Auth.Skew,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize lifecycle manager")
	}

	streamRelay, err := relay.New(backendClient, relay.Config{
		GenerationTimeout: cfg.Backend.StreamTimeout,
		CookieSecure:      cfg.Auth.CookieSecure,
		CookieDomain:      cfg.Auth.CookieDomain,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize relay")
	}

	gin.SetMode(cfg.Server.GinMode)

	router := setupRouter(cfg, cacheClient, backendClient, store, manager, streamRelay)

	srv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: router,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

// setupLogging configures the global zerolog logger.
func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// createCacheClient creates a cache client based on the configuration.
func createCacheClient(cfg config.CacheConfig) (cache.Client, error) {
	switch cache.Type(cfg.Type) {
	case cache.TypeRedis:
		return rediscache.NewClient(rediscache.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	default:
		log.Fatal().Str("type", cfg.Type).Msg("unsupported cache type")
		return nil, nil
	}
}

// setupRouter creates and configures the Gin router.
func setupRouter(cfg *config.Config, cacheClient cache.Client, backendClient *backend.Client, store *session.Store, manager *session.Manager, streamRelay *relay.Relay) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	loggingMw := middleware.NewLoggingMiddleware()
	errorMw := middleware.NewErrorMiddleware()

	gate := middleware.NewGate(manager, store, middleware.GateConfig{
		LoginPath:         cfg.Gate.LoginPath,
		HomePath:          cfg.Gate.HomePath,
		ProtectedPrefixes: cfg.Gate.ProtectedPrefixes,
		AuthOnlyPrefixes:  cfg.Gate.AuthOnlyPrefixes,
	})

	rateLimitMw := middleware.NewRateLimitMiddleware(cacheClient, middleware.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	})

	routesCfg := &routes.Config{
		HealthHandler: handlers.NewHealthHandler(cacheClient, backendClient),
		AuthHandler:   handlers.NewAuthHandler(backendClient, manager),
		ChatHandler:   handlers.NewChatHandler(streamRelay),
		Gate:          gate,
		RateLimit:     rateLimitMw,
	}

	routes.SetupWithMiddleware(router, routesCfg, loggingMw, errorMw, middleware.DefaultCORSConfig())

	// Swagger documentation endpoint
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}
