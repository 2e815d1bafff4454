package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/pixelboard/internal/api"
	"github.com/eldtechnologies/pixelboard/internal/api/middleware"
	"github.com/eldtechnologies/pixelboard/internal/broadcast"
	"github.com/eldtechnologies/pixelboard/internal/canvas"
	"github.com/eldtechnologies/pixelboard/internal/config"
	"github.com/eldtechnologies/pixelboard/internal/handlers"
	"github.com/eldtechnologies/pixelboard/internal/ratelimit"
	"github.com/eldtechnologies/pixelboard/internal/realtime"
	"github.com/eldtechnologies/pixelboard/internal/store"
)

const sweepInterval = time.Minute

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	for _, w := range cfg.Warnings {
		logger.Warn().Msg(w)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize grid store
	var grid store.GridStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		grid = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("sqlite open failed")
		}
		grid = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite grid")
	}
	defer grid.Close()

	// Initialize rate limit state
	var (
		redisStore *store.RedisStore
		limiter    ratelimit.Limiter
		window     ratelimit.WindowLimiter
	)
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")

		limiter = ratelimit.NewRedisLimiter(redisStore.Client(), cfg.Cooldown)
		window = ratelimit.NewRedisWindow(redisStore.Client(), "ratelimit:place", cfg.PlaceRateLimit, cfg.PlaceRateWindow)
	} else {
		memLimiter := ratelimit.NewMemoryLimiter(cfg.Cooldown)
		memWindow := ratelimit.NewMemoryWindow(cfg.PlaceRateLimit, cfg.PlaceRateWindow)
		go memLimiter.Run(ctx, sweepInterval)
		go memWindow.Run(ctx, sweepInterval)
		limiter, window = memLimiter, memWindow
	}

	// Wire the canvas
	hub := broadcast.NewHub(grid, logger, broadcast.DefaultQueueSize)
	arbiter := canvas.NewArbiter(canvas.Config{Width: cfg.Width, Height: cfg.Height}, grid, limiter, hub, logger)
	h := handlers.NewHandler(arbiter, hub, grid, redisStore, cfg.Cooldown.Milliseconds(), logger)

	// Create router
	router := api.NewRouter(logger, h, api.Options{
		CORSOrigins:  cfg.CORSOrigins(),
		StaticDir:    cfg.StaticDir,
		TrustProxy:   cfg.TrustProxy,
		PlaceLimiter: middleware.NewRateLimiter(window, "place", logger),
		Realtime:     realtime.NewServer(arbiter, hub, cfg.Cooldown, cfg.CORSOrigins(), logger),
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Int("width", cfg.Width).
			Int("height", cfg.Height).
			Dur("cooldown", cfg.Cooldown).
			Bool("trust_proxy", cfg.TrustProxy).
			Msg("starting pixelboard server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Shutdown does not wait for hijacked connections; closing the hub ends
	// every real-time session.
	hub.Close()
	stop()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
