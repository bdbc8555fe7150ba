package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"softwarnews/internal/config"
	"softwarnews/internal/db"
	"softwarnews/internal/router"
	"softwarnews/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Database
	gormLevel := logger.Warn
	if cfg.SlogLevel() == slog.LevelDebug {
		gormLevel = logger.Info
	}
	conn, err := db.Open(cfg.DatabaseURL, gormLevel)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	rdb := connectRedis(cfg.RedisURL)
	if rdb != nil {
		defer rdb.Close()
	}

	// Services
	tally := services.NewTallyService(conn)
	content := services.NewContentService(conn, tally)
	feed := services.NewFeedService(conn)
	identity := services.NewIdentityService(conn)

	sources := []services.CandidateSource{
		services.NewSearchSource(cfg.CurationBaseURL, cfg.CurationQueries, cfg.CurationLookback, cfg.CurationTimeout),
	}
	if len(cfg.CurationFeeds) > 0 {
		sources = append(sources, services.NewFeedSource(cfg.CurationFeeds, cfg.CurationTimeout))
	}
	curation, err := services.NewCurationService(cfg.CurationCacheTTL, cfg.CurationTimeout, sources...)
	if err != nil {
		slog.Error("Failed to initialize curation", "error", err)
		os.Exit(1)
	}
	defer curation.Close()

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("softwarnews_session", store))

	router.RegisterRoutes(r, router.Deps{
		DB:             conn,
		Redis:          rdb,
		Identity:       identity,
		Content:        content,
		Feed:           feed,
		Tally:          tally,
		Curation:       curation,
		VoteRateLimit:  cfg.VoteRateLimit,
		VoteRateWindow: cfg.VoteRateWindow,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

// connectRedis returns nil when no URL is configured or the URL is invalid.
func connectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		slog.Info("REDIS_URL not set, vote rate limiting disabled")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("Invalid REDIS_URL, vote rate limiting disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// 限流中间件在 redis 不可用时放行
		slog.Warn("Redis unreachable at startup", "error", err)
	}
	return rdb
}
