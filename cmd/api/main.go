package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hrms/internal/api"
	"hrms/internal/attendance"
	"hrms/internal/config"
	"hrms/internal/employee"
	"hrms/internal/httpmiddleware"
	"hrms/internal/store"
	"hrms/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Development: !cfg.Production()})
	defer func() { _ = log.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func run(cfg config.App, log *zap.Logger) error {
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	log.Info("database ready", zap.String("dialect", string(db.Dialect)))

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	opts := api.Options{
		Production:  cfg.Production(),
		CORSOrigins: cfg.CORSOrigins,
	}
	if redisClient != nil {
		if !redisClient.Healthy(ctx) {
			log.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
		opts.Idempotency = httpmiddleware.NewIdempotency(redisClient.Client, cfg.IdempotencyTTL, log)
	} else {
		log.Info("redis not configured (REDIS_ADDR not set), idempotency replay disabled")
	}
	if cfg.RateLimitPerMin > 0 {
		if cfg.RateLimitBackend == "redis" && redisClient != nil {
			opts.Limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
		} else {
			opts.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
		}
	}

	h := api.NewHandler(db, redisClient,
		employee.NewService(db),
		attendance.NewService(db),
		log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(h, opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}

	log.Info("server exited")
	return nil
}
