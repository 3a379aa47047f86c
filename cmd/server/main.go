// Package main provides the entry point for the lease-lock worker service.
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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kneutral-org/lease-lock/internal/config"
	"github.com/kneutral-org/lease-lock/internal/job"
	"github.com/kneutral-org/lease-lock/internal/lock"
	"github.com/kneutral-org/lease-lock/internal/logging"
	"github.com/kneutral-org/lease-lock/internal/metrics"
	"github.com/kneutral-org/lease-lock/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.NewLogger("lease-lock", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create database pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to reach database")
	}

	lockStore := lock.NewPostgresStore(pool)
	if err := lockStore.CreateSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to create lock schema")
	}

	jobStore := job.NewPostgresStore(pool)
	if err := jobStore.CreateSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to create job schema")
	}

	locker := lock.NewLocker(lockStore, logging.LockLogger(logger),
		lock.WithPollInterval(cfg.LockPollInterval),
	)

	// Placeholder handler; register real job handlers here.
	handler := func(ctx context.Context, j *job.Job) error {
		logger.Info().
			Str("jobId", j.ID).
			Str("resource", j.Resource).
			RawJSON("payload", payloadOrNull(j)).
			Msg("processing job")
		return nil
	}

	dispatcher := worker.NewDispatcher(jobStore, locker, handler, logger,
		worker.WithPollInterval(cfg.WorkerPollInterval),
		worker.WithLockTimeout(cfg.LockTimeout),
	)
	dispatcher.Start(ctx)

	// Setup Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	metrics.RegisterMetricsEndpoint(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down...")

	dispatcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited properly")
}

func payloadOrNull(j *job.Job) []byte {
	if len(j.Payload) == 0 {
		return []byte("null")
	}
	return j.Payload
}
