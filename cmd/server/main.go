package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizora/session-engine/internal/config"
	"github.com/quizora/session-engine/internal/database"
	"github.com/quizora/session-engine/internal/handler"
	"github.com/quizora/session-engine/internal/logger"
	"github.com/quizora/session-engine/internal/notify"
	"github.com/quizora/session-engine/internal/repository"
	"github.com/quizora/session-engine/internal/router"
	"github.com/quizora/session-engine/internal/service"
	"github.com/quizora/session-engine/internal/store"
	"github.com/quizora/session-engine/internal/submit"
	"github.com/quizora/session-engine/internal/validator"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Quizora Session Engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid Redis configuration")
	}
	defer rdb.Close()

	// ─── Open Local Durable Backup ─────────────────────────────────────
	backup, err := store.OpenSQLiteBackup(cfg.BackupDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open backup store")
	}
	defer backup.Close()

	// ─── Initialize Stores ─────────────────────────────────────────────
	pgStore := store.NewPostgresStore(pool)
	snapshots := store.NewLayeredSnapshotStore(pgStore, store.NewRedisSnapshotStore(rdb))
	probe := store.NewRedisProbe(rdb)

	// ─── Initialize Engine Collaborators ───────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool)
	pipeline := submit.NewPipeline(pgStore, backup, cfg.OutcomeBatchSize, log)
	hub := notify.NewHub(log)
	notifier := notify.Fanout{notify.NewLogNotifier(log), hub}

	// ─── Initialize Services ───────────────────────────────────────────
	sessionService := service.NewSessionService(
		questionRepo, snapshots, probe, pipeline, notifier, cfg, log,
	)

	// ─── Initialize Handlers ───────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService),
		WS:      handler.NewWSHandler(sessionService, hub, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
