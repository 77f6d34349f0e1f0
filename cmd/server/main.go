package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/router"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
	"github.com/stemsi/exstem-assessment/internal/worker"
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
		Msg("Starting ExStem assessment engine")

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
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	examCache := repository.NewExamCache(rdb, cfg.ExamCacheTTL)
	activityRepo := repository.NewActivityRepository(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	examService := service.NewExamService(examRepo, questionRepo, examCache, log)
	accessService := service.NewAccessService(examService, sessionRepo, resultRepo, log)
	clockService := service.NewClockService(sessionRepo, examService, activityRepo, log)
	answerService := service.NewAnswerService(sessionRepo, examService, answerRepo, log)
	paperService := service.NewPaperService(sessionRepo, examService, log)
	violationService := service.NewViolationService(sessionRepo, violationRepo, log)
	submissionService := service.NewSubmissionService(sessionRepo, examService, submissionRepo, activityRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	sessionServices := handler.SessionServices{
		Access:     accessService,
		Clock:      clockService,
		Answers:    answerService,
		Paper:      paperService,
		Violations: violationService,
		Submission: submissionService,
	}
	handlers := &router.Handlers{
		Health:  handler.NewHealthHandler(database.NewHealthChecker(pool, rdb)),
		Session: handler.NewSessionHandler(sessionServices, log),
		Exam:    handler.NewExamHandler(examService, log),
		WS:      handler.NewWSHandler(sessionServices, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	heartbeatWorker := worker.NewHeartbeatWorker(sessionRepo, rdb, cfg.HeartbeatBatchSize, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		heartbeatWorker.Start(workerCtx)
	}()

	if cfg.ReconcileInterval > 0 {
		expiryWorker := worker.NewExpiryWorker(submissionService, cfg.ReconcileInterval, cfg.ReconcileBatchSize, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			expiryWorker.Start(workerCtx)
		}()
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load published and active exams into Redis BEFORE accepting traffic.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the heartbeat buffer to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
