package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/backtrackjee/portal-backend/internal/database"
	"github.com/backtrackjee/portal-backend/internal/handler"
	"github.com/backtrackjee/portal-backend/internal/logger"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/backtrackjee/portal-backend/internal/router"
	"github.com/backtrackjee/portal-backend/internal/service"
	"github.com/backtrackjee/portal-backend/internal/validator"
	"github.com/backtrackjee/portal-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer rdb.Close()

	validator.Setup()

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	sessionCache := repository.NewSessionCache(rdb)

	// Services
	authService := service.NewAuthService(cfg, rdb)
	userService := service.NewUserService(userRepo)
	examService := service.NewExamService(examRepo, questionRepo, rdb, log)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, questionRepo, sessionCache, log)
	resultService := service.NewResultService(resultRepo, attemptRepo, examRepo, questionRepo, log)

	// Handlers
	handlers := router.Handlers{
		Auth:    handler.NewAuthHandler(authService, userService, log),
		Exam:    handler.NewExamHandler(examService, log),
		Attempt: handler.NewAttemptHandler(attemptService, log),
		Result:  handler.NewResultHandler(resultService, log),
		WS:      handler.NewWSHandler(attemptService, cfg, log),
	}

	engine := router.New(cfg, authService, handlers)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	answerWorker := worker.NewAnswerWorker(rdb, attemptRepo, log)
	scoringWorker := worker.NewScoringWorker(rdb, resultService, log)

	wg.Add(2)
	go func() {
		defer wg.Done()
		answerWorker.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		scoringWorker.Run(workerCtx)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	// Workers stop after the server so in-flight submits still get queued
	// and drained.
	stopWorkers()
	wg.Wait()

	log.Info().Msg("Shutdown complete")
}
