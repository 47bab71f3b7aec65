package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"kyc-service/internal/platform/config"
	"kyc-service/internal/platform/logger"
	"kyc-service/internal/scoring"
)

// main runs the scoring worker: consume dispatched jobs, score the session,
// and report the verdict over the API server's internal callback.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()

	if cfg.WorkerToken == "" {
		log.Error("KYC_WORKER_TOKEN is required")
		os.Exit(1)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.QueueConcurrency,
	})

	processor := scoring.NewProcessor(
		scoring.NewStubScorer(),
		scoring.NewCallbackClient(cfg.CallbackURL, cfg.WorkerToken),
		log,
	)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info("scoring worker starting", "concurrency", cfg.QueueConcurrency)
	if err := server.Run(processor.Handler()); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
