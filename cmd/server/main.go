package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kyc-service/internal/dispatch"
	"kyc-service/internal/evidence"
	"kyc-service/internal/platform/config"
	"kyc-service/internal/platform/database"
	"kyc-service/internal/platform/httpserver"
	"kyc-service/internal/platform/logger"
	"kyc-service/internal/platform/middleware"
	platformredis "kyc-service/internal/platform/redis"
	"kyc-service/internal/session"
	sessionhandler "kyc-service/internal/session/handler"
	sessionmetrics "kyc-service/internal/session/metrics"
	"kyc-service/internal/webhook"
	webhookhandler "kyc-service/internal/webhook/handler"
	webhookmetrics "kyc-service/internal/webhook/metrics"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()

	redisClient, err := platformredis.New(ctx, cfg)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var (
		sessionStore  session.Store
		evidenceStore session.EvidenceStore
		resultStore   session.ResultStore
		webhookStore  webhook.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Error("schema bootstrap failed", "error", err)
			os.Exit(1)
		}
		sessionStore = session.NewPostgresStore(pool)
		evidenceStore = session.NewPostgresEvidenceStore(pool)
		resultStore = session.NewPostgresResultStore(pool)
		webhookStore = webhook.NewPostgresStore(pool)
		log.Info("using postgres stores")
	} else {
		sessionStore = session.NewInMemoryStore()
		evidenceStore = session.NewInMemoryEvidenceStore()
		resultStore = session.NewInMemoryResultStore()
		webhookStore = webhook.NewInMemoryStore()
		log.Warn("no database configured, using in-memory stores")
	}

	var blobs evidence.BlobStore
	if cfg.UseS3() {
		s3, err := evidence.NewS3Store(cfg)
		if err != nil {
			log.Error("object storage init failed", "error", err)
			os.Exit(1)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Error("bucket bootstrap failed", "error", err)
			os.Exit(1)
		}
		blobs = s3
	} else {
		blobs = evidence.NewFileStore(cfg.StorageRoot)
	}

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	reg := prometheus.DefaultRegisterer

	notifier := webhook.NewNotifier(webhookStore, log, webhookmetrics.New(reg), cfg.WebhookWorkers, cfg.WebhookTimeout)
	webhookService := webhook.NewService(webhookStore, log)

	sessionService := session.NewService(
		sessionStore,
		evidenceStore,
		resultStore,
		blobs,
		dispatch.NewQueueDispatcher(queueClient),
		session.NewRedisDispatchGuard(redisClient.Client, cfg.SessionTTL),
		log,
		sessionmetrics.New(reg),
		cfg.SessionTTL,
	)
	sessionService.SetNotifier(notifier)

	sessionHandler := sessionhandler.New(sessionService, cfg.WorkerToken, log)
	webhookHandler := webhookhandler.New(webhookService, log)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(log))

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Health(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth([]byte(cfg.JWTSigningKey), log))
		sessionHandler.Register(r)
		webhookHandler.Register(r)
	})
	sessionHandler.RegisterInternal(router)

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("kyc-service listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
