// Package main provides the worker application entry point.
// The worker dispatches background task-execution jobs pulled off RabbitMQ.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/taskexec-worker/internal/adapter/ai"
	"github.com/fairyhunter13/taskexec-worker/internal/adapter/orchestrator"
	"github.com/fairyhunter13/taskexec-worker/internal/adapter/queue"
	"github.com/fairyhunter13/taskexec-worker/internal/adapter/storage"
	"github.com/fairyhunter13/taskexec-worker/internal/adapter/store"
	"github.com/fairyhunter13/taskexec-worker/internal/agent"
	"github.com/fairyhunter13/taskexec-worker/internal/config"
	"github.com/fairyhunter13/taskexec-worker/internal/dispatch"
	"github.com/fairyhunter13/taskexec-worker/internal/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup logging
	logger := observability.SetupLogger(cfg.OTELServiceName, cfg.NodeEnv)
	slog.SetDefault(logger)

	// Register Prometheus metrics in the worker process and expose them on a
	// dedicated /metrics endpoint.
	observability.RegisterDefault()
	go func() {
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		if err := http.ListenAndServe(addr, observability.NewMetricsRouter()); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.NodeEnv))

	ctx := context.Background()

	// Task-state store (C2)
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	taskStore := store.New(pool, cfg.DatabaseURL)

	// Object store (C1)
	objectStore, err := storage.New(ctx, storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		Region:    cfg.MinioRegion,
	})
	if err != nil {
		slog.Error("object store connection failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Orchestrator client (C3)
	orchestratorClient := orchestrator.New(cfg.OrchestratorURL, cfg.OrchestratorTimeout)

	// AI helper (C4)
	aiHelper := ai.New(ai.Config{
		AIProvider:       cfg.AIProvider,
		PerplexityAPIKey: cfg.PerplexityKey(),
		SambanovaAPIKey:  cfg.SambanovaAPIKey,
		SambanovaBaseURL: cfg.SambanovaBaseURL,
		SambanovaModel:   cfg.SambanovaModel,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
	})

	// Queue client (transport for C6)
	queueClient, err := queue.New(cfg.RabbitURL)
	if err != nil {
		slog.Error("queue connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			slog.Error("failed to close queue client", slog.Any("error", err))
		}
	}()

	// Agent registry (C5)
	registry := agent.NewRegistry(agent.Deps{
		Storage:             objectStore,
		TaskStore:           taskStore,
		AI:                  aiHelper,
		Orchestrator:        orchestratorClient,
		OrchestratorBaseURL: cfg.OrchestratorURL,
		IsProduction:        cfg.IsProduction(),
		EmailProvider:       cfg.EmailProvider,
		GmailUser:           cfg.GmailUser,
		GmailAppPassword:    cfg.GmailAppPassword,
		SendgridAPIKey:      cfg.SendgridAPIKey,
		SendgridFromEmail:   cfg.SendgridFromEmail,
	})

	// Dispatcher (C6)
	dispatcher := &dispatch.Dispatcher{
		Queue:        queueClient,
		TaskStore:    taskStore,
		Orchestrator: orchestratorClient,
		Storage:      objectStore,
		Registry:     registry,
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	slog.Info("starting dispatcher")
	go func() {
		if err := dispatcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("dispatcher stopped", slog.Any("error", err))
		}
	}()

	slog.Info("worker started successfully, waiting for shutdown signal")
	slog.Info("send signal TERM or INT to terminate the process")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	cancelRun()
	slog.Info("worker stopped")
}
