// Command worker consumes the valuation pipeline stages from Redpanda:
// scoring and analysis, presentation generation, email notification.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valorize-app/valorize/internal/adapter/ai"
	"github.com/valorize-app/valorize/internal/adapter/ai/gemini"
	"github.com/valorize-app/valorize/internal/adapter/deck/gamma"
	"github.com/valorize-app/valorize/internal/adapter/dedupe"
	"github.com/valorize-app/valorize/internal/adapter/mail"
	"github.com/valorize-app/valorize/internal/adapter/observability"
	"github.com/valorize-app/valorize/internal/adapter/queue/redpanda"
	"github.com/valorize-app/valorize/internal/adapter/repo/postgres"
	"github.com/valorize-app/valorize/internal/config"
	"github.com/valorize-app/valorize/internal/domain"
	"github.com/valorize-app/valorize/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Expose worker metrics on a dedicated endpoint; the API server owns the
	// public /metrics route.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
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

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	recordRepo := postgres.NewRecordRepo(pool)
	accountRepo := postgres.NewAccountRepo(pool)

	topics := redpanda.Topics{
		Orchestrate:  cfg.TopicOrchestrate,
		Presentation: cfg.TopicPresentation,
		Notification: cfg.TopicNotification,
	}
	// Transactional ID distinct from the API server's producer so the two
	// processes never fence each other.
	producer, err := redpanda.NewProducerWithTransactionalID(cfg.KafkaBrokers, topics, "valorize-worker-producer")
	if err != nil {
		slog.Error("queue producer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close queue producer", slog.Any("error", err))
		}
	}()

	claimer := dedupe.New(cfg.RedisAddr)
	defer func() { _ = claimer.Close() }()

	analyzer := ai.NewAdapter(gemini.New(cfg), cfg.PromptTokenLimit)
	deck := gamma.New(cfg)

	var mailer domain.Mailer
	if cfg.MailEnabled() {
		mailer = mail.New(cfg)
	} else {
		slog.Warn("SMTP not configured, report-ready emails disabled")
	}

	stages := pipeline.NewStages(recordRepo, accountRepo, producer, analyzer, deck, mailer, claimer, cfg)

	consumer, err := redpanda.NewConsumer(
		cfg.KafkaBrokers,
		"valorize-workers",
		topics,
		redpanda.StageHandlers{
			Orchestrate:  stages.HandleOrchestration,
			Presentation: stages.HandlePresentation,
			Notification: stages.HandleNotification,
		},
		cfg.ConsumerMaxConcurrency,
	)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := consumer.Start(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("consumer error", slog.Any("error", err))
		}
	}()

	slog.Info("worker started, waiting for shutdown signal")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	cancel()
	slog.Info("worker stopped")
}
