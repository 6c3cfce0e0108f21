// Command server starts the valuation HTTP API.
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
	"time"

	"github.com/valorize-app/valorize/internal/adapter/dedupe"
	"github.com/valorize-app/valorize/internal/adapter/httpserver"
	"github.com/valorize-app/valorize/internal/adapter/observability"
	"github.com/valorize-app/valorize/internal/adapter/queue/redpanda"
	"github.com/valorize-app/valorize/internal/adapter/repo/postgres"
	"github.com/valorize-app/valorize/internal/app"
	"github.com/valorize-app/valorize/internal/config"
	"github.com/valorize-app/valorize/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
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
	producer, err := redpanda.NewProducer(cfg.KafkaBrokers, topics)
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close queue client", slog.Any("error", err))
		}
	}()

	// Redis is only probed here; the worker holds the stage claims.
	claimer := dedupe.New(cfg.RedisAddr)
	defer func() { _ = claimer.Close() }()

	submitSvc := usecase.NewSubmitService(recordRepo, accountRepo, producer)
	statusSvc := usecase.NewStatusService(recordRepo, cfg.DashboardBaseURL)

	// Records abandoned mid-flight by a crashed worker surface as FAILED.
	sweeper := app.NewStuckRecordSweeper(recordRepo, cfg.MaxProcessingAge, cfg.SweepInterval)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	dbCheck, redisCheck, queueCheck := app.BuildReadinessChecks(pool, claimer, producer)
	srv := httpserver.NewServer(cfg, submitSvc, statusSvc, dbCheck, redisCheck, queueCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
