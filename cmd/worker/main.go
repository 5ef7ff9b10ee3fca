package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/corpus-qa/internal/bootstrap"
	"github.com/kirillkom/corpus-qa/internal/config"
	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/observability/logging"
	"github.com/kirillkom/corpus-qa/internal/observability/metrics"
)

const (
	taskTimeout    = 5 * time.Minute
	sweepBatchSize = 10
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := serveMetrics(cfg.WorkerMetricsPort, workerMetrics, logger)

	go runSweep(ctx, app, workerMetrics, time.Duration(cfg.WorkerSweepSeconds)*time.Second, logger)

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIngestTasks(ctx, func(handlerCtx context.Context, msg domain.TaskMessage) error {
		if !msg.EnqueuedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(msg.EnqueuedAt))
		}

		workerMetrics.StartTask()
		start := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, taskTimeout)
		defer cancel()
		err := app.ProcessUC.ProcessTask(processCtx, msg.TaskID)
		workerMetrics.FinishTask("worker", time.Since(start), err)
		return err
	})
	if err != nil {
		logger.Error("subscription failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown incomplete", "error", err)
	}
}

func serveMetrics(port string, workerMetrics *metrics.WorkerMetrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("worker metrics listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return server
}

// runSweep drains pending tasks the queue never delivered. The first pass
// runs immediately so tasks stranded by a worker outage do not wait a full
// interval.
func runSweep(ctx context.Context, app *bootstrap.App, workerMetrics *metrics.WorkerMetrics, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	sweep := func() {
		n, err := app.ProcessUC.ProcessPending(ctx, sweepBatchSize)
		if err != nil {
			logger.Error("sweep failed", "error", err)
			return
		}
		if n > 0 {
			workerMetrics.RecordSwept("worker", n)
			logger.Info("sweep recovered tasks", "count", n)
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
