package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cashbridge/advance-engine/internal/advance"
	"github.com/cashbridge/advance-engine/internal/advance/graph"
	"github.com/cashbridge/advance-engine/internal/advance/ml"
	"github.com/cashbridge/advance-engine/internal/app"
	"github.com/cashbridge/advance-engine/internal/bank"
	"github.com/cashbridge/advance-engine/internal/config"
	"github.com/cashbridge/advance-engine/internal/export"
	"github.com/cashbridge/advance-engine/internal/logging"
	"github.com/cashbridge/advance-engine/internal/metrics"
	"github.com/cashbridge/advance-engine/internal/store"
	"github.com/cashbridge/advance-engine/internal/transport/httptransport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Runtime, logger *slog.Logger) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	library := advance.DefaultLibrary()

	var registry *graph.Registry
	if cfg.GraphPath != "" {
		registry, err = graph.LoadFile(cfg.GraphPath, library.Has)
	} else {
		registry, err = graph.LoadDefault(library.Has)
	}
	if err != nil {
		return err
	}

	collector := metrics.New()
	asyncObs := advance.NewAsyncNodeLatencyObserver(collector, cfg.ObsBuffer)
	defer asyncObs.Close()

	gateway := ml.NewHTTPGateway(cfg.MLURL, cfg.MLTimeout, logger)
	executor := advance.NewExecutor(library, gateway,
		advance.WithNodeLatencyObserver(asyncObs),
		advance.WithExecutorLogger(logger))
	orchestrator := advance.NewOrchestrator(registry, executor, st,
		advance.WithRunObserver(collector),
		advance.WithOrchestratorLogger(logger))

	exporter := export.NewExporter(registry, cfg.ExportCacheMax, cfg.DotBin)
	client := bank.NewClient(cfg.BankURL, cfg.IncomeURL, cfg.BankTimeout)
	svc := app.NewService(client, client, st, orchestrator, exporter, cfg.HistoryLimit, logger)

	mux := http.NewServeMux()
	httptransport.NewHandler(svc).Register(mux)
	mux.Handle("GET /metrics", collector.Handler())

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.HTTPAddr), slog.Int("nodes", registry.Len()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
