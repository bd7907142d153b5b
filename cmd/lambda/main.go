package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cashbridge/advance-engine/internal/advance"
	"github.com/cashbridge/advance-engine/internal/advance/graph"
	"github.com/cashbridge/advance-engine/internal/advance/ml"
	"github.com/cashbridge/advance-engine/internal/app"
	"github.com/cashbridge/advance-engine/internal/bank"
	"github.com/cashbridge/advance-engine/internal/config"
	"github.com/cashbridge/advance-engine/internal/export"
	"github.com/cashbridge/advance-engine/internal/logging"
	"github.com/cashbridge/advance-engine/internal/store"
	"github.com/cashbridge/advance-engine/internal/transport/lambdatransport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	library := advance.DefaultLibrary()
	registry, err := graph.LoadDefault(library.Has)
	if err != nil {
		logger.Error("load graph", slog.String("error", err.Error()))
		os.Exit(1)
	}

	gateway := ml.NewHTTPGateway(cfg.MLURL, cfg.MLTimeout, logger)
	executor := advance.NewExecutor(library, gateway,
		advance.WithNodeLatencyObserver(advance.NewNodeLatencyLogger(logger)),
		advance.WithExecutorLogger(logger))
	orchestrator := advance.NewOrchestrator(registry, executor, st,
		advance.WithOrchestratorLogger(logger))

	exporter := export.NewExporter(registry, cfg.ExportCacheMax, cfg.DotBin)
	client := bank.NewClient(cfg.BankURL, cfg.IncomeURL, cfg.BankTimeout)
	svc := app.NewService(client, client, st, orchestrator, exporter, cfg.HistoryLimit, logger)

	lambda.Start(lambdatransport.NewHandler(svc).Handle)
}
