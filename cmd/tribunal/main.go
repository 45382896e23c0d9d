package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ahrav/go-tribunal/infrastructure/middleware"
	"github.com/ahrav/go-tribunal/internal/application"
)

func main() {
	var (
		configPath   = flag.String("config", "tribunal.yaml", "Path to the service configuration file")
		documentPath = flag.String("document", "", "Path to the document to analyze")
		query        = flag.String("query", "", "Question to answer against the document")
		showHealth   = flag.Bool("health", false, "Print the backend health report after the decision")
		verbose      = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if *documentPath == "" || *query == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := buildLogger(*verbose)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	document, err := os.ReadFile(*documentPath)
	if err != nil {
		logger.Fatal("failed to read document", zap.Error(err))
	}

	metrics := middleware.NewPrometheusMetrics(nil)
	analyzer, err := application.BuildEngine(cfg, string(document), logger, metrics)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decision, err := analyzer.AnalyzeQuery(ctx, *query)
	if err != nil {
		logger.Fatal("analysis aborted", zap.Error(err))
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		logger.Fatal("failed to encode decision", zap.Error(err))
	}
	fmt.Println(string(out))

	if *showHealth {
		report, err := json.MarshalIndent(analyzer.HealthReport(), "", "  ")
		if err != nil {
			logger.Fatal("failed to encode health report", zap.Error(err))
		}
		fmt.Println(string(report))
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
