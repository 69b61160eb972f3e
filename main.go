package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"busstop/pkg/arrivals"
	"busstop/pkg/config"
	"busstop/pkg/console"
	"busstop/pkg/geocode"
	"busstop/pkg/httpjson"
	"busstop/pkg/input"
	"busstop/pkg/journey"
	"busstop/pkg/logging"
	"busstop/pkg/metrics"
	"busstop/pkg/pipeline"
	"busstop/pkg/postcodes"
	"busstop/pkg/profiling"
	"busstop/pkg/stops"
	"busstop/pkg/tfl"
	"busstop/pkg/tracing"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := logging.InitLogging(cfg.Logging.Level, cfg.Logging.Format)

	shutdownTracing, err := tracing.InitTracing()
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		return 1
	}
	defer shutdownTracing()

	shutdownMetrics, err := metrics.InitMetrics()
	if err != nil {
		logger.Error("Failed to initialize metrics", "error", err)
		return 1
	}
	defer shutdownMetrics()

	shutdownProfiling, err := profiling.InitProfiling()
	if err != nil {
		logger.Error("Failed to initialize profiling", "error", err)
		return 1
	}
	defer shutdownProfiling()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := newSession(cfg, logger)
	if err != nil {
		logger.Error("Failed to create session", "error", err)
		return 1
	}

	logger.Debug("Starting session",
		"region", cfg.Search.Region,
		"stop_count", cfg.Search.StopCount,
		"arrival_count", cfg.Search.ArrivalCount,
		"interleaved", cfg.Search.Interleaved,
	)

	state, err := session.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Session interrupted", "state", state)
			return 1
		}
		logger.Error("Session ended early", "state", state, "error", err)
		return 1
	}
	return 0
}

func newSession(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	term := console.New(os.Stdin, os.Stdout)
	retry := input.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts}
	validator := input.New(term, term, cfg.Search, retry)

	getter := httpjson.NewClient(cfg.API.Timeout, logger)
	postcodeClient := postcodes.NewClient(getter, cfg.API.PostcodesURL)
	tflClient := tfl.NewClient(getter, cfg.API.TfLURL, cfg.API.TfLAppKey)

	return pipeline.New(pipeline.Config{StopCount: cfg.Search.StopCount}, pipeline.Components{
		Geocoder: geocode.NewResolver(validator, postcodeClient, cfg.Search.Region, retry, term, logger),
		Stops:    stops.NewFinder(validator, tflClient, logger),
		Arrivals: arrivals.NewAggregator(tflClient, term, cfg.Search.ArrivalCount, cfg.Search.Interleaved, logger),
		Journey:  journey.NewPlanner(tflClient, term, logger),
		Asker:    validator,
		Out:      term,
		Logger:   logger,
	})
}
