// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/handlers"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/loader"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/narrative"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/report"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/runstore"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/telemetry"
)

// loadScenario reads the scenario named by AUDIT_SCENARIO, falling back to
// the built-in synthetic baseline when the variable is unset.
func loadScenario() (*datatypes.AuditScenario, error) {
	path := os.Getenv("AUDIT_SCENARIO")
	if path == "" {
		slog.Info("AUDIT_SCENARIO not set. Using the built-in synthetic baseline.")
		return datatypes.DefaultScenario(), nil
	}
	return datatypes.LoadScenario(path)
}

func main() {
	port := os.Getenv("AUDIT_PORT")
	if port == "" {
		port = "5000"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Init telemetry ---
	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		log.Fatalf("failed to setup telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	meter := otel.Meter("safetai.audit")
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		log.Fatalf("FATAL: Could not create the audit metrics: %v", err)
	}

	// --- Load the scenario and its dataset ---
	scenario, err := loadScenario()
	if err != nil {
		log.Fatalf("FATAL: Could not load the audit scenario: %v", err)
	}

	ds, err := loader.Resolve(scenario.Dataset, scenario.Config.Seed)
	if err != nil {
		log.Fatalf("FATAL: Could not resolve the audit dataset: %v", err)
	}
	slog.Info("Dataset ready",
		"scenario", scenario.Metadata.ID,
		"tracts", len(ds.Tracts),
		"counters", len(ds.Counters))
	if fresh := loader.ValidateFreshness(ds.LoadedAt, loader.DefaultMaxAgeDays); !fresh.Valid {
		slog.Warn("Dataset freshness check failed", "age_days", fresh.AgeDays, "detail", fresh.Message)
	}

	reg := handlers.NewRegistry()
	reg.SetDataset(ds)

	// --- Run the audit ---
	runner := &report.Runner{Logger: logger}
	if narCfg := narrative.ConfigFromEnv(); narCfg.Enabled() {
		summarizer, err := narrative.NewSummarizer(narCfg, logger)
		if err != nil {
			slog.Warn("Narrative summarizer unavailable. Reports will carry no narrative.", "error", err)
		} else {
			runner.Narrator = summarizer
			slog.Info("Using OpenAI narrative summaries", "model", narCfg.Model)
		}
	} else {
		slog.Info("OPENAI_API_KEY not set. Reports will carry no narrative.")
	}

	start := time.Now()
	rep, err := runner.Run(ctx, scenario, ds.Tracts, ds.Counters)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	metrics.RunDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		log.Fatalf("FATAL: The audit run failed: %v", err)
	}
	reg.SetReport(rep)

	// --- Persist the run (optional) ---
	var store *runstore.Store
	storePath := os.Getenv("AUDIT_STORE_PATH")
	if storePath != "" {
		cfg := runstore.DefaultConfig()
		cfg.Path = storePath
		cfg.Logger = logger

		store, err = runstore.Open(cfg)
		if err != nil {
			log.Fatalf("FATAL: Could not open the run store at %s: %v", storePath, err)
		}
		defer store.Close()

		if err := store.Put(ctx, rep); err != nil {
			slog.Error("Failed to persist the completed run", "run_id", rep.RunID, "error", err)
		}

		if _, err := metrics.RegisterStoredRuns(meter, func() int64 {
			runs, err := store.List(context.Background())
			if err != nil {
				return 0
			}
			return int64(len(runs))
		}); err != nil {
			slog.Warn("Could not register the stored-runs gauge", "error", err)
		}
	} else {
		slog.Info("AUDIT_STORE_PATH not set. Run persistence disabled.")
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("safetai-audit"))
	router.Use(handlers.MetricsMiddleware(metrics))

	handlers.SetupRoutes(router, reg, store, metrics)

	log.Println("Starting the audit server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
