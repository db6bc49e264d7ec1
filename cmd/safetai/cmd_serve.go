// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/handlers"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/loader"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/narrative"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/report"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/telemetry"
)

// runServe is the laptop equivalent of the audit service deployment: run
// the scenario once, persist the report, serve it over HTTP. Unlike the
// service, startup failures are fatal to the command.
func runServe(cmd *cobra.Command, _ []string) {
	port := servePort
	if port == "" {
		port = os.Getenv("AUDIT_PORT")
	}
	if port == "" {
		port = "5000"
	}

	ctx := context.Background()

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

	scenario, err := loadScenarioFromFlag()
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

	runner := &report.Runner{Logger: slog.Default()}
	if narCfg := narrative.ConfigFromEnv(); narCfg.Enabled() {
		summarizer, err := narrative.NewSummarizer(narCfg, slog.Default())
		if err != nil {
			slog.Warn("Narrative summarizer unavailable. Reports will carry no narrative.", "error", err)
		} else {
			runner.Narrator = summarizer
			slog.Info("Using OpenAI narrative summaries", "model", narCfg.Model)
		}
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

	store, err := openStore()
	if err != nil {
		log.Fatalf("FATAL: Could not open the run store at %s: %v", resolveStorePath(), err)
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

	router := gin.Default()
	router.Use(otelgin.Middleware("safetai-audit"))
	router.Use(handlers.MetricsMiddleware(metrics))

	handlers.SetupRoutes(router, reg, store, metrics)

	ux.Success(fmt.Sprintf("Audit complete. Serving run %s on port %s", rep.RunID, port))
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
