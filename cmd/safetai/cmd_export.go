// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/export"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/runstore"
)

// loadStoredRun fetches one run for an export command, translating the
// not-found case into a styled error.
func loadStoredRun(ctx context.Context, runID string) *datatypes.FullReport {
	store, err := openStore()
	if err != nil {
		slog.Error("Could not open the run store", "path", resolveStorePath(), "error", err)
		return nil
	}
	defer store.Close()

	rep, err := store.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			ux.Error(fmt.Sprintf("Run %s not found in the store.", runID))
		} else {
			slog.Error("Failed to load the run", "run_id", runID, "error", err)
		}
		return nil
	}
	return rep
}

func runExportTimeseries(cmd *cobra.Command, args []string) {
	runID := args[0]
	ctx := context.Background()

	rep := loadStoredRun(ctx, runID)
	if rep == nil {
		return
	}
	if rep.Crash == nil {
		ux.Error(fmt.Sprintf("Run %s has no crash report. Re-run with the crash domain enabled.", runID))
		return
	}

	// Credentials come from the environment, matching the service deployment
	cfg := export.ConfigFromEnv()
	if cfg.Token == "" {
		ux.Error("INFLUXDB_TOKEN not set. The export needs credentials for the InfluxDB instance.")
		return
	}

	sink, err := export.NewSink(cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to create the InfluxDB sink", "url", cfg.URL, "error", err)
		return
	}
	defer sink.Close()

	if err := sink.Ping(ctx); err != nil {
		slog.Error("InfluxDB is unreachable", "url", cfg.URL, "error", err)
		return
	}

	fmt.Printf("Exporting crash series for Run ID: %s to %s...\n", runID, cfg.URL)

	points, err := sink.ExportCrashSeries(ctx, rep.RunID, rep.Crash.TimeSeries)
	if err != nil {
		slog.Error("Export failed", "run_id", rep.RunID, "error", err)
		return
	}

	fmt.Printf("✅ Export complete: %d points written to bucket %s\n", points, cfg.Bucket)
}

func runExportCSV(cmd *cobra.Command, args []string) {
	runID := args[0]

	outputFlag, _ := cmd.Flags().GetString("output")
	outputFile := resolveOutputPath(outputFlag, fmt.Sprintf("audit_%s.csv", runID))

	ctx := context.Background()
	rep := loadStoredRun(ctx, runID)
	if rep == nil {
		return
	}
	if rep.Volume == nil {
		ux.Error(fmt.Sprintf("Run %s has no volume report. Re-run with the volume domain enabled.", runID))
		return
	}

	fmt.Printf("Exporting volume accuracy for Run ID: %s to %s...\n", runID, outputFile)

	f, err := os.Create(outputFile)
	if err != nil {
		slog.Error("Failed to create output file", "error", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("Failed to close output file", "error", closeErr)
		}
	}()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{
		"Quintile", "Label", "Counters", "Median_Income",
		"MAE", "MAPE", "Bias", "Mean_Error_Pct",
	}
	if err := writer.Write(header); err != nil {
		slog.Error("Failed to write CSV header", "error", err)
		return
	}

	count := 0
	for _, row := range rep.Volume.ByIncome.Rows {
		record := []string{
			row.Quintile.String(),
			row.Label,
			strconv.Itoa(row.Count),
			fmt.Sprintf("%.0f", row.MedianIncome),
			fmt.Sprintf("%.2f", row.MAE),
			fmt.Sprintf("%.2f", row.MAPE),
			fmt.Sprintf("%.2f", row.Bias),
			fmt.Sprintf("%.2f", row.MeanErrorPct),
		}
		if err := writer.Write(record); err != nil {
			slog.Error("Failed to write CSV row", "error", err)
			return
		}
		count++
	}

	fmt.Printf("✅ Export complete: %d rows written to %s\n", count, outputFile)
}
