// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/loader"
)

// runDataSynth writes a deterministic synthetic dataset in the same JSON
// shapes the loader reads back, so the output plugs straight into a
// scenario's dataset block.
func runDataSynth(cmd *cobra.Command, _ []string) {
	if synthTracts <= 0 || synthCounters <= 0 {
		ux.Error("Both --tracts and --counters must be positive.")
		return
	}

	tracts := loader.GenerateTracts(synthTracts, synthSeed)
	counters := loader.GenerateCounters(tracts, synthCounters, synthSeed)

	outDir := expandHome(synthOut)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		slog.Error("Failed to create the output directory", "path", outDir, "error", err)
		return
	}

	tractsPath := filepath.Join(outDir, "tracts.json")
	countersPath := filepath.Join(outDir, "counters.json")

	if err := writeJSON(tractsPath, tracts); err != nil {
		slog.Error("Failed to write the tract dataset", "path", tractsPath, "error", err)
		return
	}
	if err := writeJSON(countersPath, counters); err != nil {
		slog.Error("Failed to write the counter dataset", "path", countersPath, "error", err)
		return
	}

	ux.Success(fmt.Sprintf("Wrote %d tracts to %s", len(tracts), tractsPath))
	ux.Success(fmt.Sprintf("Wrote %d counter sites to %s", len(counters), countersPath))

	if ux.GetPersonality().ShowTips {
		ux.Muted("Point a scenario at this dataset:")
		ux.Muted(fmt.Sprintf("  dataset:\n    tracts_path: %s\n    counters_path: %s", tractsPath, countersPath))
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
