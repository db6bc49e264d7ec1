// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/runstore"
)

func runRunsList(cmd *cobra.Command, _ []string) {
	store, err := openStore()
	if err != nil {
		slog.Error("Could not open the run store", "path", resolveStorePath(), "error", err)
		return
	}
	defer store.Close()

	summaries, err := store.List(context.Background())
	if err != nil {
		slog.Error("Failed to list stored runs", "error", err)
		return
	}
	if len(summaries) == 0 {
		ux.Info("No stored runs.")
		return
	}

	ux.Title(fmt.Sprintf("Stored Runs (%d)", len(summaries)))
	for _, s := range summaries {
		detail := fmt.Sprintf("%s  %s v%s  [%s]",
			s.GeneratedAt.Format("2006-01-02 15:04"),
			s.Scenario.ID, s.Scenario.Version, domainList(s.Domains))
		ux.ItemStatus(s.RunID, ux.IconSuccess, detail)
	}
}

func runRunsShow(cmd *cobra.Command, args []string) {
	runID := args[0]

	store, err := openStore()
	if err != nil {
		slog.Error("Could not open the run store", "path", resolveStorePath(), "error", err)
		return
	}
	defer store.Close()

	rep, err := store.Get(context.Background(), runID)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			ux.Error(fmt.Sprintf("Run %s not found in the store.", runID))
		} else {
			slog.Error("Failed to load the run", "run_id", runID, "error", err)
		}
		return
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		slog.Error("Failed to encode the report", "error", err)
		return
	}
	fmt.Println(string(out))
}

func runRunsDelete(cmd *cobra.Command, args []string) {
	runID := args[0]

	store, err := openStore()
	if err != nil {
		slog.Error("Could not open the run store", "path", resolveStorePath(), "error", err)
		return
	}
	defer store.Close()

	if err := store.Delete(context.Background(), runID); err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			ux.Error(fmt.Sprintf("Run %s not found in the store.", runID))
		} else {
			slog.Error("Failed to delete the run", "run_id", runID, "error", err)
		}
		return
	}
	ux.Success(fmt.Sprintf("Deleted run %s", runID))
}
