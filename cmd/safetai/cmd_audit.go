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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/loader"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/narrative"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/report"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/runstore"
)

func runAudit(cmd *cobra.Command, _ []string) {
	// 1. Load the scenario
	scenario, err := loadScenarioFromFlag()
	if err != nil {
		slog.Error("Failed to load the scenario", "path", scenarioPath, "error", err)
		return
	}

	// 2. Apply CLI overrides
	if len(domainFilter) > 0 {
		scenario.Domains = domainFilter
		if err := scenario.Validate(); err != nil {
			slog.Error("Invalid --domain override", "error", err)
			return
		}
	}

	// 3. Resolve the dataset
	ds, err := loader.Resolve(scenario.Dataset, scenario.Config.Seed)
	if err != nil {
		slog.Error("Failed to resolve the audit dataset", "error", err)
		return
	}
	if fresh := loader.ValidateFreshness(ds.LoadedAt, loader.DefaultMaxAgeDays); !fresh.Valid {
		slog.Warn("Dataset freshness check failed", "age_days", fresh.AgeDays, "detail", fresh.Message)
	}

	if ux.IsInteractive() {
		fmt.Printf("\nStarting Audit Run\n")
		fmt.Printf("   Scenario:   %s (v%s)\n", scenario.Metadata.ID, scenario.Metadata.Version)
		fmt.Printf("   Domains:    %s\n", strings.Join(scenario.Domains, ", "))
		fmt.Printf("   Dataset:    %s\n", datasetLabel(scenario.Dataset))
		fmt.Printf("   Seed:       %d\n", scenario.Config.Seed)
		fmt.Println("---------------------------------------------------")
	}

	// 4. Wire the optional narrative summarizer
	runner := &report.Runner{Logger: slog.Default()}
	if narCfg := narrative.ConfigFromEnv(); narCfg.Enabled() {
		summarizer, err := narrative.NewSummarizer(narCfg, slog.Default())
		if err != nil {
			slog.Warn("Narrative summarizer unavailable. The report will carry no narrative.", "error", err)
		} else {
			runner.Narrator = summarizer
			slog.Info("Using OpenAI narrative summaries", "model", narCfg.Model)
		}
	}

	// 5. Execute the run
	ctx := context.Background()
	var rep *datatypes.FullReport
	err = ux.WithSpinner("Running equity audit...", func() error {
		var runErr error
		rep, runErr = runner.Run(ctx, scenario, ds.Tracts, ds.Counters)
		return runErr
	})
	if err != nil {
		slog.Error("Audit run failed", "error", err)
		return
	}

	// 6. Persist the report
	store, err := openStore()
	if err != nil {
		slog.Error("Could not open the run store", "path", resolveStorePath(), "error", err)
		return
	}
	defer store.Close()

	if err := store.Put(ctx, rep); err != nil {
		slog.Error("Failed to persist the completed run", "run_id", rep.RunID, "error", err)
		return
	}

	// 7. Show the outcome
	for _, domain := range rep.Domains() {
		ux.ItemStatus(string(domain), worstSeverityIcon(domainFindings(rep, domain)), "audited")
	}
	info, warning, critical := countFindings(rep)
	ux.FindingsSummary(info, warning, critical)

	if ux.IsInteractive() {
		fmt.Printf("\n✅ Audit completed successfully.\n")
		fmt.Printf("   Run ID: %s\n", rep.RunID)
	} else {
		fmt.Printf("RUN_ID: %s\n", rep.RunID)
	}
}

func runAuditReport(cmd *cobra.Command, args []string) {
	store, err := openStore()
	if err != nil {
		slog.Error("Could not open the run store", "path", resolveStorePath(), "error", err)
		return
	}
	defer store.Close()

	ctx := context.Background()

	var runID string
	if len(args) > 0 {
		runID = args[0]
	} else {
		summaries, err := store.List(ctx)
		if err != nil {
			slog.Error("Failed to list stored runs", "error", err)
			return
		}
		if len(summaries) == 0 {
			ux.Error("No stored runs. Run 'safetai audit run' first.")
			return
		}
		runID = summaries[0].RunID
	}

	rep, err := store.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			ux.Error(fmt.Sprintf("Run %s not found in the store.", runID))
		} else {
			slog.Error("Failed to load the run", "run_id", runID, "error", err)
		}
		return
	}

	if reportAsJSON {
		out, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			slog.Error("Failed to encode the report", "error", err)
			return
		}
		fmt.Println(string(out))
		return
	}

	printReport(rep)
}

// printReport renders the styled summary view of a stored run.
func printReport(rep *datatypes.FullReport) {
	ux.Title(fmt.Sprintf("Audit %s", rep.RunID))
	ux.Info(fmt.Sprintf("Scenario %s (v%s), seed %d, generated %s",
		rep.Scenario.ID, rep.Scenario.Version, rep.Seed,
		rep.GeneratedAt.Format(time.RFC3339)))

	for _, domain := range rep.Domains() {
		ux.ItemStatus(string(domain), worstSeverityIcon(domainFindings(rep, domain)), domainHeadline(rep, domain))
	}

	for _, domain := range rep.Domains() {
		for _, f := range domainFindings(rep, domain) {
			ux.ItemStatus(string(domain), severityIcon(f.Severity), f.Message)
		}
	}

	info, warning, critical := countFindings(rep)
	ux.FindingsSummary(info, warning, critical)

	if rep.Narrative != "" {
		ux.Box("Narrative", rep.Narrative)
	}
}

// domainFindings returns the findings of one domain report, or nil when
// that domain was not audited.
func domainFindings(rep *datatypes.FullReport, domain datatypes.Domain) []datatypes.Finding {
	switch domain {
	case datatypes.DomainVolume:
		if rep.Volume != nil {
			return rep.Volume.Findings
		}
	case datatypes.DomainCrash:
		if rep.Crash != nil {
			return rep.Crash.Findings
		}
	case datatypes.DomainInfrastructure:
		if rep.Infrastructure != nil {
			return rep.Infrastructure.Findings
		}
	case datatypes.DomainDemand:
		if rep.Demand != nil {
			return rep.Demand.Findings
		}
	}
	return nil
}

// domainHeadline picks the one number worth reading first for each domain.
func domainHeadline(rep *datatypes.FullReport, domain datatypes.Domain) string {
	switch domain {
	case datatypes.DomainVolume:
		if rep.Volume == nil {
			return ""
		}
		head := fmt.Sprintf("MAPE %.1f%% across %d counters",
			rep.Volume.Overall.Metrics.MAPE, rep.Volume.Overall.TotalCounters)
		if gap := rep.Volume.ByIncome.EquityGap; gap != nil && gap.Significant {
			head += fmt.Sprintf(", equity gap %.1f (%s worst)", gap.Gap, gap.WorstGroup)
		}
		return head
	case datatypes.DomainCrash:
		if rep.Crash == nil {
			return ""
		}
		return fmt.Sprintf("reporting rate %.0f%% over %d tracts",
			rep.Crash.Summary.ReportingRate*100, rep.Crash.Summary.Tracts)
	case datatypes.DomainInfrastructure:
		if rep.Infrastructure == nil {
			return ""
		}
		if gap := rep.Infrastructure.Comparison.EquityGap; gap != nil {
			return fmt.Sprintf("per-capita equity gap %+.2f vs need-based", *gap)
		}
		return "allocation comparison complete"
	case datatypes.DomainDemand:
		if rep.Demand == nil {
			return ""
		}
		return fmt.Sprintf("suppression rate %.0f%%, %d high-suppression tracts",
			rep.Demand.Summary.SuppressionRate*100, rep.Demand.Summary.HighSuppression)
	}
	return ""
}
