//go:build ignore

// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Demo script to exercise the full audit pipeline.
// Run with: go run scripts/run_demo_audit.go
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/loader"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/report"
)

func banner(title string) {
	fmt.Println("╔══════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║ %-64s ║\n", title)
	fmt.Println("╚══════════════════════════════════════════════════════════════════╝")
}

func step(title string) {
	fmt.Println("\n┌─────────────────────────────────────────────────────────────────┐")
	fmt.Printf("│ %-63s │\n", title)
	fmt.Println("└─────────────────────────────────────────────────────────────────┘")
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	banner("AUDIT PIPELINE DEMO")

	// 1. Build the baseline scenario and its dataset
	step("Step 1: Resolving the Durham baseline dataset")
	scenario := datatypes.DefaultScenario()
	ds, err := loader.Resolve(scenario.Dataset, scenario.Config.Seed)
	if err != nil {
		log.Fatalf("Failed to resolve dataset: %v", err)
	}
	fmt.Printf("  ✓ %d census tracts, %d counter sites (seed %d)\n",
		len(ds.Tracts), len(ds.Counters), scenario.Config.Seed)

	// 2. Run every audit domain
	step("Step 2: Running the audit across all domains")
	runner := &report.Runner{Logger: slog.Default()}
	start := time.Now()
	rep, err := runner.Run(ctx, scenario, ds.Tracts, ds.Counters)
	if err != nil {
		log.Fatalf("Audit run failed: %v", err)
	}
	fmt.Printf("  ✓ Run %s completed in %s\n", rep.RunID, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  ✓ Domains audited: %v\n", rep.Domains())

	// 3. Per-domain headline numbers
	step("Step 3: Headline results")
	fmt.Printf("  ✓ Volume: MAPE %.1f%% over %d counters", rep.Volume.Overall.Metrics.MAPE, rep.Volume.Overall.TotalCounters)
	if gap := rep.Volume.ByIncome.EquityGap; gap != nil && gap.Significant {
		fmt.Printf(", equity gap %.1f (%s worst)", gap.Gap, gap.WorstGroup)
	}
	fmt.Println()
	fmt.Printf("  ✓ Crash: %.0f%% of crashes reported across %d tracts\n",
		rep.Crash.Summary.ReportingRate*100, rep.Crash.Summary.Tracts)
	fmt.Printf("  ✓ Infrastructure: $%.0f allocated under the %s strategy\n",
		rep.Infrastructure.AIAllocation.Budget.Allocated(), rep.Infrastructure.AIAllocation.Strategy)
	fmt.Printf("  ✓ Demand: %.0f%% suppression, %d high-suppression tracts\n",
		rep.Demand.Summary.SuppressionRate*100, rep.Demand.Summary.HighSuppression)

	// 4. Findings
	step("Step 4: Findings")
	for _, domain := range rep.Domains() {
		var findings []datatypes.Finding
		switch domain {
		case datatypes.DomainVolume:
			findings = rep.Volume.Findings
		case datatypes.DomainCrash:
			findings = rep.Crash.Findings
		case datatypes.DomainInfrastructure:
			findings = rep.Infrastructure.Findings
		case datatypes.DomainDemand:
			findings = rep.Demand.Findings
		}
		for _, f := range findings {
			fmt.Printf("  [%s] %s: %s\n", f.Severity, domain, f.Message)
		}
	}

	fmt.Println()
	banner("DEMO COMPLETE")
}
