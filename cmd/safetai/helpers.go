// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/runstore"
)

// expandHome resolves a leading ~ against the current user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// resolveStorePath picks the run store directory: the --store flag wins,
// then AUDIT_STORE_PATH, then ~/.safetai/runs.
func resolveStorePath() string {
	if storePathFlag != "" {
		return expandHome(storePathFlag)
	}
	if env := os.Getenv("AUDIT_STORE_PATH"); env != "" {
		return expandHome(env)
	}
	return expandHome("~/.safetai/runs")
}

// openStore opens the Badger-backed run store every persistence command
// goes through.
func openStore() (*runstore.Store, error) {
	cfg := runstore.DefaultConfig()
	cfg.Path = resolveStorePath()
	cfg.Logger = slog.Default()
	return runstore.Open(cfg)
}

// loadScenarioFromFlag loads the --config scenario, falling back to the
// built-in synthetic baseline when the flag is empty.
func loadScenarioFromFlag() (*datatypes.AuditScenario, error) {
	if scenarioPath == "" {
		slog.Info("No --config given. Using the built-in synthetic baseline.")
		return datatypes.DefaultScenario(), nil
	}
	return datatypes.LoadScenario(expandHome(scenarioPath))
}

// resolveOutputPath turns the --output flag into a concrete file path. An
// existing directory gets defaultName appended; anything else is taken as
// the full path.
func resolveOutputPath(outputFlag, defaultName string) string {
	if outputFlag == "" {
		return defaultName
	}
	info, err := os.Stat(outputFlag)
	if err == nil && info.IsDir() {
		return filepath.Join(outputFlag, defaultName)
	}
	return outputFlag
}

// countFindings tallies findings across every domain report present.
func countFindings(rep *datatypes.FullReport) (info, warning, critical int) {
	tally := func(findings []datatypes.Finding) {
		for _, f := range findings {
			switch f.Severity {
			case datatypes.SeverityCritical:
				critical++
			case datatypes.SeverityWarning:
				warning++
			default:
				info++
			}
		}
	}
	if rep.Volume != nil {
		tally(rep.Volume.Findings)
	}
	if rep.Crash != nil {
		tally(rep.Crash.Findings)
	}
	if rep.Infrastructure != nil {
		tally(rep.Infrastructure.Findings)
	}
	if rep.Demand != nil {
		tally(rep.Demand.Findings)
	}
	return info, warning, critical
}

// severityIcon maps a finding severity onto a status glyph.
func severityIcon(sev datatypes.FindingSeverity) ux.Icon {
	switch sev {
	case datatypes.SeverityCritical:
		return ux.IconError
	case datatypes.SeverityWarning:
		return ux.IconWarning
	default:
		return ux.IconInfo
	}
}

// worstSeverityIcon summarizes a domain's findings as a single glyph. A
// domain with no warnings or criticals shows as healthy.
func worstSeverityIcon(findings []datatypes.Finding) ux.Icon {
	icon := ux.IconSuccess
	for _, f := range findings {
		switch f.Severity {
		case datatypes.SeverityCritical:
			return ux.IconError
		case datatypes.SeverityWarning:
			icon = ux.IconWarning
		}
	}
	return icon
}

// datasetLabel renders a one-line description of where the scenario's
// data comes from.
func datasetLabel(spec datatypes.DatasetSpec) string {
	if spec.TractsPath != "" || spec.CountersPath != "" {
		return fmt.Sprintf("files (tracts: %s, counters: %s)", spec.TractsPath, spec.CountersPath)
	}
	return fmt.Sprintf("synthetic (%d tracts, %d counters)", spec.Synthetic.Tracts, spec.Synthetic.Counters)
}

// domainList joins domains for display.
func domainList(domains []datatypes.Domain) string {
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}
