// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// validScenarioYAML returns a valid scenario file for testing file loading.
func validScenarioYAML() string {
	return `metadata:
  id: "cli-test-scenario"
  version: "1.1"
  description: "CLI unit test scenario"

domains: [volume]

dataset:
  synthetic:
    tracts: 12
    counters: 5

config:
  seed: 99
`
}

// sampleFullReport builds a report with findings spread across two domains.
func sampleFullReport() *datatypes.FullReport {
	return &datatypes.FullReport{
		RunID:       "run-cli-test",
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Scenario:    datatypes.ScenarioMetadata{ID: "cli-test", Version: "1.0"},
		Seed:        7,
		Volume: &datatypes.VolumeReport{
			Findings: []datatypes.Finding{
				{Severity: datatypes.SeverityInfo, Message: "volume accuracy is uniform"},
				{Severity: datatypes.SeverityWarning, Message: "low-income error trending up"},
			},
		},
		Crash: &datatypes.CrashReport{
			Findings: []datatypes.Finding{
				{Severity: datatypes.SeverityCritical, Message: "reporting gap exceeds threshold"},
			},
		},
	}
}

// =============================================================================
// expandHome Tests
// =============================================================================

func TestExpandHome_TildeSlash(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got := expandHome("~/audits/runs")
	assert.Equal(t, filepath.Join(home, "audits", "runs"), got)
}

func TestExpandHome_BareTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandHome("~"))
}

func TestExpandHome_PlainPath(t *testing.T) {
	assert.Equal(t, "/var/lib/safetai", expandHome("/var/lib/safetai"))
}

func TestExpandHome_EmptyPath(t *testing.T) {
	assert.Equal(t, "", expandHome(""))
}

func TestExpandHome_TildeInMiddle(t *testing.T) {
	// Only a leading ~ is expanded
	assert.Equal(t, "/data/~cache", expandHome("/data/~cache"))
}

// =============================================================================
// resolveStorePath Tests
// =============================================================================

func TestResolveStorePath_FlagWins(t *testing.T) {
	orig := storePathFlag
	defer func() { storePathFlag = orig }()

	storePathFlag = "/tmp/flag-store"
	t.Setenv("AUDIT_STORE_PATH", "/tmp/env-store")

	assert.Equal(t, "/tmp/flag-store", resolveStorePath())
}

func TestResolveStorePath_EnvFallback(t *testing.T) {
	orig := storePathFlag
	defer func() { storePathFlag = orig }()

	storePathFlag = ""
	t.Setenv("AUDIT_STORE_PATH", "/tmp/env-store")

	assert.Equal(t, "/tmp/env-store", resolveStorePath())
}

func TestResolveStorePath_Default(t *testing.T) {
	orig := storePathFlag
	defer func() { storePathFlag = orig }()

	storePathFlag = ""
	t.Setenv("AUDIT_STORE_PATH", "")

	got := resolveStorePath()
	assert.True(t, filepath.IsAbs(got), "default store path should be absolute, got %q", got)
	assert.Contains(t, got, filepath.Join(".safetai", "runs"))
}

// =============================================================================
// resolveOutputPath Tests
// =============================================================================

func TestResolveOutputPath_EmptyFlag(t *testing.T) {
	assert.Equal(t, "audit_r1.csv", resolveOutputPath("", "audit_r1.csv"))
}

func TestResolveOutputPath_ExistingDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	got := resolveOutputPath(tmpDir, "audit_r1.csv")
	assert.Equal(t, filepath.Join(tmpDir, "audit_r1.csv"), got)
}

func TestResolveOutputPath_FilePath(t *testing.T) {
	got := resolveOutputPath("/tmp/my_results.csv", "audit_r1.csv")
	assert.Equal(t, "/tmp/my_results.csv", got)
}

// =============================================================================
// Findings Helpers Tests
// =============================================================================

func TestCountFindings_AcrossDomains(t *testing.T) {
	info, warning, critical := countFindings(sampleFullReport())

	assert.Equal(t, 1, info)
	assert.Equal(t, 1, warning)
	assert.Equal(t, 1, critical)
}

func TestCountFindings_EmptyReport(t *testing.T) {
	info, warning, critical := countFindings(&datatypes.FullReport{})

	assert.Zero(t, info)
	assert.Zero(t, warning)
	assert.Zero(t, critical)
}

func TestSeverityIcon_Mapping(t *testing.T) {
	assert.Equal(t, ux.IconError, severityIcon(datatypes.SeverityCritical))
	assert.Equal(t, ux.IconWarning, severityIcon(datatypes.SeverityWarning))
	assert.Equal(t, ux.IconInfo, severityIcon(datatypes.SeverityInfo))
}

func TestWorstSeverityIcon_Empty(t *testing.T) {
	assert.Equal(t, ux.IconSuccess, worstSeverityIcon(nil))
}

func TestWorstSeverityIcon_InfoOnly(t *testing.T) {
	findings := []datatypes.Finding{
		{Severity: datatypes.SeverityInfo, Message: "fine"},
	}
	assert.Equal(t, ux.IconSuccess, worstSeverityIcon(findings))
}

func TestWorstSeverityIcon_WarningBeatsInfo(t *testing.T) {
	findings := []datatypes.Finding{
		{Severity: datatypes.SeverityInfo, Message: "fine"},
		{Severity: datatypes.SeverityWarning, Message: "watch this"},
	}
	assert.Equal(t, ux.IconWarning, worstSeverityIcon(findings))
}

func TestWorstSeverityIcon_CriticalWins(t *testing.T) {
	findings := []datatypes.Finding{
		{Severity: datatypes.SeverityWarning, Message: "watch this"},
		{Severity: datatypes.SeverityCritical, Message: "bad"},
		{Severity: datatypes.SeverityWarning, Message: "watch that"},
	}
	assert.Equal(t, ux.IconError, worstSeverityIcon(findings))
}

// =============================================================================
// Display Helpers Tests
// =============================================================================

func TestDatasetLabel_Synthetic(t *testing.T) {
	spec := datatypes.DatasetSpec{
		Synthetic: datatypes.SyntheticSpec{Tracts: 60, Counters: 15},
	}
	assert.Equal(t, "synthetic (60 tracts, 15 counters)", datasetLabel(spec))
}

func TestDatasetLabel_Files(t *testing.T) {
	spec := datatypes.DatasetSpec{
		TractsPath:   "data/tracts.csv",
		CountersPath: "data/counters.csv",
	}
	assert.Equal(t, "files (tracts: data/tracts.csv, counters: data/counters.csv)", datasetLabel(spec))
}

func TestDomainList(t *testing.T) {
	got := domainList([]datatypes.Domain{datatypes.DomainVolume, datatypes.DomainCrash})
	assert.Equal(t, "volume,crash", got)
}

func TestDomainList_Empty(t *testing.T) {
	assert.Equal(t, "", domainList(nil))
}

// =============================================================================
// loadScenarioFromFlag Tests
// =============================================================================

func TestLoadScenarioFromFlag_DefaultBaseline(t *testing.T) {
	orig := scenarioPath
	defer func() { scenarioPath = orig }()

	scenarioPath = ""
	scenario, err := loadScenarioFromFlag()

	require.NoError(t, err)
	require.NotNil(t, scenario)
	assert.Equal(t, "durham-baseline", scenario.Metadata.ID)
	assert.Len(t, scenario.Domains, 4)
}

func TestLoadScenarioFromFlag_FromFile(t *testing.T) {
	orig := scenarioPath
	defer func() { scenarioPath = orig }()

	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "scenario.yaml")
	err := os.WriteFile(yamlPath, []byte(validScenarioYAML()), 0644)
	require.NoError(t, err, "Failed to create test YAML file")

	scenarioPath = yamlPath
	scenario, err := loadScenarioFromFlag()

	require.NoError(t, err)
	require.NotNil(t, scenario)
	assert.Equal(t, "cli-test-scenario", scenario.Metadata.ID)
	assert.Equal(t, "1.1", scenario.Metadata.Version)
	assert.Equal(t, []string{"volume"}, scenario.Domains)
	assert.Equal(t, int64(99), scenario.Config.Seed)
	assert.Equal(t, 12, scenario.Dataset.Synthetic.Tracts)
}

func TestLoadScenarioFromFlag_MissingFile(t *testing.T) {
	orig := scenarioPath
	defer func() { scenarioPath = orig }()

	scenarioPath = "/nonexistent/scenario.yaml"
	scenario, err := loadScenarioFromFlag()

	require.Error(t, err)
	assert.Nil(t, scenario)
}
