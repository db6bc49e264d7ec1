// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// =============================================================================
// Test Helpers
// =============================================================================

// captureStdout redirects stdout while fn runs and returns what was printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = orig

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

// captureStderr redirects stderr while fn runs and returns what was printed.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w

	fn()

	require.NoError(t, w.Close())
	os.Stderr = orig

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

// machinePersonality pins the machine output mode for the test and restores
// the previous personality afterwards.
func machinePersonality(t *testing.T) {
	t.Helper()
	orig := ux.GetPersonality()
	t.Cleanup(func() { ux.SetPersonality(orig) })
	ux.SetPersonalityLevel(ux.PersonalityMachine)
}

// cliState saves the package-level flag variables the run functions read
// and restores them when the test finishes.
func cliState(t *testing.T) {
	t.Helper()
	origScenario := scenarioPath
	origDomains := domainFilter
	origStore := storePathFlag
	t.Cleanup(func() {
		scenarioPath = origScenario
		domainFilter = origDomains
		storePathFlag = origStore
	})
}

// extractRunID pulls the run ID out of machine-mode audit output.
func extractRunID(t *testing.T, output string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if after, ok := strings.CutPrefix(line, "RUN_ID: "); ok {
			return after
		}
	}
	t.Fatalf("no RUN_ID line in output:\n%s", output)
	return ""
}

// =============================================================================
// Audit Flow Tests
// =============================================================================

// TestAuditFlow_RunListShowDelete walks the full local lifecycle: run a
// volume-only audit against the built-in baseline, list it, fetch it, and
// delete it again.
func TestAuditFlow_RunListShowDelete(t *testing.T) {
	machinePersonality(t)
	cliState(t)
	t.Setenv("OPENAI_API_KEY", "")

	scenarioPath = ""
	domainFilter = []string{"volume"}
	storePathFlag = t.TempDir()

	// Run
	runOut := captureStdout(t, func() {
		runAudit(auditRunCmd, nil)
	})
	runID := extractRunID(t, runOut)
	assert.Contains(t, runOut, "volume\taudited")
	assert.Contains(t, runOut, "FINDINGS:")

	// List
	listOut := captureStdout(t, func() {
		runRunsList(runsListCmd, nil)
	})
	assert.Contains(t, listOut, runID)
	assert.Contains(t, listOut, "durham-baseline")

	// Show
	showOut := captureStdout(t, func() {
		runRunsShow(runsShowCmd, []string{runID})
	})
	var rep datatypes.FullReport
	require.NoError(t, json.Unmarshal([]byte(showOut), &rep))
	assert.Equal(t, runID, rep.RunID)
	require.NotNil(t, rep.Volume, "volume-only run should carry a volume report")
	assert.Nil(t, rep.Crash, "crash domain was not requested")
	assert.Equal(t, "durham-baseline", rep.Scenario.ID)

	// Report (default = newest run)
	reportOut := captureStdout(t, func() {
		runAuditReport(auditReportCmd, nil)
	})
	assert.Contains(t, reportOut, "FINDINGS:")

	// Delete
	deleteOut := captureStdout(t, func() {
		runRunsDelete(runsDeleteCmd, []string{runID})
	})
	assert.Contains(t, deleteOut, "OK: Deleted run "+runID)

	// The store is empty again
	emptyOut := captureStdout(t, func() {
		runRunsList(runsListCmd, nil)
	})
	assert.Contains(t, emptyOut, "No stored runs.")
}

// TestRunAudit_InvalidDomainOverride verifies that a bogus --domain value
// is rejected before any work happens.
func TestRunAudit_InvalidDomainOverride(t *testing.T) {
	machinePersonality(t)
	cliState(t)

	scenarioPath = ""
	domainFilter = []string{"astrology"}
	storePathFlag = t.TempDir()

	out := captureStdout(t, func() {
		runAudit(auditRunCmd, nil)
	})
	assert.NotContains(t, out, "RUN_ID:")
}

// TestRunAuditReport_UnknownRun verifies the styled not-found path.
func TestRunAuditReport_UnknownRun(t *testing.T) {
	machinePersonality(t)
	cliState(t)

	storePathFlag = t.TempDir()

	errOut := captureStderr(t, func() {
		runAuditReport(auditReportCmd, []string{"no-such-run"})
	})
	assert.Contains(t, errOut, "ERROR: Run no-such-run not found in the store.")
}

// TestRunAuditReport_EmptyStore verifies the hint when nothing has run yet.
func TestRunAuditReport_EmptyStore(t *testing.T) {
	machinePersonality(t)
	cliState(t)

	storePathFlag = t.TempDir()

	errOut := captureStderr(t, func() {
		runAuditReport(auditReportCmd, nil)
	})
	assert.Contains(t, errOut, "ERROR: No stored runs.")
}

// TestRunRunsDelete_UnknownRun verifies delete surfaces the not-found error.
func TestRunRunsDelete_UnknownRun(t *testing.T) {
	machinePersonality(t)
	cliState(t)

	storePathFlag = t.TempDir()

	errOut := captureStderr(t, func() {
		runRunsDelete(runsDeleteCmd, []string{"ghost"})
	})
	assert.Contains(t, errOut, "ERROR: Run ghost not found in the store.")
}

// =============================================================================
// Report Rendering Tests
// =============================================================================

func TestDomainFindings_RoutesPerDomain(t *testing.T) {
	rep := sampleFullReport()

	assert.Len(t, domainFindings(rep, datatypes.DomainVolume), 2)
	assert.Len(t, domainFindings(rep, datatypes.DomainCrash), 1)
	assert.Nil(t, domainFindings(rep, datatypes.DomainInfrastructure))
	assert.Nil(t, domainFindings(rep, datatypes.DomainDemand))
}

func TestDomainHeadline_Volume(t *testing.T) {
	rep := &datatypes.FullReport{
		Volume: &datatypes.VolumeReport{
			Overall: datatypes.OverallAccuracy{
				TotalCounters: 15,
				Metrics:       datatypes.ErrorMetrics{MAPE: 23.4},
			},
		},
	}

	head := domainHeadline(rep, datatypes.DomainVolume)
	assert.Equal(t, "MAPE 23.4% across 15 counters", head)
}

func TestDomainHeadline_VolumeWithSignificantGap(t *testing.T) {
	rep := &datatypes.FullReport{
		Volume: &datatypes.VolumeReport{
			Overall: datatypes.OverallAccuracy{
				TotalCounters: 15,
				Metrics:       datatypes.ErrorMetrics{MAPE: 23.4},
			},
			ByIncome: datatypes.AccuracyByIncome{
				EquityGap: &datatypes.EquityGapResult{
					BestGroup:   "Q5",
					WorstGroup:  "Q1",
					Gap:         18.2,
					Significant: true,
				},
			},
		},
	}

	head := domainHeadline(rep, datatypes.DomainVolume)
	assert.Contains(t, head, "equity gap 18.2")
	assert.Contains(t, head, "Q1 worst")
}

func TestDomainHeadline_MissingDomain(t *testing.T) {
	rep := &datatypes.FullReport{}
	assert.Empty(t, domainHeadline(rep, datatypes.DomainCrash))
}

func TestPrintReport_MachineMode(t *testing.T) {
	machinePersonality(t)

	out := captureStdout(t, func() {
		printReport(sampleFullReport())
	})

	// Domain status lines plus one line per finding, then the tally
	assert.Contains(t, out, "volume")
	assert.Contains(t, out, "crash")
	assert.Contains(t, out, "reporting gap exceeds threshold")
	assert.Contains(t, out, "FINDINGS: info=1 warning=1 critical=1")
}
