// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/simulate"
)

// buildVolumeFixture returns six counter observations across four tracts.
// The two poorest/highest-minority tracts are undercounted (-20%, -25%),
// the two richest/lowest-minority ones overcounted (+10% to +20%), so both
// equity gaps and both bias findings are exercised.
func buildVolumeFixture(t *testing.T) ([]simulate.VolumeObservation, []datatypes.GeographicEntity, datatypes.AuditConfig) {
	t.Helper()
	entities := []datatypes.GeographicEntity{
		tract("E1", 20_000, 80, 2000),
		tract("E2", 40_000, 45, 2000),
		tract("E3", 60_000, 20, 2000),
		tract("E4", 80_000, 10, 2000),
	}
	obs := []simulate.VolumeObservation{
		volumeObs("C1", "E1", 100, 80),
		volumeObs("C2", "E1", 200, 150),
		volumeObs("C3", "E2", 100, 90),
		volumeObs("C4", "E3", 100, 110),
		volumeObs("C5", "E4", 100, 120),
		volumeObs("C6", "E4", 50, 60),
	}
	return obs, entities, datatypes.DefaultAuditConfig
}

func volumeObs(counterID, entityID string, trueVal, pred float64) simulate.VolumeObservation {
	return simulate.VolumeObservation{
		Counter: datatypes.CounterSite{ID: counterID, EntityID: entityID, BaseVolume: trueVal, Source: "synthetic"},
		Record:  datatypes.ObservationRecord{EntityID: entityID, TrueValue: trueVal, PredictedValue: pred},
		Bias:    1.0,
	}
}

// TestBuildVolume_FixtureStrata verifies the fixture incomes land in the
// quintiles the remaining assertions assume.
func TestBuildVolume_FixtureStrata(t *testing.T) {
	_, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	assert.Equal(t, datatypes.Quintile1, strata.QuintileFor("E1"))
	assert.Equal(t, datatypes.Quintile2, strata.QuintileFor("E2"))
	assert.Equal(t, datatypes.Quintile4, strata.QuintileFor("E3"))
	assert.Equal(t, datatypes.Quintile5, strata.QuintileFor("E4"))

	assert.Equal(t, datatypes.CategoryHigh, strata.CategoryFor("E1"))
	assert.Equal(t, datatypes.CategoryMedium, strata.CategoryFor("E2"))
	assert.Equal(t, datatypes.CategoryLow, strata.CategoryFor("E3"))
	assert.Equal(t, datatypes.CategoryLow, strata.CategoryFor("E4"))
}

// TestBuildVolume_EmptyObservations verifies the builder refuses an empty
// observation table.
func TestBuildVolume_EmptyObservations(t *testing.T) {
	_, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	_, err := BuildVolume(nil, entities, strata, cfg)
	require.Error(t, err)
}

// TestBuildVolume_OverallAccuracy verifies the headline totals and error
// metrics over all six observations.
func TestBuildVolume_OverallAccuracy(t *testing.T) {
	obs, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildVolume(obs, entities, strata, cfg)
	require.NoError(t, err)

	overall := rep.Overall
	assert.Equal(t, 6, overall.TotalCounters)
	assert.Equal(t, 650.0, overall.TotalTrueVolume)
	assert.Equal(t, 610.0, overall.TotalPredictedVolume)

	m := overall.Metrics
	assert.Equal(t, 20.0, m.MAE)
	assert.Equal(t, 17.5, m.MAPE)
	assert.InDelta(t, -6.6667, m.MeanError, 0.001)
	assert.InDelta(t, -0.8333, m.MeanPctError, 0.001)
	assert.Equal(t, m.MeanPctError, m.Bias, "bias should equal the mean percent error")
	assert.InDelta(t, 24.833, m.RMSE, 0.001)
	assert.InDelta(t, 0.7789, m.RSquared, 0.001)
	assert.Equal(t, 6, m.Samples)
	assert.Equal(t, 6, m.PctSamples)

	assert.Equal(t, cfg.Seed, rep.Seed)
}

// TestBuildVolume_AccuracyByIncome verifies the per-quintile rows and the
// income equity gap. The empty Q3 must be absent, not zero-filled.
func TestBuildVolume_AccuracyByIncome(t *testing.T) {
	obs, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildVolume(obs, entities, strata, cfg)
	require.NoError(t, err)

	want := []datatypes.IncomeAccuracyRow{
		{Quintile: datatypes.Quintile1, Label: "Q1", Count: 2, MedianIncome: 20_000, MAE: 35, MAPE: 22.5, Bias: -22.5, MeanErrorPct: -22.5},
		{Quintile: datatypes.Quintile2, Label: "Q2", Count: 1, MedianIncome: 40_000, MAE: 10, MAPE: 10, Bias: -10, MeanErrorPct: -10},
		{Quintile: datatypes.Quintile4, Label: "Q4", Count: 1, MedianIncome: 60_000, MAE: 10, MAPE: 10, Bias: 10, MeanErrorPct: 10},
		{Quintile: datatypes.Quintile5, Label: "Q5", Count: 2, MedianIncome: 80_000, MAE: 15, MAPE: 20, Bias: 20, MeanErrorPct: 20},
	}
	assert.Equal(t, want, rep.ByIncome.Rows)

	gap := rep.ByIncome.EquityGap
	require.NotNil(t, gap)
	assert.Equal(t, "Q5", gap.BestGroup)
	assert.Equal(t, "Q1", gap.WorstGroup)
	assert.Equal(t, 20.0, gap.BestGroupMean)
	assert.Equal(t, -22.5, gap.WorstGroupMean)
	assert.Equal(t, 42.5, gap.Gap)
	require.NotNil(t, gap.GapPct)
	assert.InDelta(t, -188.889, *gap.GapPct, 0.001, "gap_pct keeps the sign of the worst mean")
	assert.True(t, gap.Significant)
	assert.Less(t, gap.PValue, 0.001)
}

// TestBuildVolume_AccuracyByRace verifies the per-category rows and the
// minority equity gap.
func TestBuildVolume_AccuracyByRace(t *testing.T) {
	obs, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildVolume(obs, entities, strata, cfg)
	require.NoError(t, err)

	rows := rep.ByRace.Rows
	require.Len(t, rows, 3)

	assert.Equal(t, datatypes.CategoryLow, rows[0].Category)
	assert.Equal(t, 3, rows[0].Count)
	assert.InDelta(t, 13.3333, rows[0].MeanMinorityPct, 0.001)
	assert.InDelta(t, 13.3333, rows[0].MAE, 0.001)
	assert.InDelta(t, 16.6667, rows[0].MAPE, 0.001)
	assert.InDelta(t, 16.6667, rows[0].Bias, 0.001)

	assert.Equal(t, datatypes.RaceAccuracyRow{
		Category: datatypes.CategoryMedium, Count: 1, MeanMinorityPct: 45,
		MAE: 10, MAPE: 10, Bias: -10, MeanErrorPct: -10,
	}, rows[1])
	assert.Equal(t, datatypes.RaceAccuracyRow{
		Category: datatypes.CategoryHigh, Count: 2, MeanMinorityPct: 80,
		MAE: 35, MAPE: 22.5, Bias: -22.5, MeanErrorPct: -22.5,
	}, rows[2])

	gap := rep.ByRace.EquityGap
	require.NotNil(t, gap)
	assert.Equal(t, string(datatypes.CategoryLow), gap.BestGroup)
	assert.Equal(t, string(datatypes.CategoryHigh), gap.WorstGroup)
	assert.InDelta(t, 16.6667, gap.BestGroupMean, 0.001)
	assert.Equal(t, -22.5, gap.WorstGroupMean)
	assert.InDelta(t, 39.1667, gap.Gap, 0.001)
	require.NotNil(t, gap.GapPct)
	assert.InDelta(t, -174.074, *gap.GapPct, 0.001)
	assert.True(t, gap.Significant)
	assert.Less(t, gap.PValue, 0.001)
}

// TestBuildVolume_Findings verifies both bias findings fire with the
// published wording. The income gap_pct is negative here, so this also
// pins the magnitude comparison.
func TestBuildVolume_Findings(t *testing.T) {
	obs, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildVolume(obs, entities, strata, cfg)
	require.NoError(t, err)

	require.Len(t, rep.Findings, 2)

	assert.Equal(t, datatypes.SeverityWarning, rep.Findings[0].Severity)
	assert.Equal(t,
		"Significant income bias detected: Q1 areas undercounted by 22.5% on average, while Q5 areas overcounted by 20.0%",
		rep.Findings[0].Message,
	)

	assert.Equal(t, datatypes.SeverityWarning, rep.Findings[1].Severity)
	assert.Equal(t,
		"Significant racial bias detected: High (>60%) areas have 174.1% worse accuracy",
		rep.Findings[1].Message,
	)
}

// TestBuildVolume_ErrorHistogram verifies the fixed 20-bin layout, the bin
// labels, and the observed counts.
func TestBuildVolume_ErrorHistogram(t *testing.T) {
	obs, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildVolume(obs, entities, strata, cfg)
	require.NoError(t, err)

	bins := rep.ErrorHistogram
	require.Len(t, bins, 20)
	assert.Equal(t, "-50% to -45%", bins[0].Label)
	assert.Equal(t, "45% to 50%", bins[19].Label)

	// Percent errors are -25, -20, -10, +10, +20, +20.
	wantCounts := map[int]int{5: 1, 6: 1, 8: 1, 12: 1, 14: 2}
	for i, bin := range bins {
		assert.Equal(t, wantCounts[i], bin.Count, "bin %d (%s)", i, bin.Label)
	}
}

// TestErrorHistogram_Boundaries verifies the edges: exact -50% and +50%
// land in the outer bins, values beyond the span and nil percent errors
// are dropped.
func TestErrorHistogram_Boundaries(t *testing.T) {
	records := []datatypes.ObservationRecord{
		{ErrorPct: datatypes.Float64(-50)},
		{ErrorPct: datatypes.Float64(50)},
		{ErrorPct: datatypes.Float64(55)},
		{ErrorPct: datatypes.Float64(-55)},
		{ErrorPct: nil},
	}

	bins := errorHistogram(records)
	require.Len(t, bins, 20)
	assert.Equal(t, 1, bins[0].Count, "exact -50%% belongs to the first bin")
	assert.Equal(t, 1, bins[19].Count, "exact +50%% belongs to the last bin")

	var total int
	for _, bin := range bins {
		total += bin.Count
	}
	assert.Equal(t, 2, total, "out-of-span and nil errors should be dropped")
}

// TestBuildVolume_EntityErrors verifies the per-entity aggregates come back
// sorted by entity ID.
func TestBuildVolume_EntityErrors(t *testing.T) {
	obs, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildVolume(obs, entities, strata, cfg)
	require.NoError(t, err)

	want := []datatypes.EntityError{
		{EntityID: "E1", MeanErrorPct: -22.5, MeanError: -35, TotalTrue: 300, TotalPredicted: 230, Count: 2},
		{EntityID: "E2", MeanErrorPct: -10, MeanError: -10, TotalTrue: 100, TotalPredicted: 90, Count: 1},
		{EntityID: "E3", MeanErrorPct: 10, MeanError: 10, TotalTrue: 100, TotalPredicted: 110, Count: 1},
		{EntityID: "E4", MeanErrorPct: 20, MeanError: 15, TotalTrue: 150, TotalPredicted: 180, Count: 2},
	}
	assert.Equal(t, want, rep.EntityErrors)
}

// TestBuildVolume_ScatterData verifies the scatter payload pairs counters
// with tract demographics in observation order.
func TestBuildVolume_ScatterData(t *testing.T) {
	obs, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildVolume(obs, entities, strata, cfg)
	require.NoError(t, err)

	require.Len(t, rep.Scatter, 6)

	first := rep.Scatter[0]
	assert.Equal(t, "C1", first.CounterID)
	assert.Equal(t, 100.0, first.TrueValue)
	assert.Equal(t, 80.0, first.Predicted)
	assert.Equal(t, datatypes.Quintile1, first.Quintile)
	assert.Equal(t, datatypes.CategoryHigh, first.MinorityCategory)
	require.NotNil(t, first.MedianIncome)
	assert.Equal(t, 20_000.0, *first.MedianIncome)
	require.NotNil(t, first.PctMinority)
	assert.Equal(t, 80.0, *first.PctMinority)

	last := rep.Scatter[5]
	assert.Equal(t, "C6", last.CounterID)
	assert.Equal(t, 50.0, last.TrueValue)
	assert.Equal(t, 60.0, last.Predicted)
	assert.Equal(t, datatypes.Quintile5, last.Quintile)
	assert.Equal(t, datatypes.CategoryLow, last.MinorityCategory)
}

// TestBuildVolume_StratifiedAgreement verifies the generic stratified view
// carries the same income gap as the dedicated income breakdown.
func TestBuildVolume_StratifiedAgreement(t *testing.T) {
	obs, entities, cfg := buildVolumeFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildVolume(obs, entities, strata, cfg)
	require.NoError(t, err)

	require.NotNil(t, rep.Stratified)
	assert.Len(t, rep.Stratified.ByIncomeQuintile, 4)
	require.NotNil(t, rep.Stratified.EquityGaps.Income)
	assert.Equal(t, rep.ByIncome.EquityGap, rep.Stratified.EquityGaps.Income)
}
