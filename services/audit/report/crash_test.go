// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/simulate"
)

// buildCrashFixture returns two identical years of crash observations for
// four tracts. Reporting rates rise with income (0.6 in Q1 to 0.9 in Q5)
// and the predictor tracks the reported series, so prediction bias is
// worst in the poorest tract and zero in the richest.
func buildCrashFixture(t *testing.T) ([]simulate.CrashObservation, []datatypes.GeographicEntity, datatypes.AuditConfig) {
	t.Helper()
	entities := []datatypes.GeographicEntity{
		tract("E1", 10_000, 10, 1000),
		tract("E2", 20_000, 20, 1000),
		tract("E3", 30_000, 30, 1000),
		tract("E4", 40_000, 40, 1000),
	}

	var obs []simulate.CrashObservation
	for _, year := range []int{2022, 2023} {
		obs = append(obs,
			crashObs("E1", year, 40, 24, 20, 0.6),
			crashObs("E2", year, 30, 21, 18, 0.7),
			crashObs("E3", year, 20, 16, 15, 0.8),
			crashObs("E4", year, 10, 9, 10, 0.9),
		)
	}

	cfg := datatypes.DefaultAuditConfig
	cfg.Crash.Years = []int{2022, 2023}
	return obs, entities, cfg
}

func crashObs(entityID string, year int, actual, reported, predicted, rate float64) simulate.CrashObservation {
	return simulate.CrashObservation{
		EntityID:      entityID,
		Year:          year,
		Actual:        actual,
		Reported:      reported,
		Predicted:     predicted,
		ReportingRate: rate,
	}
}

// TestBuildCrash_EmptyObservations verifies the builder refuses an empty
// crash table.
func TestBuildCrash_EmptyObservations(t *testing.T) {
	_, entities, cfg := buildCrashFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	_, err := BuildCrash(nil, entities, strata, cfg)
	require.Error(t, err)
}

// TestBuildCrash_Summary verifies the headline totals, the overall
// reporting rate, and the per-quintile bias rows.
func TestBuildCrash_Summary(t *testing.T) {
	obs, entities, cfg := buildCrashFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildCrash(obs, entities, strata, cfg)
	require.NoError(t, err)

	s := rep.Summary
	assert.Equal(t, 200.0, s.TotalActual)
	assert.Equal(t, 140.0, s.TotalReported)
	assert.Equal(t, 126.0, s.TotalPredicted)
	assert.Equal(t, 0.7, s.ReportingRate)
	assert.Equal(t, []int{2022, 2023}, s.Years)
	assert.Equal(t, 4, s.Tracts)

	want := []datatypes.QuintileBias{
		{Quintile: datatypes.Quintile1, Label: "Q1 (Poorest)", ActualMean: 40, ReportedMean: 24, PredictedMean: 20, PredictionBias: -20, PredictionBiasPct: -50, ReportingRate: 0.6},
		{Quintile: datatypes.Quintile2, Label: "Q2", ActualMean: 30, ReportedMean: 21, PredictedMean: 18, PredictionBias: -12, PredictionBiasPct: -40, ReportingRate: 0.7},
		{Quintile: datatypes.Quintile4, Label: "Q4", ActualMean: 20, ReportedMean: 16, PredictedMean: 15, PredictionBias: -5, PredictionBiasPct: -25, ReportingRate: 0.8},
		{Quintile: datatypes.Quintile5, Label: "Q5 (Richest)", ActualMean: 10, ReportedMean: 9, PredictedMean: 10, PredictionBias: 0, PredictionBiasPct: 0, ReportingRate: 0.9},
	}
	assert.Equal(t, want, s.BiasByQuintile)
}

// TestBuildCrash_ConfusionMatrices verifies only the overall matrix
// survives (single-tract quintiles are too small) and that the predictor
// misses both high-crash tracts at the global median threshold.
func TestBuildCrash_ConfusionMatrices(t *testing.T) {
	obs, entities, cfg := buildCrashFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildCrash(obs, entities, strata, cfg)
	require.NoError(t, err)

	require.Len(t, rep.ConfusionMatrices, 1)
	cm := rep.ConfusionMatrices[0]
	assert.Equal(t, "overall", cm.Stratum)
	assert.Equal(t, "high_crash", cm.Label)
	assert.Equal(t, 25.0, cm.Threshold)
	assert.Equal(t, 4, cm.Members)
	assert.Equal(t, 0, cm.TruePositives)
	assert.Equal(t, 0, cm.FalsePositives)
	assert.Equal(t, 2, cm.FalseNegatives)
	assert.Equal(t, 2, cm.TrueNegatives)
	assert.Equal(t, 0.0, cm.Precision)
	assert.Equal(t, 0.0, cm.Recall)
	assert.Equal(t, 0.0, cm.F1Score)
	assert.Equal(t, 0.5, cm.Accuracy)
}

// TestBuildCrash_TimeSeries verifies the yearly sums per quintile and the
// overall line spanning both years.
func TestBuildCrash_TimeSeries(t *testing.T) {
	obs, entities, cfg := buildCrashFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildCrash(obs, entities, strata, cfg)
	require.NoError(t, err)

	ts := rep.TimeSeries
	assert.Equal(t, []int{2022, 2023}, ts.Years)
	require.Len(t, ts.ByQuintile, 4)

	q1 := ts.ByQuintile["Q1 (Poorest)"]
	require.Len(t, q1, 2)
	assert.Equal(t, datatypes.CrashSeriesPoint{Year: 2022, Actual: 40, Reported: 24, Predicted: 20}, q1[0])
	assert.Equal(t, datatypes.CrashSeriesPoint{Year: 2023, Actual: 40, Reported: 24, Predicted: 20}, q1[1])

	require.Len(t, ts.Overall, 2)
	assert.Equal(t, datatypes.CrashSeriesPoint{Year: 2022, Actual: 100, Reported: 70, Predicted: 63}, ts.Overall[0])
	assert.Equal(t, datatypes.CrashSeriesPoint{Year: 2023, Actual: 100, Reported: 70, Predicted: 63}, ts.Overall[1])
}

// TestBuildCrash_EquityGap verifies the prediction-error gap between the
// richest and poorest quintiles. Both groups have zero variance across the
// two identical years, so the significance test is untestable and the
// p-value pins to one.
func TestBuildCrash_EquityGap(t *testing.T) {
	obs, entities, cfg := buildCrashFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildCrash(obs, entities, strata, cfg)
	require.NoError(t, err)

	gap := rep.EquityGap
	require.NotNil(t, gap)
	assert.Equal(t, "Q5", gap.BestGroup)
	assert.Equal(t, "Q1", gap.WorstGroup)
	assert.Equal(t, 0.0, gap.BestGroupMean)
	assert.Equal(t, -50.0, gap.WorstGroupMean)
	assert.Equal(t, 50.0, gap.Gap)
	require.NotNil(t, gap.GapPct)
	assert.Equal(t, -100.0, *gap.GapPct)
	assert.Equal(t, 1.0, gap.PValue)
	assert.False(t, gap.Significant)
}

// TestBuildCrash_TrainedModel verifies the ridge variant trains on 2022
// and scores 2023: one row per quintile, internally consistent errors.
func TestBuildCrash_TrainedModel(t *testing.T) {
	obs, entities, cfg := buildCrashFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildCrash(obs, entities, strata, cfg)
	require.NoError(t, err)

	trained := rep.TrainedModel
	require.NotNil(t, trained)
	assert.Equal(t, 4, trained.Metrics.Samples)

	rows := trained.Rows
	require.Len(t, rows, 4)
	wantQuintiles := []datatypes.Quintile{datatypes.Quintile1, datatypes.Quintile2, datatypes.Quintile4, datatypes.Quintile5}
	wantActual := []float64{40, 30, 20, 10}
	for i, row := range rows {
		assert.Equal(t, wantQuintiles[i], row.Quintile, "row %d quintile", i)
		assert.Equal(t, 1, row.Count, "row %d count", i)
		assert.Equal(t, wantActual[i], row.MeanActual, "row %d actual mean", i)
		assert.InDelta(t, math.Abs(row.MeanPredicted-row.MeanActual), row.MAE, 1e-9,
			"single-member row MAE should match its own error")
		assert.GreaterOrEqual(t, row.MeanErrorPct, 0.0, "held-out error pct is absolute")
	}

	gap := trained.EquityGap
	require.NotNil(t, gap)
	assert.Equal(t, 1.0, gap.PValue, "single-member strata are untestable")
	assert.False(t, gap.Significant)
}

// TestBuildCrash_SingleYearSkipsTrainedModel verifies a one-year table
// omits the trained variant instead of failing the report.
func TestBuildCrash_SingleYearSkipsTrainedModel(t *testing.T) {
	_, entities, cfg := buildCrashFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	obs := []simulate.CrashObservation{
		crashObs("E1", 2023, 40, 24, 20, 0.6),
		crashObs("E2", 2023, 30, 21, 18, 0.7),
		crashObs("E3", 2023, 20, 16, 15, 0.8),
		crashObs("E4", 2023, 10, 9, 10, 0.9),
	}

	rep, err := BuildCrash(obs, entities, strata, cfg)
	require.NoError(t, err)
	assert.Nil(t, rep.TrainedModel)
}

// TestBuildCrash_Findings verifies the reporting-rate findings carry the
// published wording.
func TestBuildCrash_Findings(t *testing.T) {
	obs, entities, cfg := buildCrashFixture(t)
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildCrash(obs, entities, strata, cfg)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(rep.Findings), 2)

	assert.Equal(t, datatypes.SeverityInfo, rep.Findings[0].Severity)
	assert.Equal(t,
		"Only 70% of crashes reach the reported series; the predictor never sees the rest",
		rep.Findings[0].Message,
	)

	assert.Equal(t, datatypes.SeverityWarning, rep.Findings[1].Severity)
	assert.Equal(t,
		"Crashes in Q1 (Poorest) tracts are reported at 60% vs 90% in Q5 (Richest) tracts, so the training data undercounts where risk is highest",
		rep.Findings[1].Message,
	)
}

// TestBuildCrash_CoverageFinding verifies a table missing a configured year
// leads the findings with a coverage warning.
func TestBuildCrash_CoverageFinding(t *testing.T) {
	obs, entities, cfg := buildCrashFixture(t)
	cfg.Crash.Years = []int{2021, 2022, 2023}
	strata := buildTestStrata(t, entities, cfg)

	rep, err := BuildCrash(obs, entities, strata, cfg)
	require.NoError(t, err)

	require.NotEmpty(t, rep.Findings)
	assert.Equal(t, datatypes.SeverityWarning, rep.Findings[0].Severity)
	assert.Equal(t,
		"Crash table covers 2 of 3 configured years; missing [2021] weakens every trend in this section",
		rep.Findings[0].Message,
	)
}
