// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file builds the crash-audit report: reporting-bias summary, high-crash
// classification matrices, the yearly series behind the charts, and the
// ridge-trained predictor variant.

package report

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/loader"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/simulate"
)

// highCrashLabel names the positive class of the crash classification task.
const highCrashLabel = "high_crash"

// -----------------------------------------------------------------------------
// Crash Report
// -----------------------------------------------------------------------------

// BuildCrash assembles the crash-audit report from the simulated three-series
// crash table.
//
// Description:
//
//	The yearly observations feed the summary, the bias-by-quintile rows, and
//	the time series directly. The classification matrices work on per-tract
//	means across years, so a tract with one bad year is not counted five
//	times. The ridge-trained variant re-evaluates the table with the
//	closed-form predictor; when the table spans too few years for a
//	train/test split the section is omitted rather than failing the whole
//	report.
//
// Inputs:
//   - obs: Crash observations with all three series filled.
//   - entities: The census entities the observations belong to.
//   - strata: Demographic strata for the same entities.
//   - cfg: Run configuration; only Seed, SignificanceLevel, and Crash.Years
//     are read.
//
// Outputs:
//   - *datatypes.CrashReport - The assembled report.
//   - error - Non-nil when obs is empty or the ridge fit fails for a reason
//     other than an insufficient year span.
func BuildCrash(obs []simulate.CrashObservation, entities []datatypes.GeographicEntity, strata *engine.EntityStrata, cfg datatypes.AuditConfig) (*datatypes.CrashReport, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("report: crash audit needs at least one observation")
	}

	records := simulate.CrashRecords(obs)
	engine.Enrich(records, strata)

	tractRecords := tractMeanRecords(records)
	matrices := engine.StratifiedConfusion(tractRecords, overallAxis, highCrashLabel)
	matrices = append(matrices, engine.StratifiedConfusion(tractRecords, engine.IncomeAxis, highCrashLabel)...)

	samples := engine.CollectSamples(records, engine.IncomeAxis, engine.PctErrorOf)

	rep := &datatypes.CrashReport{
		Seed:              cfg.Seed,
		Summary:           crashSummary(obs, strata, len(entities)),
		ConfusionMatrices: matrices,
		TimeSeries:        crashTimeSeries(obs, strata),
		EquityGap:         engine.EquityGap(samples, cfg.SignificanceLevel),
	}

	trained, err := trainedModel(obs, entities, strata, cfg)
	if err != nil {
		return nil, err
	}
	rep.TrainedModel = trained

	coverage := loader.ValidateCoverage(records, cfg.Crash.Years)
	rep.Findings = crashFindings(rep.Summary, trained, coverage)
	return rep, nil
}

// overallAxis collapses every record into a single stratum, turning the
// stratified confusion helper into a whole-population one.
func overallAxis(datatypes.ObservationRecord) string { return "overall" }

// tractMeanRecords averages each tract's actual and predicted series across
// years, keeping the tract's strata labels. Output is sorted by entity ID.
func tractMeanRecords(records []datatypes.ObservationRecord) []datatypes.ObservationRecord {
	type agg struct {
		trueSum  float64
		predSum  float64
		count    int
		quintile datatypes.Quintile
		category datatypes.MinorityCategory
	}
	byTract := make(map[string]*agg)
	for _, r := range records {
		a := byTract[r.EntityID]
		if a == nil {
			a = &agg{quintile: r.IncomeQuintile, category: r.MinorityCategory}
			byTract[r.EntityID] = a
		}
		a.trueSum += r.TrueValue
		a.predSum += r.PredictedValue
		a.count++
	}

	out := make([]datatypes.ObservationRecord, 0, len(byTract))
	for id, a := range byTract {
		out = append(out, datatypes.ObservationRecord{
			EntityID:         id,
			TrueValue:        a.trueSum / float64(a.count),
			PredictedValue:   a.predSum / float64(a.count),
			IncomeQuintile:   a.quintile,
			MinorityCategory: a.category,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// -----------------------------------------------------------------------------
// Summary
// -----------------------------------------------------------------------------

func crashSummary(obs []simulate.CrashObservation, strata *engine.EntityStrata, tracts int) datatypes.CrashSummary {
	var actSum, repSum, predSum float64
	for _, o := range obs {
		actSum += o.Actual
		repSum += o.Reported
		predSum += o.Predicted
	}

	s := datatypes.CrashSummary{
		TotalActual:    math.Trunc(actSum),
		TotalReported:  math.Trunc(repSum),
		TotalPredicted: math.Trunc(predSum),
		Years:          distinctYears(obs),
		Tracts:         tracts,
		BiasByQuintile: biasByQuintile(obs, strata),
	}
	if actSum > 0 {
		s.ReportingRate = repSum / actSum
	}
	return s
}

func distinctYears(obs []simulate.CrashObservation) []int {
	seen := make(map[int]bool)
	var years []int
	for _, o := range obs {
		if !seen[o.Year] {
			seen[o.Year] = true
			years = append(years, o.Year)
		}
	}
	sort.Ints(years)
	return years
}

func biasByQuintile(obs []simulate.CrashObservation, strata *engine.EntityStrata) []datatypes.QuintileBias {
	type agg struct {
		act, rep, pred, rate float64
		count                int
	}
	byQ := make(map[datatypes.Quintile]*agg)
	for _, o := range obs {
		q := strata.QuintileFor(o.EntityID)
		if !q.Assigned() {
			continue
		}
		a := byQ[q]
		if a == nil {
			a = &agg{}
			byQ[q] = a
		}
		a.act += o.Actual
		a.rep += o.Reported
		a.pred += o.Predicted
		a.rate += o.ReportingRate
		a.count++
	}

	var rows []datatypes.QuintileBias
	for q := datatypes.Quintile1; q <= datatypes.Quintile5; q++ {
		a := byQ[q]
		if a == nil {
			continue
		}
		n := float64(a.count)
		row := datatypes.QuintileBias{
			Quintile:      q,
			Label:         q.Label(),
			ActualMean:    a.act / n,
			ReportedMean:  a.rep / n,
			PredictedMean: a.pred / n,
			ReportingRate: a.rate / n,
		}
		row.PredictionBias = row.PredictedMean - row.ActualMean
		if row.ActualMean != 0 {
			row.PredictionBiasPct = row.PredictionBias / row.ActualMean * 100
		}
		rows = append(rows, row)
	}
	return rows
}

// -----------------------------------------------------------------------------
// Time Series
// -----------------------------------------------------------------------------

// crashTimeSeries sums each series per year, once per quintile and once
// overall. Years a quintile never saw are zero-filled so every line spans
// the same x axis.
func crashTimeSeries(obs []simulate.CrashObservation, strata *engine.EntityStrata) datatypes.CrashTimeSeries {
	years := distinctYears(obs)
	index := make(map[int]int, len(years))
	for i, y := range years {
		index[y] = i
	}

	newSeries := func() []datatypes.CrashSeriesPoint {
		pts := make([]datatypes.CrashSeriesPoint, len(years))
		for i, y := range years {
			pts[i] = datatypes.CrashSeriesPoint{Year: y}
		}
		return pts
	}

	ts := datatypes.CrashTimeSeries{
		Years:      years,
		ByQuintile: make(map[string][]datatypes.CrashSeriesPoint),
		Overall:    newSeries(),
	}

	for _, o := range obs {
		i := index[o.Year]
		ts.Overall[i].Actual += o.Actual
		ts.Overall[i].Reported += o.Reported
		ts.Overall[i].Predicted += o.Predicted

		q := strata.QuintileFor(o.EntityID)
		if !q.Assigned() {
			continue
		}
		label := q.Label()
		pts, ok := ts.ByQuintile[label]
		if !ok {
			pts = newSeries()
			ts.ByQuintile[label] = pts
		}
		pts[i].Actual += o.Actual
		pts[i].Reported += o.Reported
		pts[i].Predicted += o.Predicted
	}
	return ts
}

// -----------------------------------------------------------------------------
// Trained Model Variant
// -----------------------------------------------------------------------------

// trainedModel fits the ridge predictor on the historical window and scores
// the held-out year per quintile. A nil result with a nil error means the
// table spans too few years to split.
func trainedModel(obs []simulate.CrashObservation, entities []datatypes.GeographicEntity, strata *engine.EntityStrata, cfg datatypes.AuditConfig) (*datatypes.TrainedModelResult, error) {
	preds, err := simulate.RidgeCrashPredictor{}.Evaluate(obs, entities)
	if err != nil {
		if errors.Is(err, simulate.ErrInsufficientYears) {
			return nil, nil
		}
		return nil, fmt.Errorf("report: trained crash model: %w", err)
	}
	if len(preds) == 0 {
		return nil, nil
	}

	// A trained-model section publishes only over a clean temporal split:
	// every training year strictly before the held-out year.
	holdout := preds[0].Year
	var trainRecs, testRecs []datatypes.ObservationRecord
	for _, o := range obs {
		rec := datatypes.ObservationRecord{EntityID: o.EntityID, Year: o.Year, TrueValue: o.Actual}
		if o.Year == holdout {
			testRecs = append(testRecs, rec)
		} else {
			trainRecs = append(trainRecs, rec)
		}
	}
	if split := loader.ValidateSplit(trainRecs, testRecs); !split.Valid {
		return nil, fmt.Errorf("report: trained crash model: %s", split.Message)
	}

	trueVals := make([]float64, len(preds))
	predVals := make([]float64, len(preds))
	for i, p := range preds {
		trueVals[i] = p.Actual
		predVals[i] = p.Predicted
	}
	metrics, err := engine.ComputeErrorMetrics(trueVals, predVals)
	if err != nil {
		return nil, fmt.Errorf("report: trained crash model: %w", err)
	}

	type agg struct {
		act, pred, abs, pct float64
		count               int
	}
	byQ := make(map[datatypes.Quintile]*agg)
	var samples []engine.Sample
	for _, p := range preds {
		q := strata.QuintileFor(p.EntityID)
		if !q.Assigned() {
			continue
		}
		a := byQ[q]
		if a == nil {
			a = &agg{}
			byQ[q] = a
		}
		a.act += p.Actual
		a.pred += p.Predicted
		a.abs += p.AbsError
		a.pct += p.ErrorPct
		a.count++
		samples = append(samples, engine.Sample{Stratum: q.String(), Value: p.ErrorPct})
	}

	res := &datatypes.TrainedModelResult{
		Metrics:   *metrics,
		EquityGap: engine.EquityGap(samples, cfg.SignificanceLevel),
	}
	for q := datatypes.Quintile1; q <= datatypes.Quintile5; q++ {
		a := byQ[q]
		if a == nil {
			continue
		}
		n := float64(a.count)
		res.Rows = append(res.Rows, datatypes.TrainedModelRow{
			Quintile:      q,
			Label:         q.Label(),
			Count:         a.count,
			MeanActual:    a.act / n,
			MeanPredicted: a.pred / n,
			MAE:           a.abs / n,
			MeanErrorPct:  a.pct / n,
		})
	}
	return res, nil
}

// -----------------------------------------------------------------------------
// Findings
// -----------------------------------------------------------------------------

func crashFindings(summary datatypes.CrashSummary, trained *datatypes.TrainedModelResult, coverage loader.CoverageCheck) []datatypes.Finding {
	var out []datatypes.Finding

	if !coverage.Valid {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityWarning,
			Message: fmt.Sprintf(
				"Crash table covers %d of %d configured years; missing %v weakens every trend in this section",
				len(coverage.YearsPresent), len(coverage.YearsPresent)+len(coverage.MissingYears), coverage.MissingYears,
			),
		})
	}

	if rate := summary.ReportingRate; rate > 0 && rate < 1 {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityInfo,
			Message: fmt.Sprintf(
				"Only %.0f%% of crashes reach the reported series; the predictor never sees the rest",
				rate*100,
			),
		})
	}

	var q1, q5 *datatypes.QuintileBias
	for i := range summary.BiasByQuintile {
		switch summary.BiasByQuintile[i].Quintile {
		case datatypes.Quintile1:
			q1 = &summary.BiasByQuintile[i]
		case datatypes.Quintile5:
			q5 = &summary.BiasByQuintile[i]
		}
	}
	if q1 != nil && q5 != nil && q1.ReportingRate < q5.ReportingRate {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityWarning,
			Message: fmt.Sprintf(
				"Crashes in %s tracts are reported at %.0f%% vs %.0f%% in %s tracts, so the training data undercounts where risk is highest",
				q1.Label, q1.ReportingRate*100, q5.ReportingRate*100, q5.Label,
			),
		})
	}

	if trained != nil {
		var tq1, tq5 *datatypes.TrainedModelRow
		for i := range trained.Rows {
			switch trained.Rows[i].Quintile {
			case datatypes.Quintile1:
				tq1 = &trained.Rows[i]
			case datatypes.Quintile5:
				tq5 = &trained.Rows[i]
			}
		}
		if tq1 != nil && tq5 != nil && tq5.MeanErrorPct != 0 {
			ratio := math.Abs(tq1.MeanErrorPct) / math.Abs(tq5.MeanErrorPct)
			if ratio > 1 {
				out = append(out, datatypes.Finding{
					Severity: datatypes.SeverityWarning,
					Message: fmt.Sprintf(
						"Trained model error is %.0f%% in %s vs %.0f%% in %s, %.1fx worse in the poorest areas",
						math.Abs(tq1.MeanErrorPct), tq1.Label,
						math.Abs(tq5.MeanErrorPct), tq5.Label, ratio,
					),
				})
			}
		}
	}
	return out
}
