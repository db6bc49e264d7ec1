// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file builds the volume-audit report: headline accuracy, per-quintile
// and per-category breakdowns, chart-ready distributions, and the findings
// derived from them.

package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/simulate"
)

// -----------------------------------------------------------------------------
// Histogram Bounds
// -----------------------------------------------------------------------------

const (
	histogramLow   = -50.0
	histogramHigh  = 50.0
	histogramWidth = 5.0
)

// Finding thresholds, in percentage points of the respective equity gap.
const (
	incomeBiasGapPct = 20.0
	raceBiasGapPct   = 15.0
)

// -----------------------------------------------------------------------------
// Volume Report
// -----------------------------------------------------------------------------

// BuildVolume assembles the volume-audit report from simulated counter
// observations.
//
// Description:
//
//	Records are enriched in place with error fields and stratum labels, then
//	rolled up four ways: overall accuracy, accuracy by income quintile,
//	accuracy by minority category, and the generic stratified analysis. The
//	chart payloads (scatter, error histogram, per-entity aggregates) are
//	derived from the same enriched set, so every view of the report agrees
//	on the underlying numbers.
//
// Inputs:
//   - obs: Simulated counter observations, one per counter site.
//   - entities: The census entities the counters sit in.
//   - strata: Demographic strata for the same entities.
//   - cfg: Run configuration; only Seed and SignificanceLevel are read.
//
// Outputs:
//   - *datatypes.VolumeReport - The assembled report.
//   - error - Non-nil when obs is empty.
func BuildVolume(obs []simulate.VolumeObservation, entities []datatypes.GeographicEntity, strata *engine.EntityStrata, cfg datatypes.AuditConfig) (*datatypes.VolumeReport, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("report: volume audit needs at least one observation")
	}

	records := simulate.VolumeRecords(obs)
	engine.Enrich(records, strata)

	byID := make(map[string]datatypes.GeographicEntity, len(entities))
	for _, ent := range entities {
		byID[ent.ID] = ent
	}

	overall, err := overallAccuracy(records)
	if err != nil {
		return nil, err
	}

	rep := &datatypes.VolumeReport{
		Seed:           cfg.Seed,
		Overall:        *overall,
		ByIncome:       accuracyByIncome(records, byID, cfg),
		ByRace:         accuracyByRace(records, byID, cfg),
		Stratified:     engine.Analyze(records, engine.PctErrorOf, cfg),
		Scatter:        scatterData(obs, records, byID),
		ErrorHistogram: errorHistogram(records),
		EntityErrors:   entityErrors(records),
	}
	rep.Findings = volumeFindings(rep.ByIncome.EquityGap, rep.ByRace.EquityGap)
	return rep, nil
}

func overallAccuracy(records []datatypes.ObservationRecord) (*datatypes.OverallAccuracy, error) {
	metrics, err := engine.MetricsForRecords(records)
	if err != nil {
		return nil, fmt.Errorf("report: overall volume accuracy: %w", err)
	}

	var trueSum, predSum float64
	for _, r := range records {
		trueSum += r.TrueValue
		predSum += r.PredictedValue
	}
	return &datatypes.OverallAccuracy{
		TotalCounters:        len(records),
		TotalTrueVolume:      math.Trunc(trueSum),
		TotalPredictedVolume: math.Trunc(predSum),
		Metrics:              *metrics,
	}, nil
}

// -----------------------------------------------------------------------------
// Group Breakdowns
// -----------------------------------------------------------------------------

func accuracyByIncome(records []datatypes.ObservationRecord, byID map[string]datatypes.GeographicEntity, cfg datatypes.AuditConfig) datatypes.AccuracyByIncome {
	var out datatypes.AccuracyByIncome

	for q := datatypes.Quintile1; q <= datatypes.Quintile5; q++ {
		var subset []datatypes.ObservationRecord
		var incomes []float64
		for _, r := range records {
			if r.IncomeQuintile != q {
				continue
			}
			subset = append(subset, r)
			if ent, ok := byID[r.EntityID]; ok && ent.MedianIncome != nil {
				incomes = append(incomes, *ent.MedianIncome)
			}
		}
		if len(subset) == 0 {
			continue
		}

		metrics, err := engine.MetricsForRecords(subset)
		if err != nil {
			continue
		}
		out.Rows = append(out.Rows, datatypes.IncomeAccuracyRow{
			Quintile:     q,
			Label:        q.String(),
			Count:        len(subset),
			MedianIncome: engine.Median(incomes),
			MAE:          metrics.MAE,
			MAPE:         metrics.MAPE,
			Bias:         metrics.Bias,
			MeanErrorPct: metrics.MeanPctError,
		})
	}

	samples := engine.CollectSamples(records, engine.IncomeAxis, engine.PctErrorOf)
	out.EquityGap = engine.EquityGap(samples, cfg.SignificanceLevel)
	return out
}

func accuracyByRace(records []datatypes.ObservationRecord, byID map[string]datatypes.GeographicEntity, cfg datatypes.AuditConfig) datatypes.AccuracyByRace {
	var out datatypes.AccuracyByRace

	for _, cat := range []datatypes.MinorityCategory{datatypes.CategoryLow, datatypes.CategoryMedium, datatypes.CategoryHigh} {
		var subset []datatypes.ObservationRecord
		var pcts []float64
		for _, r := range records {
			if r.MinorityCategory != cat {
				continue
			}
			subset = append(subset, r)
			if ent, ok := byID[r.EntityID]; ok && ent.PctMinority != nil {
				pcts = append(pcts, *ent.PctMinority)
			}
		}
		if len(subset) == 0 {
			continue
		}

		metrics, err := engine.MetricsForRecords(subset)
		if err != nil {
			continue
		}
		out.Rows = append(out.Rows, datatypes.RaceAccuracyRow{
			Category:        cat,
			Count:           len(subset),
			MeanMinorityPct: engine.Mean(pcts),
			MAE:             metrics.MAE,
			MAPE:            metrics.MAPE,
			Bias:            metrics.Bias,
			MeanErrorPct:    metrics.MeanPctError,
		})
	}

	samples := engine.CollectSamples(records, engine.MinorityAxis, engine.PctErrorOf)
	out.EquityGap = engine.EquityGap(samples, cfg.SignificanceLevel)
	return out
}

// -----------------------------------------------------------------------------
// Chart Payloads
// -----------------------------------------------------------------------------

// scatterData pairs each enriched record with its counter and tract
// demographics. records must be the enriched counterpart of obs, index for
// index.
func scatterData(obs []simulate.VolumeObservation, records []datatypes.ObservationRecord, byID map[string]datatypes.GeographicEntity) []datatypes.ScatterPoint {
	out := make([]datatypes.ScatterPoint, len(obs))
	for i, o := range obs {
		r := records[i]
		p := datatypes.ScatterPoint{
			CounterID:        o.Counter.ID,
			TrueValue:        r.TrueValue,
			Predicted:        r.PredictedValue,
			Quintile:         r.IncomeQuintile,
			MinorityCategory: r.MinorityCategory,
		}
		if ent, ok := byID[r.EntityID]; ok {
			p.MedianIncome = ent.MedianIncome
			p.PctMinority = ent.PctMinority
		}
		out[i] = p
	}
	return out
}

// errorHistogram buckets percent errors into fixed 5-point bins spanning
// -50% to +50%. Values outside the span are dropped; the top bin is closed
// on both sides so an exact +50% still lands in it. Empty bins are kept so
// chart clients get a stable x axis.
func errorHistogram(records []datatypes.ObservationRecord) []datatypes.HistogramBin {
	n := int((histogramHigh - histogramLow) / histogramWidth)
	bins := make([]datatypes.HistogramBin, n)
	for i := range bins {
		lo := histogramLow + float64(i)*histogramWidth
		hi := lo + histogramWidth
		bins[i] = datatypes.HistogramBin{
			Low:   lo,
			High:  hi,
			Label: fmt.Sprintf("%.0f%% to %.0f%%", lo, hi),
		}
	}

	for _, r := range records {
		if r.ErrorPct == nil {
			continue
		}
		v := *r.ErrorPct
		if v < histogramLow || v > histogramHigh {
			continue
		}
		idx := int((v - histogramLow) / histogramWidth)
		if idx == n {
			idx = n - 1
		}
		bins[idx].Count++
	}
	return bins
}

// entityErrors aggregates records per entity for the choropleth view.
// Entities appear only when they have at least one counter; clients join
// against the census table and default the rest to zero.
func entityErrors(records []datatypes.ObservationRecord) []datatypes.EntityError {
	type agg struct {
		pctSum, pctN float64
		errSum       float64
		trueSum      float64
		predSum      float64
		count        int
	}
	byEntity := make(map[string]*agg)
	for _, r := range records {
		a := byEntity[r.EntityID]
		if a == nil {
			a = &agg{}
			byEntity[r.EntityID] = a
		}
		if r.ErrorPct != nil {
			a.pctSum += *r.ErrorPct
			a.pctN++
		}
		if r.Error != nil {
			a.errSum += *r.Error
		}
		a.trueSum += r.TrueValue
		a.predSum += r.PredictedValue
		a.count++
	}

	out := make([]datatypes.EntityError, 0, len(byEntity))
	for id, a := range byEntity {
		e := datatypes.EntityError{
			EntityID:       id,
			MeanError:      a.errSum / float64(a.count),
			TotalTrue:      a.trueSum,
			TotalPredicted: a.predSum,
			Count:          a.count,
		}
		if a.pctN > 0 {
			e.MeanErrorPct = a.pctSum / a.pctN
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// -----------------------------------------------------------------------------
// Findings
// -----------------------------------------------------------------------------

// volumeFindings emits the bias warnings. Thresholds compare the gap
// magnitude: an undercounted worst group drives gap_pct negative, and the
// bias is no less real for the sign.
func volumeFindings(income, race *datatypes.EquityGapResult) []datatypes.Finding {
	var out []datatypes.Finding

	if income != nil && income.GapPct != nil && math.Abs(*income.GapPct) > incomeBiasGapPct {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityWarning,
			Message: fmt.Sprintf(
				"Significant income bias detected: %s areas undercounted by %.1f%% on average, while %s areas overcounted by %.1f%%",
				income.WorstGroup, math.Abs(income.WorstGroupMean),
				income.BestGroup, income.BestGroupMean,
			),
		})
	}

	if race != nil && race.GapPct != nil && math.Abs(*race.GapPct) > raceBiasGapPct {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityWarning,
			Message: fmt.Sprintf(
				"Significant racial bias detected: %s areas have %.1f%% worse accuracy",
				race.WorstGroup, math.Abs(*race.GapPct),
			),
		})
	}
	return out
}
