// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"math"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Stratified Analysis
// -----------------------------------------------------------------------------

// MetricFunc selects a nullable metric from an enriched record. A nil
// return excludes the record from aggregation (filter-before-compute).
type MetricFunc func(datatypes.ObservationRecord) *float64

// ErrorOf selects the signed error.
func ErrorOf(r datatypes.ObservationRecord) *float64 { return r.Error }

// PctErrorOf selects the signed percentage error; nil for zero-true records.
func PctErrorOf(r datatypes.ObservationRecord) *float64 { return r.ErrorPct }

// AbsErrorOf selects the absolute error.
func AbsErrorOf(r datatypes.ObservationRecord) *float64 {
	if r.Error == nil {
		return nil
	}
	return datatypes.Float64(math.Abs(*r.Error))
}

// AbsPctErrorOf selects the absolute percentage error; nil for zero-true
// records.
func AbsPctErrorOf(r datatypes.ObservationRecord) *float64 {
	if r.ErrorPct == nil {
		return nil
	}
	return datatypes.Float64(math.Abs(*r.ErrorPct))
}

// CollectSamples extracts the metric column along a stratum axis, dropping
// records with an unassigned stratum or a null metric value.
func CollectSamples(records []datatypes.ObservationRecord, axis StratumAxis, metric MetricFunc) []Sample {
	samples := make([]Sample, 0, len(records))
	for _, r := range records {
		stratum := axis(r)
		if stratum == "" {
			continue
		}
		v := metric(r)
		if v == nil {
			continue
		}
		samples = append(samples, Sample{Stratum: stratum, Value: *v})
	}
	return samples
}

// Analyze produces the canonical nested analysis of one metric across both
// stratification axes.
//
// Description:
//
//	Groups the metric by income quintile and by minority category,
//	summarizes each stratum (count/mean/std/median), summarizes the whole
//	population, and attaches an equity gap per axis. Records with a null
//	metric value are excluded everywhere; records with an unassigned
//	stratum still count toward the overall summary.
//
// Inputs:
//   - records: enriched observation records (see Enrich).
//   - metric: the metric column to analyze.
//   - cfg: supplies the significance level for the gap tests.
//
// Outputs:
//   - *datatypes.StratifiedAnalysis: the nested result. Gap fields are nil
//     when an axis has fewer than two non-empty strata.
//
// Thread Safety: pure function, safe for concurrent use.
func Analyze(records []datatypes.ObservationRecord, metric MetricFunc, cfg datatypes.AuditConfig) *datatypes.StratifiedAnalysis {
	incomeSamples := CollectSamples(records, IncomeAxis, metric)
	minoritySamples := CollectSamples(records, MinorityAxis, metric)

	overall := make([]float64, 0, len(records))
	for _, r := range records {
		if v := metric(r); v != nil {
			overall = append(overall, *v)
		}
	}

	return &datatypes.StratifiedAnalysis{
		ByIncomeQuintile:   GroupSummaries(incomeSamples),
		ByMinorityCategory: GroupSummaries(minoritySamples),
		Overall: datatypes.StratumSummary{
			Stratum: "overall",
			Count:   len(overall),
			Mean:    Mean(overall),
			Std:     Std(overall),
			Median:  Median(overall),
		},
		EquityGaps: datatypes.EquityGaps{
			Income:   EquityGap(incomeSamples, cfg.SignificanceLevel),
			Minority: EquityGap(minoritySamples, cfg.SignificanceLevel),
		},
	}
}
