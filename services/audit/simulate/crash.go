// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package simulate

import (
	"math"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
)

// -----------------------------------------------------------------------------
// Crash Pipeline
// -----------------------------------------------------------------------------

const (
	// Crash exposure multiplier bounds: the poorest tract sees
	// crashIncomeMultiplierMax times the base rate, the richest
	// crashIncomeMultiplierMin.
	crashIncomeMultiplierMin = 0.7
	crashIncomeMultiplierMax = 1.5

	// crashTemporalNoise is the relative sigma of year-to-year variation.
	crashTemporalNoise = 0.1

	// crashReportingNoise is the relative sigma applied to the reported
	// series.
	crashReportingNoise = 0.05
)

// CrashObservation is one tract-year of simulated crash history with its
// three series: ground truth, police-reported, and AI-predicted.
type CrashObservation struct {
	EntityID  string  `json:"geoid"`
	Year      int     `json:"year"`
	Actual    float64 `json:"actual_crashes"`
	Reported  float64 `json:"reported_crashes"`
	Predicted float64 `json:"predicted_crashes"`

	// ReportingRate is the income-derived share of actual crashes that
	// reach the reported series. Zero until ApplyReportingBias runs.
	ReportingRate float64 `json:"reporting_rate"`
}

// CrashSimulator generates income-correlated crash history and layers the
// reporting-bias and prediction series on top of it.
//
// The methods compose a pipeline and run in order: Generate produces the
// ground truth, ApplyReportingBias fills the reported series from it, and
// PredictFromReported fills the predicted series from the reported one. The
// predictor deliberately never sees the ground truth; it inherits whatever
// bias reporting injected.
type CrashSimulator struct {
	Config datatypes.CrashConfig
}

// NewCrashSimulator wires a simulator from the run configuration.
func NewCrashSimulator(cfg *datatypes.AuditConfig) CrashSimulator {
	return CrashSimulator{Config: cfg.Crash}
}

// Generate produces the ground-truth series: one observation per entity per
// configured year, with crash counts scaled up in low-income tracts and
// jittered year to year. Entities with a nil MedianIncome are skipped.
// Consumes one normal draw per emitted observation.
func (s CrashSimulator) Generate(entities []datatypes.GeographicEntity, rng *Rand) []CrashObservation {
	norm := NormalizedIncomes(entities)
	span := crashIncomeMultiplierMax - crashIncomeMultiplierMin

	out := make([]CrashObservation, 0, len(entities)*len(s.Config.Years))
	for _, ent := range entities {
		n, ok := norm[ent.ID]
		if !ok {
			continue
		}
		multiplier := crashIncomeMultiplierMax - n*span

		for _, year := range s.Config.Years {
			expected := s.Config.BaseRate * multiplier
			noise := rng.Normal(1.0, crashTemporalNoise)

			out = append(out, CrashObservation{
				EntityID: ent.ID,
				Year:     year,
				Actual:   math.Max(0, math.Trunc(expected*noise)),
			})
		}
	}
	return out
}

// ApplyReportingBias fills the reported series in place. The reporting rate
// rises linearly with normalized income, so poor tracts lose a larger share
// of their actual crashes. Rows whose entity has no known income are left
// untouched and consume no draw.
func (s CrashSimulator) ApplyReportingBias(obs []CrashObservation, entities []datatypes.GeographicEntity, rng *Rand) {
	norm := NormalizedIncomes(entities)
	for i := range obs {
		n, ok := norm[obs[i].EntityID]
		if !ok {
			continue
		}
		rate := s.Config.ReportingBase + n*s.Config.ReportingSlope
		scaled := obs[i].Actual * rate

		obs[i].Reported = math.Max(0, math.Trunc(rng.Normal(scaled, scaled*crashReportingNoise)))
		obs[i].ReportingRate = rate
	}
}

// PredictFromReported fills the predicted series in place.
//
// Description:
//
//	The stand-in model learns one prior per income quintile, the mean of
//	the reported series, then shrinks each row's reported value toward its
//	quintile prior by the configured damping factor and adds relative
//	noise. Because the prior comes from reported rather than actual
//	crashes, every prediction inherits the reporting bias.
//
// Inputs:
//   - obs: Observations with the reported series already filled.
//   - strata: Quintile assignments for the observed entities.
//   - rng: Draw source; consumes one normal draw per row with an assigned
//     quintile.
func (s CrashSimulator) PredictFromReported(obs []CrashObservation, strata *engine.EntityStrata, rng *Rand) {
	sums := make(map[datatypes.Quintile]float64)
	counts := make(map[datatypes.Quintile]int)
	for _, o := range obs {
		q := strata.QuintileFor(o.EntityID)
		if !q.Assigned() {
			continue
		}
		sums[q] += o.Reported
		counts[q]++
	}

	for i := range obs {
		q := strata.QuintileFor(obs[i].EntityID)
		if !q.Assigned() || counts[q] == 0 {
			// No learned prior; the estimate degrades to the reported value.
			obs[i].Predicted = obs[i].Reported
			continue
		}

		prior := sums[q] / float64(counts[q])
		pred := prior + (obs[i].Reported-prior)*s.Config.Damping
		noise := rng.Normal(0, pred*s.Config.PredictionNoise)
		obs[i].Predicted = math.Max(0, pred+noise)
	}
}

// CrashRecords converts obs to observation records, pairing the ground
// truth with the AI-predicted series.
func CrashRecords(obs []CrashObservation) []datatypes.ObservationRecord {
	out := make([]datatypes.ObservationRecord, len(obs))
	for i, o := range obs {
		out[i] = datatypes.ObservationRecord{
			EntityID:       o.EntityID,
			TrueValue:      o.Actual,
			PredictedValue: o.Predicted,
			Year:           o.Year,
		}
	}
	return out
}
