// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package simulate

import (
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Suppressed Demand
// -----------------------------------------------------------------------------

const (
	// demandIncomeFactorSpan lifts potential demand up to 1.5x in the
	// poorest tracts.
	demandIncomeFactorSpan = 0.5

	// Destination-density proxy bounds.
	destinationFactorBase = 0.8
	destinationFactorSpan = 0.4

	// Infrastructure score model: a linear income ramp with noise, clipped.
	infraScoreBase  = 0.3
	infraScoreSlope = 0.6
	infraScoreNoise = 0.05
	infraScoreMin   = 0.2
	infraScoreMax   = 0.95

	// Sophisticated detector terms.
	sophPopulationRate  = 0.05
	sophInfraAdjustment = 50.0
	sophNoiseSigma      = 30.0
	sophCeilingFactor   = 1.2
)

// SuppressionFactor is the fraction of potential demand lost at an
// infrastructure quality score in [0, 1]. The loss is quadratic: poor
// infrastructure does not shave demand, it collapses it.
func SuppressionFactor(score float64) float64 {
	return 1 - score*score
}

// DemandObservation is one tract's demand profile with both detector
// estimates.
type DemandObservation struct {
	EntityID   string  `json:"geoid"`
	Population float64 `json:"population"`
	NormIncome float64 `json:"norm_income"`

	Potential         float64 `json:"potential_demand"`
	InfraScore        float64 `json:"infrastructure_score"`
	SuppressionFactor float64 `json:"suppression_factor"`
	Actual            float64 `json:"actual_demand"`
	Suppressed        float64 `json:"suppressed_demand"`
	SuppressionPct    float64 `json:"suppression_pct"`

	NaivePrediction float64 `json:"ai_naive_prediction"`
	SophPrediction  float64 `json:"ai_sophisticated_prediction"`
}

// DemandSimulator generates potential demand, infrastructure-driven
// suppression, and the two detector estimates.
type DemandSimulator struct {
	Config datatypes.DemandConfig
}

// NewDemandSimulator wires a simulator from the run configuration.
func NewDemandSimulator(cfg *datatypes.AuditConfig) DemandSimulator {
	return DemandSimulator{Config: cfg.Demand}
}

// Simulate produces one observation per entity with a known income, in
// input order.
//
// Description:
//
//	Three stages, each drawing once per tract before the next begins.
//	Potential demand scales population by the base trip rate, an income
//	factor favoring poor tracts, and a random destination factor. The
//	infrastructure score rises with income, and its quadratic suppression
//	factor splits potential into actual and suppressed demand. Finally the
//	naive detector reports observed demand unchanged, while the
//	sophisticated detector adds population and infrastructure proxies plus
//	noise, capped at 1.2x potential.
//
// Inputs:
//   - entities: Tract demographics; nil-income entities are skipped.
//   - rng: Draw source; consumes three draws per emitted observation.
//
// Outputs:
//   - []DemandObservation - Fully populated profiles.
func (s DemandSimulator) Simulate(entities []datatypes.GeographicEntity, rng *Rand) []DemandObservation {
	norm := NormalizedIncomes(entities)

	out := make([]DemandObservation, 0, len(entities))
	for _, ent := range entities {
		n, ok := norm[ent.ID]
		if !ok {
			continue
		}

		pop := float64(ent.Population)
		incomeFactor := 1 + (1-n)*demandIncomeFactorSpan
		destinationFactor := destinationFactorBase + rng.Uniform(0, destinationFactorSpan)

		out = append(out, DemandObservation{
			EntityID:   ent.ID,
			Population: pop,
			NormIncome: n,
			Potential:  pop * s.Config.BaseRate * incomeFactor * destinationFactor,
		})
	}

	for i := range out {
		score := clip(infraScoreBase+out[i].NormIncome*infraScoreSlope+rng.Normal(0, infraScoreNoise),
			infraScoreMin, infraScoreMax)
		factor := SuppressionFactor(score)

		out[i].InfraScore = score
		out[i].SuppressionFactor = factor
		out[i].Actual = out[i].Potential * (1 - factor)
		out[i].Suppressed = out[i].Potential - out[i].Actual
		out[i].SuppressionPct = factor * 100
	}

	for i := range out {
		soph := out[i].Actual +
			out[i].Population*sophPopulationRate +
			(1-out[i].InfraScore)*sophInfraAdjustment +
			rng.Normal(0, sophNoiseSigma)

		out[i].NaivePrediction = out[i].Actual
		out[i].SophPrediction = clip(soph, 0, out[i].Potential*sophCeilingFactor)
	}
	return out
}
