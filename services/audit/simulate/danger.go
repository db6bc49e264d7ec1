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
)

// -----------------------------------------------------------------------------
// Danger Scores
// -----------------------------------------------------------------------------

const (
	// dangerPopulationFactor adds 10% danger per 10,000 residents.
	dangerPopulationFactor = 0.1

	// Shared ±20% jitter bounds for danger variation and advocacy.
	jitterLo = 0.8
	jitterHi = 1.2

	// advocacyWeight scales the advocacy boost into the AI priority.
	advocacyWeight = 0.3
)

// DangerSimulator generates per-tract roadway danger and the priority
// signals the budget allocator ranks on.
type DangerSimulator struct {
	Config datatypes.DangerConfig
}

// NewDangerSimulator wires a simulator from the run configuration.
func NewDangerSimulator(cfg *datatypes.AuditConfig) DangerSimulator {
	return DangerSimulator{Config: cfg.Danger}
}

// Scores simulates danger for every entity with a known income, in input
// order. Danger rises as income falls and grows slightly with population;
// the annual crash estimate scales danger by population. Consumes one
// uniform draw per scored entity. Quintile labels are left for the caller
// to fill.
func (s DangerSimulator) Scores(entities []datatypes.GeographicEntity, rng *Rand) []datatypes.DangerScore {
	norm := NormalizedIncomes(entities)
	span := s.Config.IncomeMultiplierMax - s.Config.IncomeMultiplierMin

	out := make([]datatypes.DangerScore, 0, len(entities))
	for _, ent := range entities {
		n, ok := norm[ent.ID]
		if !ok {
			continue
		}

		incomeMult := s.Config.IncomeMultiplierMin + (1-n)*span
		popMult := 1.0 + float64(ent.Population)/10000*dangerPopulationFactor
		noise := rng.Uniform(jitterLo, jitterHi)
		danger := s.Config.BaseDanger * incomeMult * popMult * noise

		out = append(out, datatypes.DangerScore{
			EntityID:      ent.ID,
			Danger:        math.Round(danger*100) / 100,
			AnnualCrashes: math.Round(danger*float64(ent.Population)/10000*10) / 10,
		})
	}
	return out
}

// AIPriorities computes the income-weighted ranking signal for each scored
// entity. The score blends normalized danger with normalized income at the
// configured bias strength, then multiplies in an advocacy boost that
// itself scales with income, so income enters the ranking twice. Consumes
// one uniform draw per score, in score order.
func (s DangerSimulator) AIPriorities(scores []datatypes.DangerScore, entities []datatypes.GeographicEntity, rng *Rand) map[string]float64 {
	dangers := make([]float64, len(scores))
	for i, sc := range scores {
		dangers[i] = sc.Danger
	}
	dangerNorm := normalize01(dangers)
	incomeNorm := NormalizedIncomes(entities)

	out := make(map[string]float64, len(scores))
	for i, sc := range scores {
		in := incomeNorm[sc.EntityID]
		priority := (1-s.Config.BiasStrength)*dangerNorm[i] + s.Config.BiasStrength*in
		advocacy := in * rng.Uniform(jitterLo, jitterHi)
		out[sc.EntityID] = priority * (1 + advocacy*advocacyWeight)
	}
	return out
}

// NeedPriorities ranks purely by danger.
func NeedPriorities(scores []datatypes.DangerScore) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for _, sc := range scores {
		out[sc.EntityID] = sc.Danger
	}
	return out
}
