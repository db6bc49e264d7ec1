// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package allocate

import (
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
)

// -----------------------------------------------------------------------------
// Pass Equity
// -----------------------------------------------------------------------------

// Equity summarizes how one allocation pass distributed spending across
// income quintiles.
//
// Description:
//
//	Spending is grouped by the funded entity's quintile label; population
//	sums over every entity in the run, funded or not, so per-capita spend
//	reflects what each quintile's residents actually received. A populated
//	quintile that won no projects carries a per-capita of zero rather than
//	disappearing, which keeps the disparate-impact ratio defined in the
//	most lopsided allocations. The ratio compares Q1 per-capita spend
//	against Q5 and is nil only when Q5 has no population or no spending.
//	The Gini coefficient runs over the funded project costs of the pass.
//	Records for entities without a quintile stay out of the per-quintile
//	maps but still count toward the Gini.
func Equity(records []datatypes.AllocationRecord, entities []datatypes.GeographicEntity, strata *engine.EntityStrata) datatypes.AllocationEquity {
	spend := make(map[string]float64)
	costs := make([]float64, 0, len(records))
	for _, r := range records {
		costs = append(costs, r.Cost)
		q := strata.QuintileFor(r.EntityID)
		if !q.Assigned() {
			continue
		}
		spend[q.Label()] += r.Cost
	}

	pop := make(map[string]float64)
	for _, ent := range entities {
		q := strata.QuintileFor(ent.ID)
		if !q.Assigned() {
			continue
		}
		pop[q.Label()] += float64(ent.Population)
	}

	perCapita := make(map[string]float64, len(pop))
	for label, p := range pop {
		if p > 0 {
			perCapita[label] = spend[label] / p
		}
	}

	eq := datatypes.AllocationEquity{
		SpendByQuintile:     spend,
		PerCapitaByQuintile: perCapita,
	}

	q1, ok1 := perCapita[datatypes.Quintile1.Label()]
	q5, ok5 := perCapita[datatypes.Quintile5.Label()]
	if ok1 && ok5 {
		eq.DisparateImpact = engine.DisparateImpact(q1, q5)
	}

	// Gini never errors here: project costs are positive by construction.
	if g, err := engine.Gini(costs); err == nil {
		eq.Gini = g
	}
	return eq
}

// Compare contrasts the AI-weighted pass against the need-based one. Both
// deltas follow the need-minus-AI convention, matching the sign of
// AllocationComparison.EquityGap.
func Compare(ai, need datatypes.AllocationEquity) datatypes.AllocationComparison {
	var cmp datatypes.AllocationComparison
	if ai.DisparateImpact != nil && need.DisparateImpact != nil {
		cmp.EquityGap = datatypes.Float64(need.DisparateImpact.Ratio - ai.DisparateImpact.Ratio)
	}
	if ai.Gini != nil && need.Gini != nil {
		cmp.GiniImprovement = datatypes.Float64(*need.Gini - *ai.Gini)
	}
	return cmp
}
