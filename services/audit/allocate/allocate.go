// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package allocate implements the greedy budget allocator behind the
// infrastructure audit. The audit runs the same allocator twice over the
// same candidate pool and budget: once ranked by the income-weighted AI
// priority and once ranked by roadway danger. Comparing the two passes is
// what surfaces the allocation bias, so the mechanics here stay identical
// between them and only the priorities and category rule differ.
package allocate

import (
	"fmt"
	"sort"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
)

// -----------------------------------------------------------------------------
// Candidates
// -----------------------------------------------------------------------------

// Candidate is one entity competing for budget in an allocation pass.
type Candidate struct {
	EntityID string

	// Priority orders the greedy pass, highest first.
	Priority float64

	// Covariate feeds the category rule: median income for the AI pass,
	// danger score for the need-based pass.
	Covariate float64
}

// CategoryRule picks the project category for a candidate given the
// pool-wide 75th percentile and median of the covariate.
type CategoryRule func(covariate, q75, median float64) string

// IncomeWeightedRule assigns categories the way the biased AI does:
// wealthier tracts get the more expensive projects.
func IncomeWeightedRule(income, q75, median float64) string {
	switch {
	case income > q75:
		return "bike_lane"
	case income > median:
		return "traffic_signal"
	default:
		return "crosswalk"
	}
}

// NeedBasedRule assigns categories by danger: the most dangerous tracts get
// the most effective projects.
func NeedBasedRule(danger, q75, median float64) string {
	switch {
	case danger > q75:
		return "bike_lane"
	case danger > median:
		return "traffic_signal"
	default:
		return "speed_reduction"
	}
}

// -----------------------------------------------------------------------------
// Greedy Pass
// -----------------------------------------------------------------------------

// Run executes one greedy allocation pass over the candidate pool.
//
// Description:
//
//	Candidates are visited in descending priority order, ties broken by
//	entity ID so a pass is deterministic for any input order. The category
//	thresholds are the pool-wide 75th percentile and median of the
//	covariate, fixed before the loop. The pass stops outright once the
//	budget is exhausted; a single project that merely does not fit is
//	skipped without stopping, so a cheaper project further down the
//	ranking can still be funded from the remainder.
//
// Inputs:
//   - candidates: The competing entities, at most one per entity.
//   - rule: Category selection for each funded candidate.
//   - catalog: Project definitions; every name the rule returns must exist.
//   - budget: Total budget for the pass.
//
// Outputs:
//   - []datatypes.AllocationRecord - Funded projects in funding order.
//   - datatypes.BudgetState - Total and remaining budget after the pass.
//   - error: Unknown category name or invalid quantile state.
func Run(candidates []Candidate, rule CategoryRule, catalog datatypes.CategoryCatalog, budget float64) ([]datatypes.AllocationRecord, datatypes.BudgetState, error) {
	state := datatypes.BudgetState{Total: budget, Remaining: budget}
	if len(candidates) == 0 {
		return nil, state, nil
	}

	pool := append([]Candidate(nil), candidates...)
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Priority != pool[j].Priority {
			return pool[i].Priority > pool[j].Priority
		}
		return pool[i].EntityID < pool[j].EntityID
	})

	covariates := make([]float64, len(pool))
	for i, c := range pool {
		covariates[i] = c.Covariate
	}
	q75, err := engine.Percentile(covariates, 0.75)
	if err != nil {
		return nil, state, err
	}
	median := engine.Median(covariates)

	var records []datatypes.AllocationRecord
	for _, c := range pool {
		if state.Remaining <= 0 {
			break
		}

		name := rule(c.Covariate, q75, median)
		cat, ok := catalog[name]
		if !ok {
			return nil, state, fmt.Errorf("allocate: rule selected unknown category %q", name)
		}
		if cat.Cost > state.Remaining {
			continue
		}

		state.Remaining -= cat.Cost
		records = append(records, datatypes.AllocationRecord{
			EntityID:       c.EntityID,
			Category:       name,
			Cost:           cat.Cost,
			PriorityScore:  c.Priority,
			RemainingAfter: state.Remaining,
		})
	}
	return records, state, nil
}

// Candidates pairs priority and covariate maps into a candidate pool. Only
// entities present in both maps compete; the result is keyed-order
// independent because Run re-sorts.
func Candidates(priorities, covariates map[string]float64) []Candidate {
	out := make([]Candidate, 0, len(priorities))
	for id, p := range priorities {
		cov, ok := covariates[id]
		if !ok {
			continue
		}
		out = append(out, Candidate{EntityID: id, Priority: p, Covariate: cov})
	}
	return out
}
