// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Quintile Assignment
// -----------------------------------------------------------------------------

// ComputeQuintileBreaks returns the covariate values at each probability in
// probs, computed over the values actually present in the current run. The
// breakpoints are recomputed per audit run and never cached across datasets.
//
// Inputs:
//   - values: the non-null covariate values (e.g. median incomes).
//   - probs: ascending quantile probabilities, typically [0.2,0.4,0.6,0.8].
//
// Outputs:
//   - []float64: one breakpoint per probability.
//   - error: ErrEmptySeries when values is empty, ErrInvalidProbability when
//     any probability falls outside [0,1].
func ComputeQuintileBreaks(values []float64, probs []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, ErrEmptySeries
	}
	breaks := make([]float64, len(probs))
	for i, p := range probs {
		b, err := Percentile(values, p)
		if err != nil {
			return nil, err
		}
		breaks[i] = b
	}
	return breaks, nil
}

// AssignQuintile maps a covariate value to its quintile given ascending
// breakpoints. Boundary values land in the lower bucket: the result is the
// smallest k such that value <= breaks[k-1], and len(breaks)+1 when the
// value exceeds every breakpoint. A nil value yields QuintileUnassigned.
func AssignQuintile(value *float64, breaks []float64) datatypes.Quintile {
	if value == nil || len(breaks) == 0 {
		return datatypes.QuintileUnassigned
	}
	for i, b := range breaks {
		if *value <= b {
			return datatypes.Quintile(i + 1)
		}
	}
	return datatypes.Quintile(len(breaks) + 1)
}

// AssignMinorityCategory buckets a minority percentage by fixed thresholds:
// pct < low yields Low, low <= pct < high yields Medium, pct >= high yields
// High. A nil pct yields CategoryUnassigned.
func AssignMinorityCategory(pct *float64, low, high float64) datatypes.MinorityCategory {
	if pct == nil {
		return datatypes.CategoryUnassigned
	}
	switch {
	case *pct < low:
		return datatypes.CategoryLow
	case *pct < high:
		return datatypes.CategoryMedium
	default:
		return datatypes.CategoryHigh
	}
}

// -----------------------------------------------------------------------------
// Entity Stratification
// -----------------------------------------------------------------------------

// EntityStrata holds the per-entity stratum labels for one audit run,
// together with the income breakpoints they were derived from.
type EntityStrata struct {
	// IncomeBreaks are the 20/40/60/80th percentile income breakpoints.
	// Nil when no entity in the run carries an income value.
	IncomeBreaks []float64

	// Quintiles maps entity ID to income quintile.
	Quintiles map[string]datatypes.Quintile

	// Categories maps entity ID to minority category.
	Categories map[string]datatypes.MinorityCategory
}

// StratifyEntities computes income quintiles and minority categories for
// every entity in the run.
//
// Description:
//
//	Income breakpoints come from the quantile probabilities in cfg, taken
//	over the incomes present in this entity set. Entities with a null
//	income receive QuintileUnassigned; entities with a null minority share
//	receive CategoryUnassigned. When no entity has an income at all, every
//	quintile is unassigned and IncomeBreaks is nil. Null covariates are
//	never an error, they simply fall out of the stratified aggregates.
//
// Inputs:
//   - entities: the run's immutable entity snapshot.
//   - cfg: audit configuration supplying QuintileProbs and the minority
//     thresholds.
//
// Outputs:
//   - *EntityStrata: labels for every entity ID in the input.
//   - error: propagation from breakpoint computation (invalid quantile
//     probabilities); never for null covariates.
//
// Thread Safety: pure function; the returned value is read-only afterwards.
func StratifyEntities(entities []datatypes.GeographicEntity, cfg datatypes.AuditConfig) (*EntityStrata, error) {
	incomes := make([]float64, 0, len(entities))
	for _, e := range entities {
		if e.MedianIncome != nil {
			incomes = append(incomes, *e.MedianIncome)
		}
	}

	var breaks []float64
	if len(incomes) > 0 {
		var err error
		breaks, err = ComputeQuintileBreaks(incomes, cfg.QuintileProbs)
		if err != nil {
			return nil, err
		}
	}

	strata := &EntityStrata{
		IncomeBreaks: breaks,
		Quintiles:    make(map[string]datatypes.Quintile, len(entities)),
		Categories:   make(map[string]datatypes.MinorityCategory, len(entities)),
	}
	for _, e := range entities {
		strata.Quintiles[e.ID] = AssignQuintile(e.MedianIncome, breaks)
		strata.Categories[e.ID] = AssignMinorityCategory(e.PctMinority, cfg.MinorityLowThreshold, cfg.MinorityHighThreshold)
	}
	return strata, nil
}

// QuintileFor returns the income quintile for an entity ID, or
// QuintileUnassigned for an unknown entity.
func (s *EntityStrata) QuintileFor(entityID string) datatypes.Quintile {
	return s.Quintiles[entityID]
}

// CategoryFor returns the minority category for an entity ID, or
// CategoryUnassigned for an unknown entity.
func (s *EntityStrata) CategoryFor(entityID string) datatypes.MinorityCategory {
	return s.Categories[entityID]
}

// Enrich derives the error fields and stratum labels for each observation
// in place.
//
// Description:
//
//	Error is always predicted - true. ErrorPct is error/true*100 and is set
//	to nil when the true value is zero, so percentage aggregates never
//	divide by zero; absolute-error aggregates still include the record.
//	Records whose entity ID is unknown to strata keep unassigned labels,
//	mirroring a left join against the entity table.
func Enrich(records []datatypes.ObservationRecord, strata *EntityStrata) {
	for i := range records {
		r := &records[i]
		err := r.PredictedValue - r.TrueValue
		r.Error = datatypes.Float64(err)
		if r.TrueValue != 0 {
			r.ErrorPct = datatypes.Float64(err / r.TrueValue * 100)
		} else {
			r.ErrorPct = nil
		}
		r.IncomeQuintile = strata.QuintileFor(r.EntityID)
		r.MinorityCategory = strata.CategoryFor(r.EntityID)
	}
}
