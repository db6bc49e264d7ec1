// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides the data structures shared across the audit
// service: geographic entities, observation records, stratum labels, audit
// results, configuration, and scenario files.
//
// Numeric fields that can be absent (a tract with suppressed census income,
// a percentage that divides by zero) are modeled as pointers; aggregate
// functions state their null-handling rule explicitly and filter before
// computing.
package datatypes

import (
	"time"
)

// -----------------------------------------------------------------------------
// Stratum Labels
// -----------------------------------------------------------------------------

// Quintile is an ordinal income bucket, 1 (lowest) through 5 (highest).
// QuintileUnassigned marks entities whose source covariate was null.
type Quintile int

const (
	QuintileUnassigned Quintile = 0
	Quintile1          Quintile = 1
	Quintile2          Quintile = 2
	Quintile3          Quintile = 3
	Quintile4          Quintile = 4
	Quintile5          Quintile = 5
)

// Assigned reports whether the quintile carries a real bucket.
func (q Quintile) Assigned() bool {
	return q >= Quintile1 && q <= Quintile5
}

// Label returns the display label used throughout reports ("Q1 (Poorest)"
// through "Q5 (Richest)"), or an empty string when unassigned.
func (q Quintile) Label() string {
	switch q {
	case Quintile1:
		return "Q1 (Poorest)"
	case Quintile2:
		return "Q2"
	case Quintile3:
		return "Q3"
	case Quintile4:
		return "Q4"
	case Quintile5:
		return "Q5 (Richest)"
	default:
		return ""
	}
}

// String implements fmt.Stringer with the short form ("Q1".."Q5").
func (q Quintile) String() string {
	switch q {
	case Quintile1:
		return "Q1"
	case Quintile2:
		return "Q2"
	case Quintile3:
		return "Q3"
	case Quintile4:
		return "Q4"
	case Quintile5:
		return "Q5"
	default:
		return "unassigned"
	}
}

// MinorityCategory buckets a tract by its minority population share.
// CategoryUnassigned marks entities whose covariate was null.
type MinorityCategory string

const (
	CategoryUnassigned MinorityCategory = ""
	CategoryLow        MinorityCategory = "Low (<30%)"
	CategoryMedium     MinorityCategory = "Medium (30-60%)"
	CategoryHigh       MinorityCategory = "High (>60%)"
)

// Assigned reports whether the category carries a real bucket.
func (c MinorityCategory) Assigned() bool {
	return c != CategoryUnassigned
}

// -----------------------------------------------------------------------------
// Entities and Observations
// -----------------------------------------------------------------------------

// GeographicEntity is one census tract (or comparable geographic unit) with
// the demographic covariates the audit stratifies on.
//
// Entities are created by the loader and treated as immutable for the
// duration of an audit run. MedianIncome and PctMinority are nil when the
// upstream source suppressed or lacked the value.
type GeographicEntity struct {
	ID           string   `json:"geoid" yaml:"geoid"`
	Population   int      `json:"population" yaml:"population"`
	MedianIncome *float64 `json:"median_income" yaml:"median_income"`
	PctMinority  *float64 `json:"pct_minority" yaml:"pct_minority"`

	// Centroid coordinates, used only by map-facing views and the
	// suppressed-demand network flow. Zero values mean "unknown".
	Lat float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
}

// CounterSite is a ground-truth traffic counting location tied to an entity.
type CounterSite struct {
	ID         string  `json:"counter_id" yaml:"counter_id"`
	EntityID   string  `json:"geoid" yaml:"geoid"`
	Lat        float64 `json:"lat" yaml:"lat"`
	Lon        float64 `json:"lon" yaml:"lon"`
	BaseVolume float64 `json:"base_volume" yaml:"base_volume"`

	// Source is "observed" for real-world count sites and "synthetic" for
	// generated ones.
	Source string `json:"source" yaml:"source"`
}

// ObservationRecord pairs one true value with one AI-predicted value for an
// entity. Error fields and stratum labels are derived once per audit run and
// never mutated afterwards.
//
// ErrorPct is nil when TrueValue is zero: percentage error is undefined
// there, and aggregates over ErrorPct skip such records (see engine
// documentation for the full policy).
type ObservationRecord struct {
	EntityID       string  `json:"geoid"`
	TrueValue      float64 `json:"true_value"`
	PredictedValue float64 `json:"predicted_value"`

	// Derived fields, populated by engine.Enrich.
	Error    *float64 `json:"error,omitempty"`
	ErrorPct *float64 `json:"error_pct,omitempty"`

	IncomeQuintile   Quintile         `json:"income_quintile,omitempty"`
	MinorityCategory MinorityCategory `json:"minority_category,omitempty"`

	// Year tags annual observations (crash audits). Zero when unused.
	Year int `json:"year,omitempty"`

	// ObservedAt tags dated observations for temporal validation.
	// Zero when unused.
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

// Float64 returns a pointer to v. Convenience for building nullable fields.
func Float64(v float64) *float64 {
	return &v
}
