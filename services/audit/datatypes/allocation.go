// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "fmt"

// -----------------------------------------------------------------------------
// Project Categories
// -----------------------------------------------------------------------------

// ProjectCategory is one discrete infrastructure project type with a fixed
// cost and safety effectiveness (0-1).
type ProjectCategory struct {
	Name          string  `json:"name" yaml:"name" validate:"required"`
	Cost          float64 `json:"cost" yaml:"cost" validate:"gt=0"`
	Effectiveness float64 `json:"effectiveness" yaml:"effectiveness" validate:"gte=0,lte=1"`
}

// CategoryCatalog maps category names to project definitions.
type CategoryCatalog map[string]ProjectCategory

// Validate checks every catalog entry.
func (cc CategoryCatalog) Validate() error {
	if len(cc) == 0 {
		return fmt.Errorf("category catalog is empty")
	}
	for name, cat := range cc {
		if err := auditValidate.Struct(cat); err != nil {
			return fmt.Errorf("category %q: %w", name, err)
		}
	}
	return nil
}

// DefaultCategoryCatalog is the published Safe-T AI project catalog.
var DefaultCategoryCatalog = CategoryCatalog{
	"bike_lane":       {Name: "bike_lane", Cost: 150_000, Effectiveness: 0.35},
	"traffic_signal":  {Name: "traffic_signal", Cost: 350_000, Effectiveness: 0.30},
	"crosswalk":       {Name: "crosswalk", Cost: 50_000, Effectiveness: 0.15},
	"speed_reduction": {Name: "speed_reduction", Cost: 120_000, Effectiveness: 0.40},
}

// -----------------------------------------------------------------------------
// Allocation Records
// -----------------------------------------------------------------------------

// AllocationRecord is one funded project emitted by the greedy allocator.
type AllocationRecord struct {
	EntityID       string  `json:"geoid"`
	Category       string  `json:"category"`
	Cost           float64 `json:"cost"`
	PriorityScore  float64 `json:"priority_score"`
	RemainingAfter float64 `json:"remaining_budget_after"`
}

// BudgetState tracks one allocation pass. Total is fixed at run start;
// Remaining only ever decreases during the pass.
type BudgetState struct {
	Total     float64 `json:"total_budget"`
	Remaining float64 `json:"remaining_budget"`
}

// Allocated returns the spent portion of the budget.
func (b BudgetState) Allocated() float64 {
	return b.Total - b.Remaining
}

// AllocationEquity summarizes how one allocation pass distributed spending
// across income quintiles.
type AllocationEquity struct {
	SpendByQuintile     map[string]float64 `json:"spend_by_quintile"`
	PerCapitaByQuintile map[string]float64 `json:"per_capita_by_quintile"`

	// DisparateImpact compares Q1 per-capita spend against Q5.
	DisparateImpact *DisparateImpactResult `json:"disparate_impact"`

	// Gini is computed over the funded project costs of the pass. Nil when
	// the pass funded nothing.
	Gini *float64 `json:"gini"`
}

// AllocationComparison contrasts the AI-weighted and need-based passes.
// EquityGap is the need-based disparate-impact ratio minus the AI-weighted
// one, so positive values mean the need-based pass treats the poorest
// quintile better. Nil when either ratio is undefined.
type AllocationComparison struct {
	EquityGap       *float64 `json:"equity_gap"`
	GiniImprovement *float64 `json:"gini_improvement"`
}
