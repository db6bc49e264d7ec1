// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file builds the infrastructure-audit report: simulated danger, the
// AI-weighted and need-based allocation passes, and the equity comparison
// between them.

package report

import (
	"fmt"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/allocate"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
)

// Strategy names carried on the two allocation passes.
const (
	StrategyAI   = "ai_recommended"
	StrategyNeed = "need_based"
)

// minQ1BudgetShare is the smallest share of the total budget the poorest
// quintile can receive without triggering a finding.
const minQ1BudgetShare = 0.15

// -----------------------------------------------------------------------------
// Infrastructure Report
// -----------------------------------------------------------------------------

// BuildInfrastructure assembles the infrastructure-audit report by running
// the budget allocator twice over the same danger scores.
//
// Description:
//
//	The AI pass ranks on the income-weighted priorities and picks project
//	categories by tract income; the need pass ranks on raw danger and picks
//	categories by danger. Everything else (catalog, budget, greedy
//	mechanics) is identical, so any equity difference between the two
//	passes is attributable to the ranking signals alone.
//
// Inputs:
//   - scores: Simulated danger scores; quintile labels are filled here.
//   - aiPriorities: Income-weighted ranking signal per entity.
//   - needPriorities: Danger-only ranking signal per entity.
//   - entities: The census entities behind the scores.
//   - strata: Demographic strata for the same entities.
//   - cfg: Run configuration; Seed and TotalBudget are read.
//
// Outputs:
//   - *datatypes.InfrastructureReport - The assembled report.
//   - error - Non-nil when scores is empty or an allocation pass fails.
func BuildInfrastructure(scores []datatypes.DangerScore, aiPriorities, needPriorities map[string]float64, entities []datatypes.GeographicEntity, strata *engine.EntityStrata, cfg datatypes.AuditConfig) (*datatypes.InfrastructureReport, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("report: infrastructure audit needs at least one danger score")
	}

	labeled := make([]datatypes.DangerScore, len(scores))
	copy(labeled, scores)
	for i := range labeled {
		labeled[i].Quintile = strata.QuintileFor(labeled[i].EntityID)
	}

	incomes := make(map[string]float64, len(entities))
	for _, ent := range entities {
		if ent.MedianIncome != nil {
			incomes[ent.ID] = *ent.MedianIncome
		}
	}
	dangers := make(map[string]float64, len(labeled))
	for _, sc := range labeled {
		dangers[sc.EntityID] = sc.Danger
	}

	aiPass, err := allocationPass(StrategyAI, aiPriorities, incomes, allocate.IncomeWeightedRule, entities, strata, cfg)
	if err != nil {
		return nil, err
	}
	needPass, err := allocationPass(StrategyNeed, needPriorities, dangers, allocate.NeedBasedRule, entities, strata, cfg)
	if err != nil {
		return nil, err
	}

	rep := &datatypes.InfrastructureReport{
		Seed:           cfg.Seed,
		DangerScores:   labeled,
		DangerByGroup:  dangerByQuintile(labeled),
		AIAllocation:   *aiPass,
		NeedAllocation: *needPass,
		Comparison:     allocate.Compare(aiPass.Equity, needPass.Equity),
	}
	rep.Findings = infrastructureFindings(aiPass.Equity, needPass.Equity, cfg.TotalBudget)
	return rep, nil
}

func allocationPass(strategy string, priorities, covariates map[string]float64, rule allocate.CategoryRule, entities []datatypes.GeographicEntity, strata *engine.EntityStrata, cfg datatypes.AuditConfig) (*datatypes.AllocationResult, error) {
	candidates := allocate.Candidates(priorities, covariates)
	records, budget, err := allocate.Run(candidates, rule, datatypes.DefaultCategoryCatalog, cfg.TotalBudget)
	if err != nil {
		return nil, fmt.Errorf("report: %s allocation: %w", strategy, err)
	}
	return &datatypes.AllocationResult{
		Strategy: strategy,
		Records:  records,
		Budget:   budget,
		Equity:   allocate.Equity(records, entities, strata),
	}, nil
}

func dangerByQuintile(scores []datatypes.DangerScore) []datatypes.DangerRow {
	type agg struct {
		danger, crashes float64
		count           int
	}
	byQ := make(map[datatypes.Quintile]*agg)
	for _, sc := range scores {
		if !sc.Quintile.Assigned() {
			continue
		}
		a := byQ[sc.Quintile]
		if a == nil {
			a = &agg{}
			byQ[sc.Quintile] = a
		}
		a.danger += sc.Danger
		a.crashes += sc.AnnualCrashes
		a.count++
	}

	var rows []datatypes.DangerRow
	for q := datatypes.Quintile1; q <= datatypes.Quintile5; q++ {
		a := byQ[q]
		if a == nil {
			continue
		}
		n := float64(a.count)
		rows = append(rows, datatypes.DangerRow{
			Quintile:          q,
			Label:             q.Label(),
			Count:             a.count,
			MeanDanger:        a.danger / n,
			MeanAnnualCrashes: a.crashes / n,
		})
	}
	return rows
}

// -----------------------------------------------------------------------------
// Findings
// -----------------------------------------------------------------------------

func infrastructureFindings(ai, need datatypes.AllocationEquity, totalBudget float64) []datatypes.Finding {
	var out []datatypes.Finding

	if ai.DisparateImpact != nil && !ai.DisparateImpact.Passes80Rule {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityCritical,
			Message: fmt.Sprintf(
				"AI allocation shows severe inequity: poorest quintile receives %.1f%% as much per capita as richest quintile",
				ai.DisparateImpact.Ratio*100,
			),
		})
	}

	if ai.DisparateImpact != nil && need.DisparateImpact != nil {
		aiRatio, needRatio := ai.DisparateImpact.Ratio, need.DisparateImpact.Ratio
		if aiRatio < needRatio && needRatio > 0 {
			gap := (needRatio - aiRatio) / needRatio
			out = append(out, datatypes.Finding{
				Severity: datatypes.SeverityWarning,
				Message: fmt.Sprintf(
					"AI allocation is %.0f%% less equitable than need-based allocation",
					gap*100,
				),
			})
		}
	}

	if totalBudget > 0 {
		q1Share := ai.SpendByQuintile[datatypes.Quintile1.Label()] / totalBudget
		if q1Share < minQ1BudgetShare {
			out = append(out, datatypes.Finding{
				Severity: datatypes.SeverityWarning,
				Message: fmt.Sprintf(
					"Poorest quintile receives only %.1f%% of total budget despite having highest crash rates",
					q1Share*100,
				),
			})
		}
	}
	return out
}
