// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file builds the demand-audit report: suppression summary, the
// detection scorecard grading both AI models against potential demand, the
// funnel and correlation views, and the suppressed-demand network flow.

package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/simulate"
)

// Model names carried on scorecard rows.
const (
	ModelNaive         = "naive_ai"
	ModelSophisticated = "sophisticated_ai"
	ModelHumanBaseline = "human_expert_baseline"
)

// humanExpertBaseline is the published reference scorecard row: what a
// trained planner doing field counts achieves on the same task.
var humanExpertBaseline = datatypes.ModelScore{
	Model:         ModelHumanBaseline,
	Correlation:   0.85,
	RMSE:          60.0,
	Q1BiasPct:     -5.0,
	Q5BiasPct:     -5.0,
	DetectionRate: 80.0,
}

// correlationVariables is the fixed variable order of the correlation
// matrix view.
var correlationVariables = []string{
	"infrastructure_score",
	"median_income",
	"potential_demand",
	"actual_demand",
	"suppressed_demand",
}

// Overall funnel constants: population-wide destination access and
// stated-preference shares, independent of income.
const (
	overallDestinationsPct   = 88.0
	overallWouldUseIfSafePct = 65.0
)

// detectionMultiple is how far above observed demand a model estimate must
// land to count as having detected suppression.
const detectionMultiple = 1.5

// -----------------------------------------------------------------------------
// Demand Report
// -----------------------------------------------------------------------------

// BuildDemand assembles the demand-audit report from simulated suppression
// observations.
//
// Description:
//
//	The summary, quintile rows, funnel, and network all read the
//	observation table directly. The scorecard grades the naive and
//	sophisticated estimates against potential demand and appends the fixed
//	human-expert baseline row, so the report always carries three
//	comparable rows.
//
// Inputs:
//   - obs: Simulated demand observations, one per entity with known income.
//   - entities: The census entities behind the observations.
//   - strata: Demographic strata for the same entities.
//   - cfg: Run configuration; Seed and the Demand block are read.
//
// Outputs:
//   - *datatypes.DemandReport - The assembled report.
//   - error - Non-nil when obs is empty.
func BuildDemand(obs []simulate.DemandObservation, entities []datatypes.GeographicEntity, strata *engine.EntityStrata, cfg datatypes.AuditConfig) (*datatypes.DemandReport, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("report: demand audit needs at least one observation")
	}

	byID := make(map[string]datatypes.GeographicEntity, len(entities))
	for _, ent := range entities {
		byID[ent.ID] = ent
	}

	scorecard := demandScorecard(obs, strata, cfg)
	rows := demandByQuintile(obs, strata)

	rep := &datatypes.DemandReport{
		Seed:        cfg.Seed,
		Summary:     demandSummary(obs, scorecard, cfg),
		ByQuintile:  rows,
		Scorecard:   scorecard,
		Funnel:      demandFunnel(obs, strata),
		Correlation: demandCorrelation(obs, byID),
		Network:     demandNetwork(obs, cfg),
	}
	rep.Findings = demandFindings(rep.Summary, rows, scorecard)
	return rep, nil
}

// -----------------------------------------------------------------------------
// Summary and Quintile Rows
// -----------------------------------------------------------------------------

func demandSummary(obs []simulate.DemandObservation, scorecard []datatypes.ModelScore, cfg datatypes.AuditConfig) datatypes.DemandSummary {
	var potSum, actSum, supSum float64
	var high int
	for _, o := range obs {
		potSum += o.Potential
		actSum += o.Actual
		supSum += o.Suppressed
		if o.SuppressionPct > cfg.Demand.HighSuppressionThreshold {
			high++
		}
	}

	s := datatypes.DemandSummary{
		TotalPotential:  math.Trunc(potSum),
		TotalActual:     math.Trunc(actSum),
		TotalSuppressed: math.Trunc(supSum),
		Tracts:          len(obs),
		HighSuppression: high,
	}
	if potSum > 0 {
		s.SuppressionRate = supSum / potSum * 100
	}
	for _, sc := range scorecard {
		switch sc.Model {
		case ModelNaive:
			s.NaiveCorrelation = sc.Correlation
		case ModelSophisticated:
			s.SophCorrelation = sc.Correlation
		}
	}
	return s
}

func demandByQuintile(obs []simulate.DemandObservation, strata *engine.EntityStrata) []datatypes.DemandRow {
	type agg struct {
		pot, act, sup, supPct, infra float64
		count                        int
	}
	byQ := make(map[datatypes.Quintile]*agg)
	for _, o := range obs {
		q := strata.QuintileFor(o.EntityID)
		if !q.Assigned() {
			continue
		}
		a := byQ[q]
		if a == nil {
			a = &agg{}
			byQ[q] = a
		}
		a.pot += o.Potential
		a.act += o.Actual
		a.sup += o.Suppressed
		a.supPct += o.SuppressionPct
		a.infra += o.InfraScore
		a.count++
	}

	var rows []datatypes.DemandRow
	for q := datatypes.Quintile1; q <= datatypes.Quintile5; q++ {
		a := byQ[q]
		if a == nil {
			continue
		}
		n := float64(a.count)
		rows = append(rows, datatypes.DemandRow{
			Quintile:           q,
			Label:              q.Label(),
			Count:              a.count,
			MeanPotential:      a.pot / n,
			MeanActual:         a.act / n,
			MeanSuppressed:     a.sup / n,
			MeanSuppressionPct: a.supPct / n,
			MeanInfraScore:     a.infra / n,
		})
	}
	return rows
}

// -----------------------------------------------------------------------------
// Detection Scorecard
// -----------------------------------------------------------------------------

func demandScorecard(obs []simulate.DemandObservation, strata *engine.EntityStrata, cfg datatypes.AuditConfig) []datatypes.ModelScore {
	potential := make([]float64, len(obs))
	naive := make([]float64, len(obs))
	soph := make([]float64, len(obs))
	for i, o := range obs {
		potential[i] = o.Potential
		naive[i] = o.NaivePrediction
		soph[i] = o.SophPrediction
	}

	return []datatypes.ModelScore{
		scoreModel(ModelNaive, naive, potential, obs, strata, cfg),
		scoreModel(ModelSophisticated, soph, potential, obs, strata, cfg),
		humanExpertBaseline,
	}
}

// scoreModel grades one estimate series against potential demand. The
// quintile biases compare group means; the detection rate is the share of
// high-suppression tracts where the estimate exceeded observed demand by
// detectionMultiple.
func scoreModel(name string, preds, potential []float64, obs []simulate.DemandObservation, strata *engine.EntityStrata, cfg datatypes.AuditConfig) datatypes.ModelScore {
	score := datatypes.ModelScore{Model: name}

	if r, err := engine.PearsonCorrelation(preds, potential); err == nil {
		score.Correlation = r
	}
	if m, err := engine.ComputeErrorMetrics(potential, preds); err == nil {
		score.RMSE = m.RMSE
	}

	type agg struct {
		pred, pot float64
		count     int
	}
	var q1, q5 agg
	var highN, detected int
	for i, o := range obs {
		switch strata.QuintileFor(o.EntityID) {
		case datatypes.Quintile1:
			q1.pred += preds[i]
			q1.pot += o.Potential
			q1.count++
		case datatypes.Quintile5:
			q5.pred += preds[i]
			q5.pot += o.Potential
			q5.count++
		}
		if o.SuppressionPct > cfg.Demand.HighSuppressionThreshold {
			highN++
			if preds[i] > o.Actual*detectionMultiple {
				detected++
			}
		}
	}

	if q1.count > 0 && q1.pot > 0 {
		score.Q1BiasPct = (q1.pred - q1.pot) / q1.pot * 100
	}
	if q5.count > 0 && q5.pot > 0 {
		score.Q5BiasPct = (q5.pred - q5.pot) / q5.pot * 100
	}
	if highN > 0 {
		score.DetectionRate = float64(detected) / float64(highN) * 100
	}
	return score
}

// -----------------------------------------------------------------------------
// Funnel
// -----------------------------------------------------------------------------

// demandFunnel expresses each quintile's demand loss as a four-stage
// pipeline normalized to 100% at potential. The middle stages scale with
// the group's normalized income; the last stage is observed.
func demandFunnel(obs []simulate.DemandObservation, strata *engine.EntityStrata) datatypes.DemandFunnel {
	type agg struct {
		pot, act, norm float64
		count          int
	}
	byQ := make(map[datatypes.Quintile]*agg)
	var total agg
	for _, o := range obs {
		total.pot += o.Potential
		total.act += o.Actual

		q := strata.QuintileFor(o.EntityID)
		if !q.Assigned() {
			continue
		}
		a := byQ[q]
		if a == nil {
			a = &agg{}
			byQ[q] = a
		}
		a.pot += o.Potential
		a.act += o.Actual
		a.norm += o.NormIncome
		a.count++
	}

	funnel := datatypes.DemandFunnel{ByQuintile: make(map[string]datatypes.FunnelStages, len(byQ))}
	for q, a := range byQ {
		meanNorm := a.norm / float64(a.count)
		stages := datatypes.FunnelStages{
			Potential:      100.0,
			Destinations:   (0.90 - (1-meanNorm)*0.10) * 100,
			WouldUseIfSafe: (0.70 - (1-meanNorm)*0.15) * 100,
		}
		if a.pot > 0 {
			stages.ActuallyUse = a.act / a.pot * 100
		}
		stages.SuppressionPct = 100 - stages.ActuallyUse
		funnel.ByQuintile[q.Label()] = stages
	}

	overall := datatypes.FunnelStages{
		Potential:      100.0,
		Destinations:   overallDestinationsPct,
		WouldUseIfSafe: overallWouldUseIfSafePct,
	}
	if total.pot > 0 {
		overall.ActuallyUse = total.act / total.pot * 100
	}
	overall.SuppressionPct = 100 - overall.ActuallyUse
	funnel.Overall = overall
	return funnel
}

// -----------------------------------------------------------------------------
// Correlation Matrix
// -----------------------------------------------------------------------------

// demandCorrelation builds the symmetric Pearson matrix over the five audit
// variables. Degenerate pairs report zero; the diagonal is pinned to one.
func demandCorrelation(obs []simulate.DemandObservation, byID map[string]datatypes.GeographicEntity) datatypes.CorrelationMatrix {
	series := make(map[string][]float64, len(correlationVariables))
	for _, v := range correlationVariables {
		series[v] = make([]float64, 0, len(obs))
	}
	for _, o := range obs {
		income := 0.0
		if ent, ok := byID[o.EntityID]; ok && ent.MedianIncome != nil {
			income = *ent.MedianIncome
		}
		series["infrastructure_score"] = append(series["infrastructure_score"], o.InfraScore)
		series["median_income"] = append(series["median_income"], income)
		series["potential_demand"] = append(series["potential_demand"], o.Potential)
		series["actual_demand"] = append(series["actual_demand"], o.Actual)
		series["suppressed_demand"] = append(series["suppressed_demand"], o.Suppressed)
	}

	n := len(correlationVariables)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r, err := engine.PearsonCorrelation(series[correlationVariables[i]], series[correlationVariables[j]])
			if err != nil {
				continue
			}
			matrix[i][j] = r
			matrix[j][i] = r
		}
	}
	return datatypes.CorrelationMatrix{Variables: correlationVariables, Matrix: matrix}
}

// -----------------------------------------------------------------------------
// Network Flow
// -----------------------------------------------------------------------------

// demandNetwork picks the tracts with the most suppressed demand and emits
// one node plus a realized and a suppressed flow link per tract, capped at
// the configured link budget.
func demandNetwork(obs []simulate.DemandObservation, cfg datatypes.AuditConfig) datatypes.DemandNetwork {
	top := make([]simulate.DemandObservation, len(obs))
	copy(top, obs)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Suppressed != top[j].Suppressed {
			return top[i].Suppressed > top[j].Suppressed
		}
		return top[i].EntityID < top[j].EntityID
	})
	if n := cfg.Demand.NetworkTopN; n > 0 && len(top) > n {
		top = top[:n]
	}

	var net datatypes.DemandNetwork
	for _, o := range top {
		level := "Medium"
		switch {
		case o.NormIncome < 0.4:
			level = "Low"
		case o.NormIncome > 0.6:
			level = "High"
		}
		net.Nodes = append(net.Nodes, datatypes.NetworkNode{
			ID:          o.EntityID,
			Name:        fmt.Sprintf("Tract %s", o.EntityID),
			Potential:   o.Potential,
			Actual:      o.Actual,
			Suppressed:  o.Suppressed,
			IncomeLevel: level,
		})
		net.Links = append(net.Links,
			datatypes.NetworkLink{
				Source: fmt.Sprintf("potential_%s", o.EntityID),
				Target: fmt.Sprintf("actual_%s", o.EntityID),
				Value:  o.Actual,
				Type:   "realized",
			},
			datatypes.NetworkLink{
				Source: fmt.Sprintf("potential_%s", o.EntityID),
				Target: fmt.Sprintf("suppressed_%s", o.EntityID),
				Value:  o.Suppressed,
				Type:   "suppressed",
			},
		)
	}
	if limit := cfg.Demand.NetworkMaxLinks; limit > 0 && len(net.Links) > limit {
		net.Links = net.Links[:limit]
	}
	return net
}

// -----------------------------------------------------------------------------
// Findings
// -----------------------------------------------------------------------------

func demandFindings(summary datatypes.DemandSummary, rows []datatypes.DemandRow, scorecard []datatypes.ModelScore) []datatypes.Finding {
	var out []datatypes.Finding

	out = append(out, datatypes.Finding{
		Severity: datatypes.SeverityWarning,
		Message: fmt.Sprintf(
			"%.1f%% of potential active transportation demand is suppressed by poor infrastructure",
			summary.SuppressionRate,
		),
	})

	var q1Row, q5Row *datatypes.DemandRow
	for i := range rows {
		switch rows[i].Quintile {
		case datatypes.Quintile1:
			q1Row = &rows[i]
		case datatypes.Quintile5:
			q5Row = &rows[i]
		}
	}
	if q1Row != nil && q5Row != nil {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityWarning,
			Message: fmt.Sprintf(
				"Q1 (poorest) areas have %.1f%% suppression vs %.1f%% in Q5",
				q1Row.MeanSuppressionPct, q5Row.MeanSuppressionPct,
			),
		})
	}

	var naive, soph *datatypes.ModelScore
	for i := range scorecard {
		switch scorecard[i].Model {
		case ModelNaive:
			naive = &scorecard[i]
		case ModelSophisticated:
			soph = &scorecard[i]
		}
	}
	if naive != nil {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityCritical,
			Message: fmt.Sprintf(
				"Naive AI has only %.2f correlation with potential demand (fails to detect suppressed demand)",
				naive.Correlation,
			),
		})
	}
	if soph != nil {
		out = append(out, datatypes.Finding{
			Severity: datatypes.SeverityWarning,
			Message: fmt.Sprintf(
				"Sophisticated AI achieves %.2f correlation but still undercounts by %.1f%% in Q1",
				soph.Correlation, math.Abs(soph.Q1BiasPct),
			),
		})
	}

	out = append(out, datatypes.Finding{
		Severity: datatypes.SeverityInfo,
		Message:  "Standard AI tools perpetuate inequity by measuring observed demand instead of potential need",
	})
	return out
}
