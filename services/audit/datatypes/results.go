// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// -----------------------------------------------------------------------------
// Statistical Results
// -----------------------------------------------------------------------------

// StratumSummary describes one demographic bucket of a target metric.
type StratumSummary struct {
	Stratum string  `json:"stratum"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Median  float64 `json:"median"`
}

// ErrorMetrics holds the accuracy metrics between a true and a predicted
// series.
//
// Bias duplicates MeanPctError under the name downstream dashboards expect;
// both are the signed mean percentage error (positive = systematic
// overestimate). PctSamples is the number of records that entered the
// percentage-based aggregates after the zero-denominator skip rule.
type ErrorMetrics struct {
	MAE          float64 `json:"mae"`
	MAPE         float64 `json:"mape"`
	RMSE         float64 `json:"rmse"`
	MeanError    float64 `json:"mean_error"`
	MeanPctError float64 `json:"mean_pct_error"`
	Bias         float64 `json:"bias"`
	RSquared     float64 `json:"r_squared"`
	Samples      int     `json:"samples"`
	PctSamples   int     `json:"pct_samples"`
}

// EquityGapResult compares the best- and worst-performing strata of a metric.
// "Best" and "worst" are numeric-directional (max mean, min mean), not value
// judgements. A nil *EquityGapResult means fewer than two non-empty strata
// existed.
type EquityGapResult struct {
	BestGroup      string  `json:"best_group"`
	WorstGroup     string  `json:"worst_group"`
	BestGroupMean  float64 `json:"best_group_mean"`
	WorstGroupMean float64 `json:"worst_group_mean"`

	// Gap is best minus worst; GapPct is nil when the worst mean is zero.
	Gap    float64  `json:"gap"`
	GapPct *float64 `json:"gap_pct"`

	PValue      float64 `json:"p_value"`
	Significant bool    `json:"statistically_significant"`
}

// DisparateImpactResult is the 80% rule check between a protected and a
// reference group. A nil *DisparateImpactResult means the reference rate was
// zero and the ratio is undefined.
type DisparateImpactResult struct {
	Ratio         float64 `json:"ratio"`
	Passes80Rule  bool    `json:"passes_80_percent_rule"`
	ProtectedRate float64 `json:"protected_rate"`
	ReferenceRate float64 `json:"reference_rate"`
}

// ConfusionMatrix holds per-stratum binary classification quality against a
// within-stratum median threshold. Strata with fewer than four members or a
// single class after thresholding are omitted from results entirely.
type ConfusionMatrix struct {
	Stratum   string  `json:"stratum"`
	Label     string  `json:"label"`
	Threshold float64 `json:"threshold"`
	Members   int     `json:"n"`

	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
	TrueNegatives  int `json:"true_negatives"`

	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	Accuracy  float64 `json:"accuracy"`
}

// EquityGaps bundles the income and minority gap results of one analysis.
type EquityGaps struct {
	Income   *EquityGapResult `json:"income"`
	Minority *EquityGapResult `json:"minority"`
}

// StratifiedAnalysis is the canonical nested mapping of a metric analyzed
// across both stratification axes.
type StratifiedAnalysis struct {
	ByIncomeQuintile   map[string]StratumSummary `json:"by_income_quintile"`
	ByMinorityCategory map[string]StratumSummary `json:"by_minority_category"`
	Overall            StratumSummary            `json:"overall"`
	EquityGaps         EquityGaps                `json:"equity_gaps"`
}

// -----------------------------------------------------------------------------
// Findings
// -----------------------------------------------------------------------------

// FindingSeverity grades an interpretation finding.
type FindingSeverity string

const (
	SeverityInfo     FindingSeverity = "info"
	SeverityWarning  FindingSeverity = "warning"
	SeverityCritical FindingSeverity = "critical"
)

// Finding is one human-readable interpretation line attached to a report.
type Finding struct {
	Severity FindingSeverity `json:"severity"`
	Message  string          `json:"message"`
}
