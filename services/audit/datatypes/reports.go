// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the nested report structures assembled per audit
// domain. Every type here is JSON-serializable; the service and CLI decide
// how results travel, the engine only fills these in.

package datatypes

import "time"

// -----------------------------------------------------------------------------
// Volume Audit
// -----------------------------------------------------------------------------

// OverallAccuracy is the headline accuracy block of the volume audit.
type OverallAccuracy struct {
	TotalCounters        int          `json:"total_counters"`
	TotalTrueVolume      float64      `json:"total_true_volume"`
	TotalPredictedVolume float64      `json:"total_predicted_volume"`
	Metrics              ErrorMetrics `json:"metrics"`
}

// IncomeAccuracyRow is one per-quintile accuracy row of the volume audit.
type IncomeAccuracyRow struct {
	Quintile     Quintile `json:"quintile"`
	Label        string   `json:"label"`
	Count        int      `json:"count"`
	MedianIncome float64  `json:"median_income"`
	MAE          float64  `json:"mae"`
	MAPE         float64  `json:"mape"`
	Bias         float64  `json:"bias"`
	MeanErrorPct float64  `json:"mean_error_pct"`
}

// RaceAccuracyRow is one per-category accuracy row of the volume audit.
type RaceAccuracyRow struct {
	Category        MinorityCategory `json:"category"`
	Count           int              `json:"count"`
	MeanMinorityPct float64          `json:"mean_minority_pct"`
	MAE             float64          `json:"mae"`
	MAPE            float64          `json:"mape"`
	Bias            float64          `json:"bias"`
	MeanErrorPct    float64          `json:"mean_error_pct"`
}

// AccuracyByIncome bundles the quintile rows with their equity gap.
type AccuracyByIncome struct {
	Rows      []IncomeAccuracyRow `json:"rows"`
	EquityGap *EquityGapResult    `json:"equity_gap"`
}

// AccuracyByRace bundles the category rows with their equity gap.
type AccuracyByRace struct {
	Rows      []RaceAccuracyRow `json:"rows"`
	EquityGap *EquityGapResult  `json:"equity_gap"`
}

// ScatterPoint is one true/predicted pair for the scatter view, carrying
// the demographics of the counter's tract.
type ScatterPoint struct {
	CounterID        string           `json:"counter_id"`
	TrueValue        float64          `json:"true_value"`
	Predicted        float64          `json:"predicted_value"`
	Quintile         Quintile         `json:"income_quintile"`
	MinorityCategory MinorityCategory `json:"minority_category"`
	MedianIncome     *float64         `json:"median_income"`
	PctMinority      *float64         `json:"pct_minority"`
}

// HistogramBin is one bucket of the percent-error distribution.
type HistogramBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Label string  `json:"bin_label"`
	Count int     `json:"count"`
}

// EntityError aggregates one entity's observations for the map views.
type EntityError struct {
	EntityID       string  `json:"geoid"`
	MeanErrorPct   float64 `json:"mean_error_pct"`
	MeanError      float64 `json:"mean_error"`
	TotalTrue      float64 `json:"total_true"`
	TotalPredicted float64 `json:"total_predicted"`
	Count          int     `json:"count"`
}

// VolumeReport is the full volume-audit result.
type VolumeReport struct {
	Seed           int64               `json:"seed"`
	Overall        OverallAccuracy     `json:"overall_accuracy"`
	ByIncome       AccuracyByIncome    `json:"accuracy_by_income"`
	ByRace         AccuracyByRace      `json:"accuracy_by_race"`
	Stratified     *StratifiedAnalysis `json:"stratified_analysis"`
	Scatter        []ScatterPoint      `json:"scatter_data"`
	ErrorHistogram []HistogramBin      `json:"error_distribution"`
	EntityErrors   []EntityError       `json:"tract_errors"`
	Findings       []Finding           `json:"findings"`
}

// -----------------------------------------------------------------------------
// Crash Audit
// -----------------------------------------------------------------------------

// QuintileBias is one per-quintile row of the crash-audit summary.
type QuintileBias struct {
	Quintile          Quintile `json:"quintile"`
	Label             string   `json:"label"`
	ActualMean        float64  `json:"actual_mean"`
	ReportedMean      float64  `json:"reported_mean"`
	PredictedMean     float64  `json:"predicted_mean"`
	PredictionBias    float64  `json:"prediction_bias"`
	PredictionBiasPct float64  `json:"prediction_bias_pct"`
	ReportingRate     float64  `json:"reporting_rate"`
}

// CrashSeriesPoint is one year of summed crashes for one series.
type CrashSeriesPoint struct {
	Year      int     `json:"year"`
	Actual    float64 `json:"actual_crashes"`
	Reported  float64 `json:"reported_crashes"`
	Predicted float64 `json:"predicted_crashes"`
}

// CrashTimeSeries carries yearly totals per quintile plus the overall line.
// Map keys are quintile display labels.
type CrashTimeSeries struct {
	Years      []int                         `json:"years"`
	ByQuintile map[string][]CrashSeriesPoint `json:"by_quintile"`
	Overall    []CrashSeriesPoint            `json:"overall"`
}

// TrainedModelRow is one per-quintile error row of the ridge-trained variant.
type TrainedModelRow struct {
	Quintile      Quintile `json:"quintile"`
	Label         string   `json:"label"`
	Count         int      `json:"count"`
	MeanActual    float64  `json:"actual_crashes"`
	MeanPredicted float64  `json:"predicted_crashes"`
	MAE           float64  `json:"mae"`
	MeanErrorPct  float64  `json:"mean_error_pct"`
}

// TrainedModelResult reports the ridge-regression stand-in predictor.
type TrainedModelResult struct {
	Rows      []TrainedModelRow `json:"rows"`
	Metrics   ErrorMetrics      `json:"metrics"`
	EquityGap *EquityGapResult  `json:"equity_gap"`
}

// CrashSummary is the headline block of the crash audit.
type CrashSummary struct {
	TotalActual    float64        `json:"total_actual"`
	TotalReported  float64        `json:"total_reported"`
	TotalPredicted float64        `json:"total_predicted"`
	ReportingRate  float64        `json:"overall_reporting_rate"`
	Years          []int          `json:"years_analyzed"`
	Tracts         int            `json:"tracts_analyzed"`
	BiasByQuintile []QuintileBias `json:"bias_by_quintile"`
}

// CrashReport is the full crash-audit result.
type CrashReport struct {
	Seed              int64               `json:"seed"`
	Summary           CrashSummary        `json:"summary"`
	ConfusionMatrices []ConfusionMatrix   `json:"confusion_matrices"`
	TimeSeries        CrashTimeSeries     `json:"time_series"`
	EquityGap         *EquityGapResult    `json:"equity_gap"`
	TrainedModel      *TrainedModelResult `json:"trained_model"`
	Findings          []Finding           `json:"findings"`
}

// -----------------------------------------------------------------------------
// Infrastructure Audit
// -----------------------------------------------------------------------------

// DangerScore is one entity's simulated roadway danger.
type DangerScore struct {
	EntityID      string   `json:"geoid"`
	Danger        float64  `json:"danger_score"`
	AnnualCrashes float64  `json:"annual_crashes"`
	Quintile      Quintile `json:"income_quintile"`
}

// DangerRow summarizes simulated danger per quintile.
type DangerRow struct {
	Quintile          Quintile `json:"quintile"`
	Label             string   `json:"label"`
	Count             int      `json:"count"`
	MeanDanger        float64  `json:"mean_danger"`
	MeanAnnualCrashes float64  `json:"mean_annual_crashes"`
}

// AllocationResult is one complete allocation pass with its equity rollup.
type AllocationResult struct {
	Strategy string             `json:"strategy"`
	Records  []AllocationRecord `json:"records"`
	Budget   BudgetState        `json:"budget"`
	Equity   AllocationEquity   `json:"equity"`
}

// InfrastructureReport is the full infrastructure-audit result.
type InfrastructureReport struct {
	Seed           int64                `json:"seed"`
	DangerScores   []DangerScore        `json:"danger_scores"`
	DangerByGroup  []DangerRow          `json:"danger_by_quintile"`
	AIAllocation   AllocationResult     `json:"ai_allocation"`
	NeedAllocation AllocationResult     `json:"need_allocation"`
	Comparison     AllocationComparison `json:"comparison"`
	Findings       []Finding            `json:"findings"`
}

// -----------------------------------------------------------------------------
// Demand Audit
// -----------------------------------------------------------------------------

// DemandRow summarizes simulated demand per quintile.
type DemandRow struct {
	Quintile           Quintile `json:"quintile"`
	Label              string   `json:"label"`
	Count              int      `json:"count"`
	MeanPotential      float64  `json:"mean_potential_demand"`
	MeanActual         float64  `json:"mean_actual_demand"`
	MeanSuppressed     float64  `json:"mean_suppressed_demand"`
	MeanSuppressionPct float64  `json:"mean_suppression_pct"`
	MeanInfraScore     float64  `json:"mean_infrastructure_score"`
}

// ModelScore grades one demand model against the potential-demand ground
// truth. DetectionRate is the share of high-suppression tracts where the
// model's estimate exceeded observed demand by at least half.
type ModelScore struct {
	Model         string  `json:"model"`
	Correlation   float64 `json:"correlation_with_potential"`
	RMSE          float64 `json:"rmse"`
	Q1BiasPct     float64 `json:"bias_q1"`
	Q5BiasPct     float64 `json:"bias_q5"`
	DetectionRate float64 `json:"detection_rate_high_suppression"`
}

// FunnelStages is the demand funnel for one group, each stage in percent of
// potential demand.
type FunnelStages struct {
	Potential      float64 `json:"stage1_potential"`
	Destinations   float64 `json:"stage2_destinations"`
	WouldUseIfSafe float64 `json:"stage3_would_use_if_safe"`
	ActuallyUse    float64 `json:"stage4_actually_use"`
	SuppressionPct float64 `json:"total_suppression_pct"`
}

// DemandFunnel describes demand loss stage by stage. Map keys are quintile
// display labels.
type DemandFunnel struct {
	ByQuintile map[string]FunnelStages `json:"by_quintile"`
	Overall    FunnelStages            `json:"overall"`
}

// CorrelationMatrix is a labeled symmetric Pearson correlation matrix.
type CorrelationMatrix struct {
	Variables []string    `json:"variables"`
	Matrix    [][]float64 `json:"matrix"`
}

// NetworkNode is one high-suppression tract in the demand flow view.
type NetworkNode struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Potential   float64 `json:"potential_demand"`
	Actual      float64 `json:"actual_demand"`
	Suppressed  float64 `json:"suppressed_demand"`
	IncomeLevel string  `json:"income_level"`
}

// NetworkLink is one potential-to-realized or potential-to-suppressed flow.
type NetworkLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
	Type   string  `json:"type"`
}

// DemandNetwork is the bounded suppressed-demand flow graph.
type DemandNetwork struct {
	Nodes []NetworkNode `json:"nodes"`
	Links []NetworkLink `json:"links"`
}

// DemandSummary is the headline block of the demand audit.
type DemandSummary struct {
	TotalPotential   float64 `json:"total_potential_demand"`
	TotalActual      float64 `json:"total_actual_demand"`
	TotalSuppressed  float64 `json:"total_suppressed_demand"`
	SuppressionRate  float64 `json:"suppression_rate"`
	Tracts           int     `json:"tracts_analyzed"`
	HighSuppression  int     `json:"high_suppression_tracts"`
	NaiveCorrelation float64 `json:"naive_ai_correlation"`
	SophCorrelation  float64 `json:"sophisticated_ai_correlation"`
}

// DemandReport is the full demand-audit result.
type DemandReport struct {
	Seed        int64             `json:"seed"`
	Summary     DemandSummary     `json:"summary"`
	ByQuintile  []DemandRow       `json:"demand_by_quintile"`
	Scorecard   []ModelScore      `json:"detection_scorecard"`
	Funnel      DemandFunnel      `json:"funnel"`
	Correlation CorrelationMatrix `json:"correlation_matrix"`
	Network     DemandNetwork     `json:"network"`
	Findings    []Finding         `json:"findings"`
}

// -----------------------------------------------------------------------------
// Full Report
// -----------------------------------------------------------------------------

// FullReport bundles every requested domain audit for one run.
type FullReport struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Scenario    ScenarioMetadata `json:"scenario"`
	Seed        int64            `json:"seed"`

	Volume         *VolumeReport         `json:"volume,omitempty"`
	Crash          *CrashReport          `json:"crash,omitempty"`
	Infrastructure *InfrastructureReport `json:"infrastructure,omitempty"`
	Demand         *DemandReport         `json:"demand,omitempty"`

	// Narrative is the optional LLM-drafted summary. Always empty unless a
	// summarizer was configured; findings never depend on it.
	Narrative string `json:"narrative,omitempty"`
}

// Domains lists which domain sections are present.
func (r *FullReport) Domains() []Domain {
	var out []Domain
	if r.Volume != nil {
		out = append(out, DomainVolume)
	}
	if r.Crash != nil {
		out = append(out, DomainCrash)
	}
	if r.Infrastructure != nil {
		out = append(out, DomainInfrastructure)
	}
	if r.Demand != nil {
		out = append(out, DomainDemand)
	}
	return out
}
