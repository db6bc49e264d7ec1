// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// auditValidate is the validator instance for audit datatypes.
// Initialized in init() with custom validators.
var auditValidate *validator.Validate

func init() {
	auditValidate = validator.New()

	_ = auditValidate.RegisterValidation("auditdomain", validateAuditDomain)
}

// validateAuditDomain accepts the four audit domain names.
func validateAuditDomain(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case string(DomainVolume), string(DomainCrash), string(DomainInfrastructure), string(DomainDemand):
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Audit Domains
// -----------------------------------------------------------------------------

// Domain names one of the four audited estimate families.
type Domain string

const (
	DomainVolume         Domain = "volume"
	DomainCrash          Domain = "crash"
	DomainInfrastructure Domain = "infrastructure"
	DomainDemand         Domain = "demand"
)

// AllDomains lists every domain in report order.
var AllDomains = []Domain{DomainVolume, DomainCrash, DomainInfrastructure, DomainDemand}

// -----------------------------------------------------------------------------
// Bias Parameters
// -----------------------------------------------------------------------------

// BiasParameters controls the volume bias simulator. Rates are fractions,
// not percentages: 0.25 means a 25% undercount.
type BiasParameters struct {
	LowIncomeUndercount float64 `json:"low_income_undercount" yaml:"low_income_undercount" validate:"gte=0,lte=1"`
	HighIncomeOvercount float64 `json:"high_income_overcount" yaml:"high_income_overcount" validate:"gte=0,lte=1"`
	MinorityUndercount  float64 `json:"minority_undercount" yaml:"minority_undercount" validate:"gte=0,lte=1"`
	MinorityOvercount   float64 `json:"minority_overcount" yaml:"minority_overcount" validate:"gte=0,lte=1"`
	BaseNoise           float64 `json:"base_noise" yaml:"base_noise" validate:"gte=0,lte=1"`
}

// DefaultBiasParameters are the published Safe-T AI simulation defaults.
var DefaultBiasParameters = BiasParameters{
	LowIncomeUndercount: 0.25,
	HighIncomeOvercount: 0.08,
	MinorityUndercount:  0.20,
	MinorityOvercount:   0.05,
	BaseNoise:           0.05,
}

// -----------------------------------------------------------------------------
// Domain Simulation Configs
// -----------------------------------------------------------------------------

// CrashConfig controls crash data generation and the reporting-bias and
// shrinkage simulators.
type CrashConfig struct {
	// BaseRate is the average crashes per tract per year before the income
	// multiplier is applied.
	BaseRate float64 `json:"base_rate" yaml:"base_rate" validate:"gt=0"`

	// Years are the simulated observation years, oldest first.
	Years []int `json:"years" yaml:"years" validate:"min=1"`

	// ReportingBase and ReportingSlope define reporting_rate =
	// base + slope*normalized_income.
	ReportingBase  float64 `json:"reporting_base" yaml:"reporting_base" validate:"gt=0,lte=1"`
	ReportingSlope float64 `json:"reporting_slope" yaml:"reporting_slope" validate:"gte=0,lte=1"`

	// Damping is the shrinkage weight toward the local reported value.
	// 0 collapses every prediction to the quintile mean, 1 disables
	// shrinkage entirely.
	Damping float64 `json:"damping" yaml:"damping" validate:"gte=0,lte=1"`

	// PredictionNoise is the relative sigma of prediction noise.
	PredictionNoise float64 `json:"prediction_noise" yaml:"prediction_noise" validate:"gte=0,lte=1"`
}

// DefaultCrashConfig matches the published simulation defaults.
var DefaultCrashConfig = CrashConfig{
	BaseRate:        35.0,
	Years:           []int{2019, 2020, 2021, 2022, 2023},
	ReportingBase:   0.6,
	ReportingSlope:  0.3,
	Damping:         0.6,
	PredictionNoise: 0.1,
}

// DangerConfig controls the synthetic danger-score model behind the
// infrastructure audit.
type DangerConfig struct {
	BaseDanger          float64 `json:"base_danger" yaml:"base_danger" validate:"gt=0"`
	IncomeMultiplierMin float64 `json:"income_multiplier_min" yaml:"income_multiplier_min" validate:"gt=0"`
	IncomeMultiplierMax float64 `json:"income_multiplier_max" yaml:"income_multiplier_max" validate:"gt=0"`

	// BiasStrength blends normalized income into the AI priority score:
	// priority = (1-b)*danger_norm + b*income_norm.
	BiasStrength float64 `json:"bias_strength" yaml:"bias_strength" validate:"gte=0,lte=1"`
}

// DefaultDangerConfig matches the published simulation defaults.
var DefaultDangerConfig = DangerConfig{
	BaseDanger:          30.0,
	IncomeMultiplierMin: 0.7,
	IncomeMultiplierMax: 1.5,
	BiasStrength:        0.6,
}

// DemandConfig controls the suppressed-demand audit.
type DemandConfig struct {
	// BaseRate is trips per resident used for potential demand.
	BaseRate float64 `json:"base_rate" yaml:"base_rate" validate:"gt=0"`

	// HighSuppressionThreshold is the suppression percentage above which a
	// tract counts toward the detection rate denominator.
	HighSuppressionThreshold float64 `json:"high_suppression_threshold" yaml:"high_suppression_threshold" validate:"gte=0,lte=100"`

	// NetworkTopN and NetworkMaxLinks bound the suppressed-demand flow view.
	NetworkTopN     int `json:"network_top_n" yaml:"network_top_n" validate:"gt=0"`
	NetworkMaxLinks int `json:"network_max_links" yaml:"network_max_links" validate:"gt=0"`
}

// DefaultDemandConfig matches the published simulation defaults.
var DefaultDemandConfig = DemandConfig{
	BaseRate:                 0.10,
	HighSuppressionThreshold: 70.0,
	NetworkTopN:              20,
	NetworkMaxLinks:          40,
}

// -----------------------------------------------------------------------------
// Audit Config
// -----------------------------------------------------------------------------

// AuditConfig is the complete tunable surface of one audit run. Zero values
// are filled from the Default* variables by Normalize, so callers can set
// only what they need.
type AuditConfig struct {
	// QuintileProbs are the percentile probabilities defining quintile
	// breakpoints. The audit contract fixes these at 20/40/60/80.
	QuintileProbs []float64 `json:"quintile_probs" yaml:"quintile_probs" validate:"omitempty,len=4,dive,gt=0,lt=1"`

	// MinorityLowThreshold and MinorityHighThreshold split tracts into the
	// Low/Medium/High minority-share categories.
	MinorityLowThreshold  float64 `json:"minority_low_threshold" yaml:"minority_low_threshold" validate:"gte=0,lte=100"`
	MinorityHighThreshold float64 `json:"minority_high_threshold" yaml:"minority_high_threshold" validate:"gte=0,lte=100"`

	// SignificanceLevel is the alpha for the Welch significance test.
	SignificanceLevel float64 `json:"significance_level" yaml:"significance_level" validate:"gte=0,lte=1"`

	// TotalBudget funds one infrastructure allocation pass.
	TotalBudget float64 `json:"total_budget" yaml:"total_budget" validate:"gte=0"`

	// Seed drives every simulator in the run. Same seed, same inputs,
	// identical output.
	Seed int64 `json:"seed" yaml:"seed"`

	Bias   BiasParameters `json:"bias_parameters" yaml:"bias_parameters"`
	Crash  CrashConfig    `json:"crash" yaml:"crash"`
	Danger DangerConfig   `json:"danger" yaml:"danger"`
	Demand DemandConfig   `json:"demand" yaml:"demand"`
}

// DefaultSeed is the seed used when a scenario does not set one.
const DefaultSeed int64 = 42

// DefaultAuditConfig is the baseline configuration for every audit run.
var DefaultAuditConfig = AuditConfig{
	QuintileProbs:         []float64{0.2, 0.4, 0.6, 0.8},
	MinorityLowThreshold:  30.0,
	MinorityHighThreshold: 60.0,
	SignificanceLevel:     0.05,
	TotalBudget:           2_500_000,
	Seed:                  DefaultSeed,
	Bias:                  DefaultBiasParameters,
	Crash:                 DefaultCrashConfig,
	Danger:                DefaultDangerConfig,
	Demand:                DefaultDemandConfig,
}

// Normalize fills unset fields from DefaultAuditConfig and returns the
// receiver for chaining. Slices are copied, never shared with the defaults.
func (c *AuditConfig) Normalize() *AuditConfig {
	if len(c.QuintileProbs) == 0 {
		c.QuintileProbs = append([]float64(nil), DefaultAuditConfig.QuintileProbs...)
	}
	if c.MinorityLowThreshold == 0 && c.MinorityHighThreshold == 0 {
		c.MinorityLowThreshold = DefaultAuditConfig.MinorityLowThreshold
		c.MinorityHighThreshold = DefaultAuditConfig.MinorityHighThreshold
	}
	if c.SignificanceLevel == 0 {
		c.SignificanceLevel = DefaultAuditConfig.SignificanceLevel
	}
	if c.TotalBudget == 0 {
		c.TotalBudget = DefaultAuditConfig.TotalBudget
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.Bias == (BiasParameters{}) {
		c.Bias = DefaultBiasParameters
	}
	if c.Crash.BaseRate == 0 {
		crash := DefaultCrashConfig
		crash.Years = append([]int(nil), DefaultCrashConfig.Years...)
		c.Crash = crash
	}
	if c.Danger.BaseDanger == 0 {
		c.Danger = DefaultDangerConfig
	}
	if c.Demand.BaseRate == 0 {
		c.Demand = DefaultDemandConfig
	}
	return c
}

// Validate checks the configuration after normalization.
//
// Outputs:
//
//	error - Non-nil when a field violates its constraints, wrapping the
//	validator error, or when the minority thresholds are out of order.
func (c *AuditConfig) Validate() error {
	if err := auditValidate.Struct(c); err != nil {
		return fmt.Errorf("audit config: %w", err)
	}
	if c.MinorityLowThreshold >= c.MinorityHighThreshold {
		return fmt.Errorf("audit config: minority thresholds out of order (%v >= %v)",
			c.MinorityLowThreshold, c.MinorityHighThreshold)
	}
	if c.Danger.IncomeMultiplierMin >= c.Danger.IncomeMultiplierMax {
		return fmt.Errorf("audit config: danger income multipliers out of order (%v >= %v)",
			c.Danger.IncomeMultiplierMin, c.Danger.IncomeMultiplierMax)
	}
	return nil
}
