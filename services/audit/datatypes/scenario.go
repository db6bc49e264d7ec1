// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Scenario Files
// -----------------------------------------------------------------------------

// ScenarioMetadata identifies a scenario file for run-ID construction.
type ScenarioMetadata struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Version     string `json:"version" yaml:"version" validate:"required"`
	Description string `json:"description" yaml:"description"`
}

// DatasetSpec tells the loader where audit input tables come from. Either
// the file paths are set, or Synthetic describes a generated dataset.
type DatasetSpec struct {
	TractsPath   string `json:"tracts_path" yaml:"tracts_path"`
	CountersPath string `json:"counters_path" yaml:"counters_path"`

	Synthetic SyntheticSpec `json:"synthetic" yaml:"synthetic"`
}

// SyntheticSpec sizes a generated dataset.
type SyntheticSpec struct {
	Tracts   int `json:"tracts" yaml:"tracts" validate:"gte=0"`
	Counters int `json:"counters" yaml:"counters" validate:"gte=0"`
}

// Enabled reports whether the dataset should be generated rather than read.
func (s SyntheticSpec) Enabled() bool {
	return s.Tracts > 0
}

// AuditScenario is the YAML file handed to `safetai audit run --config`.
//
// Example:
//
//	metadata:
//	  id: durham_volume_bias
//	  version: "1.2"
//	domains: [volume, crash]
//	dataset:
//	  synthetic: {tracts: 60, counters: 15}
//	config:
//	  seed: 42
type AuditScenario struct {
	Metadata ScenarioMetadata `json:"metadata" yaml:"metadata" validate:"required"`
	Domains  []string         `json:"domains" yaml:"domains" validate:"min=1,dive,auditdomain"`
	Dataset  DatasetSpec      `json:"dataset" yaml:"dataset"`
	Config   AuditConfig      `json:"config" yaml:"config"`
}

// DefaultScenario returns the built-in Durham baseline: every domain over a
// synthetic dataset. The service and the CLI fall back to it when no
// scenario file is given.
func DefaultScenario() *AuditScenario {
	s := &AuditScenario{
		Metadata: ScenarioMetadata{
			ID:          "durham-baseline",
			Version:     "1.0",
			Description: "Synthetic Durham baseline audit across all domains",
		},
		Domains: []string{
			string(DomainVolume),
			string(DomainCrash),
			string(DomainInfrastructure),
			string(DomainDemand),
		},
		Dataset: DatasetSpec{
			Synthetic: SyntheticSpec{Tracts: 60, Counters: 15},
		},
	}
	s.Config.Normalize()
	return s
}

// LoadScenario reads, parses, normalizes, and validates a scenario file.
//
// Description:
//
//	Reads the YAML file at path, unmarshals it into an AuditScenario,
//	fills unset config fields from the defaults, and validates the result.
//
// Inputs:
//
//	path - Filesystem path of the scenario YAML.
//
// Outputs:
//
//	*AuditScenario - The validated scenario.
//	error - Non-nil on read, parse, or validation failure.
func LoadScenario(path string) (*AuditScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var scenario AuditScenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	scenario.Config.Normalize()
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// Validate checks the scenario structure and its embedded config.
func (s *AuditScenario) Validate() error {
	if err := auditValidate.Struct(s); err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	if !s.Dataset.Synthetic.Enabled() && s.Dataset.TractsPath == "" {
		return fmt.Errorf("scenario: dataset needs either tracts_path or synthetic.tracts > 0")
	}
	return s.Config.Validate()
}

// DomainSet returns the requested domains as typed values, deduplicated,
// in canonical order.
func (s *AuditScenario) DomainSet() []Domain {
	want := make(map[Domain]bool, len(s.Domains))
	for _, d := range s.Domains {
		want[Domain(d)] = true
	}
	var out []Domain
	for _, d := range AllDomains {
		if want[d] {
			out = append(out, d)
		}
	}
	return out
}
