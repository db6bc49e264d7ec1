// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package simulate

import (
	"fmt"
	"math"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
)

// -----------------------------------------------------------------------------
// Counter Synthesis
// -----------------------------------------------------------------------------

const (
	// SyntheticCounterCount is the default number of generated count sites.
	SyntheticCounterCount = 15

	// ObservedCounterCount is how many generated sites stand in for real
	// permanent count stations; the rest are tagged synthetic.
	ObservedCounterCount = 3
)

// SyntheticCounters generates n counter sites by cycling through the entity
// list. Each site sits at its tract's centroid and derives its ground-truth
// daily volume from tract population, scaled by a seasonal factor drawn
// from [0.8, 1.2) and truncated to a whole count.
func SyntheticCounters(entities []datatypes.GeographicEntity, n int, rng *Rand) []datatypes.CounterSite {
	if len(entities) == 0 || n <= 0 {
		return nil
	}

	sites := make([]datatypes.CounterSite, 0, n)
	for i := 0; i < n; i++ {
		ent := entities[i%len(entities)]
		base := float64(ent.Population) / 100.0
		seasonal := rng.Uniform(0.8, 1.2)

		source := "synthetic"
		if i < ObservedCounterCount {
			source = "observed"
		}

		sites = append(sites, datatypes.CounterSite{
			ID:         fmt.Sprintf("CTR%03d", i+1),
			EntityID:   ent.ID,
			Lat:        ent.Lat,
			Lon:        ent.Lon,
			BaseVolume: math.Trunc(base * seasonal),
			Source:     source,
		})
	}
	return sites
}

// -----------------------------------------------------------------------------
// Volume Bias Simulator
// -----------------------------------------------------------------------------

// VolumeObservation pairs one counter with its observation record and the
// composite bias factor that produced the estimate.
type VolumeObservation struct {
	Counter datatypes.CounterSite
	Record  datatypes.ObservationRecord

	// Bias is the product of every demographic factor applied, before
	// noise. 1.0 means the counter sits in a neutral tract.
	Bias float64
}

// VolumeSimulator injects demographic bias into counter volumes.
type VolumeSimulator struct {
	Bias datatypes.BiasParameters

	// MinorityLow and MinorityHigh are the pct-minority thresholds at
	// which the overcount and undercount factors engage.
	MinorityLow  float64
	MinorityHigh float64
}

// NewVolumeSimulator wires a simulator from the run configuration.
func NewVolumeSimulator(cfg *datatypes.AuditConfig) VolumeSimulator {
	return VolumeSimulator{
		Bias:         cfg.Bias,
		MinorityLow:  cfg.MinorityLowThreshold,
		MinorityHigh: cfg.MinorityHighThreshold,
	}
}

// Simulate produces one biased estimate per counter.
//
// Description:
//
//	Counters in the bottom two income quintiles are undercounted and the
//	top two overcounted; tracts above the high minority threshold are
//	undercounted and tracts below the low threshold slightly overcounted.
//	The factors stack multiplicatively, pick up Gaussian noise around 1.0,
//	and the estimate is truncated to a whole count. Counters in tracts with
//	no quintile or no minority share skip the corresponding factor.
//
// Inputs:
//   - counters: Sites carrying ground-truth daily volumes.
//   - entities: Tract demographics for the counters' EntityIDs.
//   - strata: Quintile assignments over the same entities.
//   - rng: Draw source; consumes one normal draw per counter.
//
// Outputs:
//   - []VolumeObservation - One per counter, in input order. Records carry
//     only the true and predicted values; callers run engine.Enrich to
//     derive errors and stratum labels.
func (s VolumeSimulator) Simulate(counters []datatypes.CounterSite, entities []datatypes.GeographicEntity, strata *engine.EntityStrata, rng *Rand) []VolumeObservation {
	byID := make(map[string]datatypes.GeographicEntity, len(entities))
	for _, ent := range entities {
		byID[ent.ID] = ent
	}

	out := make([]VolumeObservation, 0, len(counters))
	for _, ctr := range counters {
		bias := 1.0

		switch q := strata.QuintileFor(ctr.EntityID); {
		case q == datatypes.Quintile1 || q == datatypes.Quintile2:
			bias *= 1 - s.Bias.LowIncomeUndercount
		case q == datatypes.Quintile4 || q == datatypes.Quintile5:
			bias *= 1 + s.Bias.HighIncomeOvercount
		}

		if ent, ok := byID[ctr.EntityID]; ok && ent.PctMinority != nil {
			switch pct := *ent.PctMinority; {
			case pct > s.MinorityHigh:
				bias *= 1 - s.Bias.MinorityUndercount
			case pct < s.MinorityLow:
				bias *= 1 + s.Bias.MinorityOvercount
			}
		}

		noise := rng.Normal(1.0, s.Bias.BaseNoise)
		predicted := math.Trunc(ctr.BaseVolume * bias * noise)

		out = append(out, VolumeObservation{
			Counter: ctr,
			Bias:    bias,
			Record: datatypes.ObservationRecord{
				EntityID:       ctr.EntityID,
				TrueValue:      ctr.BaseVolume,
				PredictedValue: predicted,
			},
		})
	}
	return out
}

// VolumeRecords extracts the observation records from obs, preserving order.
func VolumeRecords(obs []VolumeObservation) []datatypes.ObservationRecord {
	out := make([]datatypes.ObservationRecord, len(obs))
	for i, o := range obs {
		out[i] = o.Record
	}
	return out
}
