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
	"reflect"
	"testing"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
)

// -----------------------------------------------------------------------------
// Counter Synthesis Tests
// -----------------------------------------------------------------------------

func TestSyntheticCounters(t *testing.T) {
	entities := []datatypes.GeographicEntity{
		tract("T1", 20_000, 60, 3000),
		tract("T2", 40_000, 40, 3000),
		tract("T3", 60_000, 30, 3000),
		tract("T4", 80_000, 20, 3000),
	}

	sites := SyntheticCounters(entities, 10, NewRand(42))
	if len(sites) != 10 {
		t.Fatalf("expected 10 sites, got %d", len(sites))
	}

	t.Run("sequential ids", func(t *testing.T) {
		for i, s := range sites {
			want := fmt.Sprintf("CTR%03d", i+1)
			if s.ID != want {
				t.Errorf("site %d: expected ID %s, got %s", i, want, s.ID)
			}
		}
	})

	t.Run("cycles through entities", func(t *testing.T) {
		for i, s := range sites {
			want := entities[i%len(entities)]
			if s.EntityID != want.ID {
				t.Errorf("site %d: expected entity %s, got %s", i, want.ID, s.EntityID)
			}
			if s.Lat != want.Lat || s.Lon != want.Lon {
				t.Errorf("site %d: expected tract centroid, got (%v, %v)", i, s.Lat, s.Lon)
			}
		}
	})

	t.Run("first sites tagged observed", func(t *testing.T) {
		for i, s := range sites {
			want := "synthetic"
			if i < ObservedCounterCount {
				want = "observed"
			}
			if s.Source != want {
				t.Errorf("site %d: expected source %s, got %s", i, want, s.Source)
			}
		}
	})

	t.Run("volume scaled from population", func(t *testing.T) {
		// base = 3000/100 = 30, seasonal in [0.8, 1.2), truncated.
		for i, s := range sites {
			if s.BaseVolume != math.Trunc(s.BaseVolume) {
				t.Errorf("site %d: expected whole count, got %v", i, s.BaseVolume)
			}
			if s.BaseVolume < 24 || s.BaseVolume >= 36 {
				t.Errorf("site %d: volume %v outside seasonal bounds [24, 36)", i, s.BaseVolume)
			}
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if got := SyntheticCounters(nil, 5, NewRand(1)); got != nil {
			t.Errorf("expected nil for no entities, got %d sites", len(got))
		}
		if got := SyntheticCounters(entities, 0, NewRand(1)); got != nil {
			t.Errorf("expected nil for zero sites, got %d", len(got))
		}
	})
}

// -----------------------------------------------------------------------------
// Volume Bias Tests
// -----------------------------------------------------------------------------

func TestVolumeSimulatorBiasFactors(t *testing.T) {
	entities := []datatypes.GeographicEntity{
		tract("POOR", 15_000, 80, 4000),
		tract("RICH", 95_000, 10, 4000),
		tract("MID", 55_000, 45, 4000),
	}
	strata := &engine.EntityStrata{
		Quintiles: map[string]datatypes.Quintile{
			"POOR": datatypes.Quintile1,
			"RICH": datatypes.Quintile5,
			"MID":  datatypes.Quintile3,
		},
	}
	counters := []datatypes.CounterSite{
		{ID: "CTR001", EntityID: "POOR", BaseVolume: 1000},
		{ID: "CTR002", EntityID: "RICH", BaseVolume: 1000},
		{ID: "CTR003", EntityID: "MID", BaseVolume: 1000},
		{ID: "CTR004", EntityID: "GHOST", BaseVolume: 1000},
	}

	sim := VolumeSimulator{
		Bias: datatypes.BiasParameters{
			LowIncomeUndercount: 0.25,
			HighIncomeOvercount: 0.08,
			MinorityUndercount:  0.20,
			MinorityOvercount:   0.05,
			BaseNoise:           0,
		},
		MinorityLow:  30,
		MinorityHigh: 60,
	}

	obs := sim.Simulate(counters, entities, strata, NewRand(42))
	if len(obs) != len(counters) {
		t.Fatalf("expected %d observations, got %d", len(counters), len(obs))
	}

	p := sim.Bias
	wantBias := map[string]float64{
		"POOR":  (1 - p.LowIncomeUndercount) * (1 - p.MinorityUndercount),
		"RICH":  (1 + p.HighIncomeOvercount) * (1 + p.MinorityOvercount),
		"MID":   1.0,
		"GHOST": 1.0,
	}

	for _, o := range obs {
		id := o.Record.EntityID
		t.Run(id, func(t *testing.T) {
			if math.Abs(o.Bias-wantBias[id]) > 1e-12 {
				t.Errorf("expected bias %v, got %v", wantBias[id], o.Bias)
			}
			// BaseNoise 0 pins the noise factor at exactly 1.
			want := math.Trunc(o.Counter.BaseVolume * o.Bias)
			if o.Record.PredictedValue != want {
				t.Errorf("expected predicted %v, got %v", want, o.Record.PredictedValue)
			}
			if o.Record.TrueValue != o.Counter.BaseVolume {
				t.Errorf("expected true value %v, got %v", o.Counter.BaseVolume, o.Record.TrueValue)
			}
		})
	}
}

func TestVolumeSimulatorUndercountsPoorTracts(t *testing.T) {
	// With minority factors out of the picture, the quintile factor alone
	// separates the two estimates: 0.75x vs 1.08x on the same true volume.
	entities := []datatypes.GeographicEntity{
		tract("POOR", 15_000, 45, 4000),
		tract("RICH", 95_000, 45, 4000),
	}
	strata := &engine.EntityStrata{
		Quintiles: map[string]datatypes.Quintile{
			"POOR": datatypes.Quintile2,
			"RICH": datatypes.Quintile4,
		},
	}
	counters := []datatypes.CounterSite{
		{ID: "CTR001", EntityID: "POOR", BaseVolume: 500},
		{ID: "CTR002", EntityID: "RICH", BaseVolume: 500},
	}

	sim := NewVolumeSimulator(&datatypes.DefaultAuditConfig)
	sim.Bias.BaseNoise = 0

	obs := sim.Simulate(counters, entities, strata, NewRand(9))
	if poor, rich := obs[0].Record.PredictedValue, obs[1].Record.PredictedValue; poor >= rich {
		t.Errorf("expected poor-tract estimate below rich-tract estimate, got %v vs %v", poor, rich)
	}
	if obs[0].Record.PredictedValue >= obs[0].Record.TrueValue {
		t.Errorf("expected undercount in poor tract, predicted %v of true %v",
			obs[0].Record.PredictedValue, obs[0].Record.TrueValue)
	}
	if obs[1].Record.PredictedValue <= obs[1].Record.TrueValue {
		t.Errorf("expected overcount in rich tract, predicted %v of true %v",
			obs[1].Record.PredictedValue, obs[1].Record.TrueValue)
	}
}

func TestVolumeSimulatorReproducible(t *testing.T) {
	entities := []datatypes.GeographicEntity{
		tract("T1", 20_000, 70, 3000),
		tract("T2", 80_000, 20, 5000),
	}
	strata, err := engine.StratifyEntities(entities, datatypes.DefaultAuditConfig)
	if err != nil {
		t.Fatalf("stratify: %v", err)
	}
	sim := NewVolumeSimulator(&datatypes.DefaultAuditConfig)

	run := func() []VolumeObservation {
		rng := NewRand(99)
		counters := SyntheticCounters(entities, 6, rng)
		return sim.Simulate(counters, entities, strata, rng)
	}

	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Error("same seed and inputs produced different observations")
	}
}

func TestVolumeRecords(t *testing.T) {
	obs := []VolumeObservation{
		{Record: datatypes.ObservationRecord{EntityID: "A", TrueValue: 100, PredictedValue: 75}},
		{Record: datatypes.ObservationRecord{EntityID: "B", TrueValue: 200, PredictedValue: 216}},
	}
	records := VolumeRecords(obs)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, o := range obs {
		if records[i] != o.Record {
			t.Errorf("record %d: expected %+v, got %+v", i, o.Record, records[i])
		}
	}
}
