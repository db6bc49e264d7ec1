// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package simulate

import (
	"math"
	"reflect"
	"testing"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Suppression Curve Tests
// -----------------------------------------------------------------------------

func TestSuppressionFactor(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0.9, 0.19},
		{0.5, 0.75},
		{0.3, 0.91},
		{0, 1},
		{1, 0},
	}
	for _, tt := range tests {
		if got := SuppressionFactor(tt.score); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SuppressionFactor(%v): expected %v, got %v", tt.score, tt.want, got)
		}
	}
}

// -----------------------------------------------------------------------------
// Demand Simulation Tests
// -----------------------------------------------------------------------------

func TestDemandSimulate(t *testing.T) {
	entities := []datatypes.GeographicEntity{
		tract("POOR", 10_000, 70, 5000),
		tract("MID", 50_000, 40, 8000),
		{ID: "NOINC", Population: 6000},
		tract("RICH", 90_000, 15, 3000),
	}
	sim := NewDemandSimulator(&datatypes.DefaultAuditConfig)
	obs := sim.Simulate(entities, NewRand(42))

	if len(obs) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(obs))
	}
	for i, want := range []string{"POOR", "MID", "RICH"} {
		if obs[i].EntityID != want {
			t.Fatalf("observation %d: expected %s, got %s", i, want, obs[i].EntityID)
		}
	}

	t.Run("potential scaled by income factor", func(t *testing.T) {
		// base rate 0.10, income factors 1.5 / 1.25 / 1.0, destination
		// factor in [0.8, 1.2).
		bounds := []struct {
			lo, hi float64
		}{
			{5000 * 0.10 * 1.5 * 0.8, 5000 * 0.10 * 1.5 * 1.2},
			{8000 * 0.10 * 1.25 * 0.8, 8000 * 0.10 * 1.25 * 1.2},
			{3000 * 0.10 * 1.0 * 0.8, 3000 * 0.10 * 1.0 * 1.2},
		}
		for i, o := range obs {
			if o.Potential < bounds[i].lo || o.Potential >= bounds[i].hi {
				t.Errorf("%s: potential %v outside [%v, %v)", o.EntityID, o.Potential, bounds[i].lo, bounds[i].hi)
			}
		}
	})

	t.Run("infrastructure score clipped", func(t *testing.T) {
		for _, o := range obs {
			if o.InfraScore < 0.2 || o.InfraScore > 0.95 {
				t.Errorf("%s: infrastructure score %v outside [0.2, 0.95]", o.EntityID, o.InfraScore)
			}
		}
	})

	t.Run("demand partition", func(t *testing.T) {
		for _, o := range obs {
			if o.SuppressionFactor != SuppressionFactor(o.InfraScore) {
				t.Errorf("%s: stored factor %v does not match the curve", o.EntityID, o.SuppressionFactor)
			}
			if math.Abs(o.Actual+o.Suppressed-o.Potential) > 1e-6 {
				t.Errorf("%s: actual %v + suppressed %v does not recover potential %v",
					o.EntityID, o.Actual, o.Suppressed, o.Potential)
			}
			if o.SuppressionPct != o.SuppressionFactor*100 {
				t.Errorf("%s: suppression pct %v does not match factor %v",
					o.EntityID, o.SuppressionPct, o.SuppressionFactor)
			}
		}
	})

	t.Run("naive detector echoes observed demand", func(t *testing.T) {
		for _, o := range obs {
			if o.NaivePrediction != o.Actual {
				t.Errorf("%s: naive prediction %v differs from actual %v", o.EntityID, o.NaivePrediction, o.Actual)
			}
		}
	})

	t.Run("sophisticated detector capped", func(t *testing.T) {
		for _, o := range obs {
			if o.SophPrediction < 0 || o.SophPrediction > o.Potential*1.2 {
				t.Errorf("%s: sophisticated prediction %v outside [0, %v]",
					o.EntityID, o.SophPrediction, o.Potential*1.2)
			}
		}
	})
}

func TestDemandSimulateReproducible(t *testing.T) {
	entities := []datatypes.GeographicEntity{
		tract("T1", 20_000, 70, 3000),
		tract("T2", 45_000, 45, 5000),
		tract("T3", 80_000, 20, 2500),
	}
	sim := NewDemandSimulator(&datatypes.DefaultAuditConfig)

	a := sim.Simulate(entities, NewRand(42))
	b := sim.Simulate(entities, NewRand(42))
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed and inputs produced different observations")
	}
}
