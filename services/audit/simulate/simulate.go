// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package simulate implements the bias-injection generators behind the audit
// service. Each generator derives a synthetic "AI estimate" series from
// ground-truth demographic covariates, injecting an income-correlated
// distortion that the downstream analysis is expected to surface.
//
// Every generator takes an explicit *Rand. Running a generator twice with
// the same seed and the same inputs, in the same order, yields identical
// output. Entities whose MedianIncome is nil are excluded from generation:
// each distortion here is a function of income, so such entities have no
// defined place in the synthetic series.
package simulate

import (
	"math"
	"math/rand"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Seeded Randomness
// -----------------------------------------------------------------------------

// Rand wraps a seeded math/rand source with the distribution helpers the
// generators draw from.
//
// Thread Safety: NOT thread-safe. Create one per audit domain, or serialize
// access externally.
type Rand struct {
	src *rand.Rand
}

// NewRand returns a generator seeded with seed. The same seed always yields
// the same draw sequence.
func NewRand(seed int64) *Rand {
	return &Rand{src: rand.New(rand.NewSource(seed))}
}

// Normal draws from N(mean, sigma).
func (r *Rand) Normal(mean, sigma float64) float64 {
	return mean + sigma*r.src.NormFloat64()
}

// Uniform draws from the half-open interval [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	return lo + r.src.Float64()*(hi-lo)
}

// Float64 draws from [0, 1).
func (r *Rand) Float64() float64 {
	return r.src.Float64()
}

// -----------------------------------------------------------------------------
// Covariate Helpers
// -----------------------------------------------------------------------------

// NormalizedIncomes linearly rescales entity incomes onto [0, 1], keyed by
// entity ID. Entities with a nil MedianIncome receive no entry. When every
// known income is identical, every entity maps to the midpoint 0.5.
func NormalizedIncomes(entities []datatypes.GeographicEntity) map[string]float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, ent := range entities {
		if ent.MedianIncome == nil {
			continue
		}
		if *ent.MedianIncome < lo {
			lo = *ent.MedianIncome
		}
		if *ent.MedianIncome > hi {
			hi = *ent.MedianIncome
		}
	}

	out := make(map[string]float64, len(entities))
	for _, ent := range entities {
		if ent.MedianIncome == nil {
			continue
		}
		if hi == lo {
			out[ent.ID] = 0.5
			continue
		}
		out[ent.ID] = (*ent.MedianIncome - lo) / (hi - lo)
	}
	return out
}

// normalize01 rescales values onto [0, 1] in place order. A constant input
// maps every element to 0.5.
func normalize01(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if hi == lo {
			out[i] = 0.5
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// clip bounds v to [lo, hi].
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
