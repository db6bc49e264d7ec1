// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package loader

import (
	"fmt"
	"math"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/simulate"
)

// durhamFIPS prefixes generated tract GEOIDs (state 37, county 063).
const durhamFIPS = "37063"

// durhamBounds is the Durham county bounding box for generated coordinates.
var durhamBounds = struct {
	North, South, East, West float64
}{
	North: 36.1399,
	South: 35.8699,
	East:  -78.7699,
	West:  -79.0199,
}

// DefaultSyntheticCounters is the counter count when a synthetic spec sets
// tracts but not counters.
const DefaultSyntheticCounters = 15

// Synthetic tract parameter ranges.
const (
	synthIncomeFloor = 18_000.0
	synthIncomeSpan  = 92_000.0
	synthPopFloor    = 1200
	synthPopSpan     = 4800
)

// GenerateTracts produces a Durham-shaped synthetic tract table.
//
// Description:
//
//	Incomes follow a right-skewed draw over [18k, 110k]; minority share
//	declines linearly with income plus noise, reproducing the segregation
//	gradient the audits exist to measure; populations and coordinates are
//	uniform. Five draws per tract, in field order, so the same seed and
//	count reproduce the table exactly.
//
// Inputs:
//   - n: Number of tracts.
//   - seed: Generator seed.
//
// Outputs:
//   - []datatypes.GeographicEntity - Generated tracts, nil when n <= 0.
func GenerateTracts(n int, seed int64) []datatypes.GeographicEntity {
	if n <= 0 {
		return nil
	}
	rng := simulate.NewRand(seed)

	out := make([]datatypes.GeographicEntity, 0, n)
	for i := 0; i < n; i++ {
		u := rng.Float64()
		income := synthIncomeFloor + u*u*synthIncomeSpan

		minority := 80 - (income-synthIncomeFloor)/synthIncomeSpan*65 + rng.Normal(0, 1)*8
		minority = math.Min(math.Max(minority, 2), 98)

		population := synthPopFloor + int(rng.Float64()*float64(synthPopSpan))
		lat := durhamBounds.South + rng.Float64()*(durhamBounds.North-durhamBounds.South)
		lon := durhamBounds.West + rng.Float64()*(durhamBounds.East-durhamBounds.West)

		out = append(out, datatypes.GeographicEntity{
			ID:           fmt.Sprintf("%s%06d", durhamFIPS, 100+i),
			Population:   population,
			MedianIncome: datatypes.Float64(math.Round(income)),
			PctMinority:  datatypes.Float64(math.Round(minority*10) / 10),
			Lat:          lat,
			Lon:          lon,
		})
	}
	return out
}

// GenerateCounters produces ground-truth counter sites over the tracts.
//
// Description:
//
//	Counters round-robin across the tract table. Each site's base volume is
//	population/100 scaled by a seasonal Uniform(0.8, 1.2) factor and
//	truncated to a whole count; coordinates jitter around the tract
//	centroid. The first three sites are labeled "observed", the rest
//	"synthetic". Three draws per counter.
//
// Inputs:
//   - tracts: Tract table to place counters in.
//   - n: Number of counters.
//   - seed: Generator seed.
//
// Outputs:
//   - []datatypes.CounterSite - Generated sites, nil when either input is
//     empty.
func GenerateCounters(tracts []datatypes.GeographicEntity, n int, seed int64) []datatypes.CounterSite {
	if n <= 0 || len(tracts) == 0 {
		return nil
	}
	rng := simulate.NewRand(seed)

	out := make([]datatypes.CounterSite, 0, n)
	for i := 0; i < n; i++ {
		tract := tracts[i%len(tracts)]

		seasonal := 0.8 + rng.Float64()*0.4
		volume := math.Trunc(float64(tract.Population) / 100 * seasonal)

		source := "synthetic"
		if i < 3 {
			source = "observed"
		}

		out = append(out, datatypes.CounterSite{
			ID:         fmt.Sprintf("CTR%03d", i+1),
			EntityID:   tract.ID,
			Lat:        tract.Lat + (rng.Float64()-0.5)*0.01,
			Lon:        tract.Lon + (rng.Float64()-0.5)*0.01,
			BaseVolume: volume,
			Source:     source,
		})
	}
	return out
}
