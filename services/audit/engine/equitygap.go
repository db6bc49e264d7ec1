// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"math"
	"sort"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Grouped Aggregation
// -----------------------------------------------------------------------------

// Sample is one row of a metric column paired with its stratum label.
type Sample struct {
	Stratum string
	Value   float64
}

// groupAccumulator aggregates one stratum in a single pass: count, sum and
// sum of squares feed mean/std, the retained values feed the median and the
// significance test.
type groupAccumulator struct {
	count  int
	sum    float64
	sumSq  float64
	values []float64
}

func (g *groupAccumulator) add(v float64) {
	g.count++
	g.sum += v
	g.sumSq += v * v
	g.values = append(g.values, v)
}

func (g *groupAccumulator) mean() float64 {
	if g.count == 0 {
		return 0
	}
	return g.sum / float64(g.count)
}

// std is the sample standard deviation (n-1 denominator), 0 for n < 2.
func (g *groupAccumulator) std() float64 {
	if g.count < 2 {
		return 0
	}
	m := g.mean()
	variance := (g.sumSq - float64(g.count)*m*m) / float64(g.count-1)
	if variance < 0 {
		// float cancellation can push a zero variance slightly negative
		variance = 0
	}
	return math.Sqrt(variance)
}

// accumulate builds the per-stratum accumulators in one pass over samples.
func accumulate(samples []Sample) map[string]*groupAccumulator {
	groups := make(map[string]*groupAccumulator)
	for _, s := range samples {
		g, ok := groups[s.Stratum]
		if !ok {
			g = &groupAccumulator{}
			groups[s.Stratum] = g
		}
		g.add(s.Value)
	}
	return groups
}

// GroupSummaries computes count, mean, std and median of the metric for
// every stratum present in samples, in a single pass per the group-by
// contract. Strata absent from the input are absent from the result.
func GroupSummaries(samples []Sample) map[string]datatypes.StratumSummary {
	groups := accumulate(samples)
	out := make(map[string]datatypes.StratumSummary, len(groups))
	for label, g := range groups {
		out[label] = datatypes.StratumSummary{
			Stratum: label,
			Count:   g.count,
			Mean:    g.mean(),
			Std:     g.std(),
			Median:  Median(g.values),
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Equity Gap
// -----------------------------------------------------------------------------

// EquityGap compares the best- and worst-performing strata of a metric.
//
// Description:
//
//	Groups the samples by stratum, picks the groups with the highest and
//	lowest mean ("best"/"worst" are directional, not value judgements),
//	and runs a two-sample Welch's t-test on the raw values of those two
//	groups. GapPct is nil when the worst mean is zero. When the test
//	cannot run (a group with fewer than two values, or zero variance in
//	both groups) the gap is still reported with PValue 1 and the
//	significance flag false.
//
//	Ties on the mean resolve to the lexicographically first stratum label,
//	keeping the result deterministic across runs.
//
// Inputs:
//   - samples: metric values with stratum labels, nulls already filtered.
//   - significanceLevel: alpha for the significance flag (typically 0.05).
//
// Outputs:
//   - *datatypes.EquityGapResult: nil when fewer than two non-empty strata
//     exist. That is an absent result, not an error.
func EquityGap(samples []Sample, significanceLevel float64) *datatypes.EquityGapResult {
	groups := accumulate(samples)
	if len(groups) < 2 {
		return nil
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best, worst := labels[0], labels[0]
	for _, label := range labels[1:] {
		if groups[label].mean() > groups[best].mean() {
			best = label
		}
		if groups[label].mean() < groups[worst].mean() {
			worst = label
		}
	}

	bestMean := groups[best].mean()
	worstMean := groups[worst].mean()
	gap := bestMean - worstMean

	result := &datatypes.EquityGapResult{
		BestGroup:      best,
		WorstGroup:     worst,
		BestGroupMean:  bestMean,
		WorstGroupMean: worstMean,
		Gap:            gap,
		PValue:         1,
	}
	if worstMean != 0 {
		result.GapPct = datatypes.Float64(gap / worstMean * 100)
	}

	test, err := WelchTTest(groups[best].values, groups[worst].values, significanceLevel)
	if err == nil {
		result.PValue = test.PValue
		result.Significant = test.Significant
	}
	return result
}
