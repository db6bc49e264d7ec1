// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine implements the statistical core of the audit service:
// descriptive statistics, quintile stratification, accuracy metrics,
// equity gaps with Welch significance testing, disparate impact ratios,
// Gini coefficients, and stratified confusion matrices.
//
// All functions are pure and safe for concurrent use. Statistical
// "no result" conditions (single stratum, zero denominators, all-null
// input) are reported as nil results, never as fabricated zeros.
package engine

import (
	"math"
	"sort"
)

// -----------------------------------------------------------------------------
// Descriptive Statistics
// -----------------------------------------------------------------------------

// Mean returns the arithmetic mean of xs, or 0 when xs is empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the sample variance (n-1 denominator) of xs, or 0 when
// fewer than two values are present.
func Variance(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := Mean(xs)
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return sumSq / float64(n-1)
}

// Std returns the sample standard deviation of xs.
func Std(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Median returns the median of xs without mutating the input, or 0 when xs
// is empty. For even-length input the two middle values are averaged.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, xs)
	sort.Float64s(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

// Percentile returns the p-th quantile of xs using linear interpolation
// between closest ranks, the same scheme the upstream census tooling uses
// for quintile breakpoints.
//
// Inputs:
//   - xs: the sample. It is copied and sorted internally.
//   - p: the quantile probability in [0,1]. p=0 yields the minimum and
//     p=1 the maximum.
//
// Outputs:
//   - float64: the interpolated quantile value.
//   - error: ErrEmptySeries when xs is empty, ErrInvalidProbability when p
//     is outside [0,1].
func Percentile(xs []float64, p float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptySeries
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, ErrInvalidProbability
	}
	cp := make([]float64, len(xs))
	copy(cp, xs)
	sort.Float64s(cp)
	if len(cp) == 1 {
		return cp[0], nil
	}
	rank := p * float64(len(cp)-1)
	lo := int(math.Floor(rank))
	if lo >= len(cp)-1 {
		return cp[len(cp)-1], nil
	}
	frac := rank - float64(lo)
	return cp[lo] + frac*(cp[lo+1]-cp[lo]), nil
}

// PearsonCorrelation returns the Pearson correlation coefficient between
// xs and ys.
//
// Outputs:
//   - float64: r in [-1,1]. When either series has zero variance the
//     coefficient is undefined and 0 is returned.
//   - error: ErrLengthMismatch when the series differ in length,
//     ErrInsufficientSamples when fewer than two pairs are present.
func PearsonCorrelation(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, ErrLengthMismatch
	}
	n := len(xs)
	if n < 2 {
		return 0, ErrInsufficientSamples
	}
	meanX := Mean(xs)
	meanY := Mean(ys)
	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, nil
	}
	return cov / math.Sqrt(varX*varY), nil
}

// -----------------------------------------------------------------------------
// Welch's T-Test
// -----------------------------------------------------------------------------

// TTestResult contains the outcome of a two-sample Welch's t-test.
type TTestResult struct {
	// TStatistic is the computed t-statistic.
	TStatistic float64 `json:"t_statistic"`

	// PValue is the two-tailed p-value.
	PValue float64 `json:"p_value"`

	// DegreesOfFreedom from the Welch-Satterthwaite equation.
	DegreesOfFreedom float64 `json:"degrees_of_freedom"`

	// Significant is true when PValue < SignificanceLevel.
	Significant bool `json:"significant"`

	// SignificanceLevel is the alpha threshold used (typically 0.05).
	SignificanceLevel float64 `json:"significance_level"`
}

// WelchTTest performs a two-sample Welch's t-test, which does not assume
// equal variances between the samples.
//
// Description:
//
//	Computes the t-statistic from the difference of sample means over the
//	pooled standard error, estimates degrees of freedom with the
//	Welch-Satterthwaite equation, and derives a two-tailed p-value from a
//	normal approximation of the t-distribution. The approximation is exact
//	in the limit and accurate to within ~0.01 for df >= 10, which is
//	sufficient for flagging equity gaps at alpha = 0.05.
//
// Inputs:
//   - sample1: first group's per-record error values.
//   - sample2: second group's per-record error values.
//   - significanceLevel: alpha for the significance flag (e.g. 0.05).
//
// Outputs:
//   - *TTestResult: the test outcome.
//   - error: ErrInsufficientSamples when either group has fewer than two
//     values, ErrZeroVariance when both groups have zero variance.
//
// Thread Safety: pure function, safe for concurrent use.
func WelchTTest(sample1, sample2 []float64, significanceLevel float64) (*TTestResult, error) {
	n1 := float64(len(sample1))
	n2 := float64(len(sample2))
	if n1 < 2 || n2 < 2 {
		return nil, ErrInsufficientSamples
	}

	mean1 := Mean(sample1)
	mean2 := Mean(sample2)
	var1 := Variance(sample1)
	var2 := Variance(sample2)

	se := math.Sqrt(var1/n1 + var2/n2)
	if se == 0 {
		return nil, ErrZeroVariance
	}

	t := (mean1 - mean2) / se
	df := welchSatterthwaite(var1, var2, n1, n2)
	p := tDistributionPValue(t, df)

	return &TTestResult{
		TStatistic:        t,
		PValue:            p,
		DegreesOfFreedom:  df,
		Significant:       p < significanceLevel,
		SignificanceLevel: significanceLevel,
	}, nil
}

// welchSatterthwaite estimates the effective degrees of freedom for the
// unequal-variances t-test.
func welchSatterthwaite(var1, var2, n1, n2 float64) float64 {
	num := math.Pow(var1/n1+var2/n2, 2)
	den := math.Pow(var1/n1, 2)/(n1-1) + math.Pow(var2/n2, 2)/(n2-1)
	if den == 0 {
		return n1 + n2 - 2
	}
	return num / den
}

// tDistributionPValue computes a two-tailed p-value for t with df degrees
// of freedom. For df >= 30 the t-distribution is effectively normal. For
// smaller df the statistic is rescaled by the t-distribution's excess
// variance, df/(df-2), before the normal lookup; the variance diverges
// below df=3, so df is floored there. Accuracy is within ~0.01 of the
// exact tail for df >= 10 and degrades, conservatively on the order of
// a few hundredths, toward the floor.
func tDistributionPValue(t, df float64) float64 {
	if df >= 30 {
		return 2 * (1 - normalCDF(math.Abs(t)))
	}
	if df < 3 {
		df = 3
	}
	adjustedT := t * math.Sqrt((df-2)/df)
	return 2 * (1 - normalCDF(math.Abs(adjustedT)))
}

// normalCDF is the cumulative distribution function of the standard normal.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
