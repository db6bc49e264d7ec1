// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"sort"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Gini Coefficient
// -----------------------------------------------------------------------------

// Gini computes the Gini inequality coefficient of a non-negative value
// distribution.
//
// Description:
//
//	Values are sorted ascending and the coefficient is computed with the
//	rank formula G = (2*sum(i*x_i))/(n*sum(x)) - (n+1)/n over 1-indexed
//	ranks i. Equal distributions yield ~0; full concentration in a single
//	element approaches (n-1)/n. An all-zero distribution is treated as
//	perfectly equal and yields 0.
//
// Outputs:
//   - *float64: the coefficient in [0,1], or nil for an empty input.
//   - error: ErrNegativeValue when any value is negative.
func Gini(values []float64) (*float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	sort.Float64s(cp)
	if cp[0] < 0 {
		return nil, ErrNegativeValue
	}

	n := float64(len(cp))
	var total, weighted float64
	for i, x := range cp {
		total += x
		weighted += float64(i+1) * x
	}
	if total == 0 {
		return datatypes.Float64(0), nil
	}
	g := (2*weighted)/(n*total) - (n+1)/n
	return datatypes.Float64(g), nil
}

// GiniNullable filters null values out of the sequence before computing the
// coefficient. Returns nil when the filtered sequence is empty.
func GiniNullable(values []*float64) (*float64, error) {
	filtered := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			filtered = append(filtered, *v)
		}
	}
	return Gini(filtered)
}
