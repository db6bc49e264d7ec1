// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "errors"

// Sentinel errors for the statistics engine. Statistical "no result"
// conditions (too few strata, zero denominators, all-null input) are NOT
// errors; they surface as nil results per the audit contract. The errors
// below mark malformed input that no policy can interpret.
var (
	// ErrEmptySeries indicates an empty input sequence where at least one
	// value is required.
	ErrEmptySeries = errors.New("empty input series")

	// ErrLengthMismatch indicates true/predicted series of different lengths.
	ErrLengthMismatch = errors.New("series length mismatch")

	// ErrInsufficientSamples indicates too few samples for a statistical test.
	ErrInsufficientSamples = errors.New("insufficient samples for statistical test")

	// ErrZeroVariance indicates both samples have zero variance, making the
	// test statistic undefined.
	ErrZeroVariance = errors.New("zero variance in both samples")

	// ErrInvalidProbability indicates a percentile probability outside [0,1].
	ErrInvalidProbability = errors.New("probability must be in [0,1]")

	// ErrNegativeValue indicates a negative value in a sequence that must be
	// non-negative (Gini input).
	ErrNegativeValue = errors.New("negative value in non-negative sequence")
)
