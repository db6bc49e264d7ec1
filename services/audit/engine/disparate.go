// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Disparate Impact
// -----------------------------------------------------------------------------

// disparateImpactThreshold is the "80% rule" from US disparate-impact
// doctrine: a protected-group rate below 80% of the reference-group rate
// signals potential discrimination.
const disparateImpactThreshold = 0.8

// DisparateImpact computes the ratio of a protected group's favorable rate
// to a reference group's rate. Returns nil when the reference rate is zero,
// since the ratio is undefined rather than infinite.
func DisparateImpact(protectedRate, referenceRate float64) *datatypes.DisparateImpactResult {
	if referenceRate == 0 {
		return nil
	}
	ratio := protectedRate / referenceRate
	return &datatypes.DisparateImpactResult{
		Ratio:         ratio,
		Passes80Rule:  ratio >= disparateImpactThreshold,
		ProtectedRate: protectedRate,
		ReferenceRate: referenceRate,
	}
}
