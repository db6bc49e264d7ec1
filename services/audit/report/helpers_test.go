// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
)

// tract builds a census entity fixture.
func tract(id string, income, minority float64, population int) datatypes.GeographicEntity {
	return datatypes.GeographicEntity{
		ID:           id,
		Population:   population,
		MedianIncome: datatypes.Float64(income),
		PctMinority:  datatypes.Float64(minority),
		Lat:          36.0,
		Lon:          -78.9,
	}
}

// buildTestStrata stratifies the fixture entities, failing the test on error.
func buildTestStrata(t *testing.T, entities []datatypes.GeographicEntity, cfg datatypes.AuditConfig) *engine.EntityStrata {
	t.Helper()
	strata, err := engine.StratifyEntities(entities, cfg)
	require.NoError(t, err, "fixture stratification should not fail")
	return strata
}
