// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package loader

import (
	"fmt"
	"sort"
	"time"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// DefaultMaxAgeDays caps dataset age for freshness checks.
const DefaultMaxAgeDays = 365

// -----------------------------------------------------------------------------
// Temporal Validation
// -----------------------------------------------------------------------------

// FreshnessCheck reports whether a dataset is recent enough to audit.
type FreshnessCheck struct {
	Valid   bool   `json:"valid"`
	AgeDays int    `json:"age_days"`
	Message string `json:"message"`
}

// ValidateFreshness checks dataset age against a day cap. A cap of zero or
// less falls back to DefaultMaxAgeDays.
func ValidateFreshness(fetchedAt time.Time, maxAgeDays int) FreshnessCheck {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	age := int(time.Since(fetchedAt).Hours() / 24)

	if age > maxAgeDays {
		return FreshnessCheck{
			Valid:   false,
			AgeDays: age,
			Message: fmt.Sprintf("Data is %d days old (max: %d)", age, maxAgeDays),
		}
	}
	return FreshnessCheck{
		Valid:   true,
		AgeDays: age,
		Message: fmt.Sprintf("Data is %d days old", age),
	}
}

// CoverageCheck reports whether a dated observation table spans the years
// an audit expects.
type CoverageCheck struct {
	Valid        bool  `json:"valid"`
	YearsPresent []int `json:"years_present"`
	MissingYears []int `json:"missing_years"`
}

// ValidateCoverage checks that every expected year appears in the records.
func ValidateCoverage(records []datatypes.ObservationRecord, expectedYears []int) CoverageCheck {
	present := make(map[int]bool, len(records))
	for _, r := range records {
		if r.Year != 0 {
			present[r.Year] = true
		}
	}

	check := CoverageCheck{}
	for year := range present {
		check.YearsPresent = append(check.YearsPresent, year)
	}
	sort.Ints(check.YearsPresent)

	for _, year := range expectedYears {
		if !present[year] {
			check.MissingYears = append(check.MissingYears, year)
		}
	}
	sort.Ints(check.MissingYears)

	check.Valid = len(check.MissingYears) == 0
	return check
}

// SplitCheck reports whether a train/test split leaks future observations
// into training.
type SplitCheck struct {
	Valid        bool   `json:"valid"`
	TrainMaxYear int    `json:"train_max_year"`
	TestMinYear  int    `json:"test_min_year"`
	Message      string `json:"message"`
}

// ValidateSplit checks a temporal split: every training year must precede
// every test year.
func ValidateSplit(train, test []datatypes.ObservationRecord) SplitCheck {
	check := SplitCheck{}
	for _, r := range train {
		if r.Year > check.TrainMaxYear {
			check.TrainMaxYear = r.Year
		}
	}
	for i, r := range test {
		if i == 0 || r.Year < check.TestMinYear {
			check.TestMinYear = r.Year
		}
	}

	if check.TrainMaxYear >= check.TestMinYear {
		check.Message = "Temporal leakage detected"
		return check
	}
	check.Valid = true
	check.Message = "Clean temporal split"
	return check
}
