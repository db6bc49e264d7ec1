// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package simulate

import (
	"errors"
	"math"
	"sort"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
)

var (
	// ErrInsufficientYears reports a crash table without a training window
	// and a held-out year.
	ErrInsufficientYears = errors.New("simulate: ridge evaluation needs at least two distinct years")

	// ErrSingularSystem reports normal equations that cannot be solved.
	ErrSingularSystem = errors.New("simulate: ridge normal equations are singular")
)

// DefaultRidgeAlpha is the L2 penalty used when none is configured.
const DefaultRidgeAlpha = 1.0

// ridgeFeatureCount is the fixed width of the crash feature table: median
// income, pct minority, population, mean past crashes.
const ridgeFeatureCount = 4

// CrashPrediction is one tract's held-out-year evaluation from the trained
// variant.
type CrashPrediction struct {
	EntityID  string  `json:"geoid"`
	Year      int     `json:"year"`
	Actual    float64 `json:"actual_crashes"`
	Predicted float64 `json:"predicted_crashes"`
	Error     float64 `json:"prediction_error"`
	AbsError  float64 `json:"prediction_error_abs"`

	// ErrorPct divides by Actual+1 so zero-crash tracts stay finite.
	ErrorPct float64 `json:"prediction_error_pct"`
}

// RidgeCrashPredictor trains a closed-form ridge regression on the
// historical window of a crash table and scores the held-out final year.
//
// Features are median income, pct minority, population, and the tract's
// mean crash count over the training window. That history column is also
// the training target, so the fitted model largely echoes past patterns;
// the audit measures how the echo degrades per quintile in the held-out
// year. Missing feature values are filled with training-window medians,
// and every column is normalized with the training mean and sample
// standard deviation.
type RidgeCrashPredictor struct {
	// Alpha is the L2 penalty. Zero or negative falls back to
	// DefaultRidgeAlpha.
	Alpha float64
}

// Evaluate fits on all years but the last and scores the last.
//
// Inputs:
//   - obs: Tract-year crash observations; only the Actual series is read.
//   - entities: Demographics for the observed tracts. Tracts absent from
//     the slice contribute median-filled feature rows.
//
// Outputs:
//   - []CrashPrediction - One per held-out-year observation, in input
//     order.
//   - error - ErrInsufficientYears or ErrSingularSystem.
func (p RidgeCrashPredictor) Evaluate(obs []CrashObservation, entities []datatypes.GeographicEntity) ([]CrashPrediction, error) {
	alpha := p.Alpha
	if alpha <= 0 {
		alpha = DefaultRidgeAlpha
	}

	yearSet := make(map[int]struct{})
	for _, o := range obs {
		yearSet[o.Year] = struct{}{}
	}
	if len(yearSet) < 2 {
		return nil, ErrInsufficientYears
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)
	testYear := years[len(years)-1]

	// Per-tract crash history over the training window.
	histSum := make(map[string]float64)
	histN := make(map[string]int)
	for _, o := range obs {
		if o.Year == testYear {
			continue
		}
		histSum[o.EntityID] += o.Actual
		histN[o.EntityID]++
	}

	byID := make(map[string]datatypes.GeographicEntity, len(entities))
	for _, ent := range entities {
		byID[ent.ID] = ent
	}

	// One training row per tract with history, in first-seen order.
	trainRows := make([]ridgeRow, 0, len(histSum))
	seen := make(map[string]struct{}, len(histSum))
	for _, o := range obs {
		if o.Year == testYear {
			continue
		}
		if _, dup := seen[o.EntityID]; dup {
			continue
		}
		seen[o.EntityID] = struct{}{}

		ent, known := byID[o.EntityID]
		avg := histSum[o.EntityID] / float64(histN[o.EntityID])
		trainRows = append(trainRows, featureRow(ent, known, avg, true))
	}

	medians := columnMedians(trainRows)
	for i := range trainRows {
		fillRow(&trainRows[i], medians)
	}

	means, stds := columnStats(trainRows)
	design := normalizeRows(trainRows, means, stds)

	y := make([]float64, len(trainRows))
	for i, row := range trainRows {
		y[i] = row.feats[3]
	}

	coefs, intercept, err := ridgeFit(design, y, alpha)
	if err != nil {
		return nil, err
	}

	var preds []CrashPrediction
	for _, o := range obs {
		if o.Year != testYear {
			continue
		}

		ent, known := byID[o.EntityID]
		avg, hasHist := 0.0, false
		if histN[o.EntityID] > 0 {
			avg = histSum[o.EntityID] / float64(histN[o.EntityID])
			hasHist = true
		}
		row := featureRow(ent, known, avg, hasHist)
		fillRow(&row, medians)

		pred := intercept
		for i := 0; i < ridgeFeatureCount; i++ {
			if stds[i] == 0 {
				continue
			}
			pred += coefs[i] * (row.feats[i] - means[i]) / stds[i]
		}
		pred = math.Max(0, pred)

		diff := pred - o.Actual
		preds = append(preds, CrashPrediction{
			EntityID:  o.EntityID,
			Year:      o.Year,
			Actual:    o.Actual,
			Predicted: pred,
			Error:     diff,
			AbsError:  math.Abs(diff),
			ErrorPct:  math.Abs(diff) / (o.Actual + 1) * 100,
		})
	}
	return preds, nil
}

// -----------------------------------------------------------------------------
// Feature Table
// -----------------------------------------------------------------------------

type ridgeRow struct {
	feats   [ridgeFeatureCount]float64
	present [ridgeFeatureCount]bool
}

func featureRow(ent datatypes.GeographicEntity, known bool, avgPast float64, hasHist bool) ridgeRow {
	var row ridgeRow

	if ent.MedianIncome != nil {
		row.feats[0], row.present[0] = *ent.MedianIncome, true
	}
	if ent.PctMinority != nil {
		row.feats[1], row.present[1] = *ent.PctMinority, true
	}
	if known {
		row.feats[2], row.present[2] = float64(ent.Population), true
	}
	if hasHist {
		row.feats[3], row.present[3] = avgPast, true
	}
	return row
}

// columnMedians computes the per-column median over present values. A
// column with no present values keeps median zero.
func columnMedians(rows []ridgeRow) [ridgeFeatureCount]float64 {
	var medians [ridgeFeatureCount]float64
	for i := 0; i < ridgeFeatureCount; i++ {
		var vals []float64
		for _, row := range rows {
			if row.present[i] {
				vals = append(vals, row.feats[i])
			}
		}
		if len(vals) > 0 {
			medians[i] = engine.Median(vals)
		}
	}
	return medians
}

func fillRow(row *ridgeRow, medians [ridgeFeatureCount]float64) {
	for i := 0; i < ridgeFeatureCount; i++ {
		if !row.present[i] {
			row.feats[i], row.present[i] = medians[i], true
		}
	}
}

func columnStats(rows []ridgeRow) (means, stds []float64) {
	means = make([]float64, ridgeFeatureCount)
	stds = make([]float64, ridgeFeatureCount)
	for i := 0; i < ridgeFeatureCount; i++ {
		col := make([]float64, len(rows))
		for r, row := range rows {
			col[r] = row.feats[i]
		}
		means[i] = engine.Mean(col)
		stds[i] = engine.Std(col)
	}
	return means, stds
}

// normalizeRows centers and scales each column; a constant column
// contributes nothing to the fit.
func normalizeRows(rows []ridgeRow, means, stds []float64) [][]float64 {
	out := make([][]float64, len(rows))
	for r, row := range rows {
		vec := make([]float64, ridgeFeatureCount)
		for i := 0; i < ridgeFeatureCount; i++ {
			if stds[i] == 0 {
				continue
			}
			vec[i] = (row.feats[i] - means[i]) / stds[i]
		}
		out[r] = vec
	}
	return out
}

// -----------------------------------------------------------------------------
// Closed-Form Fit
// -----------------------------------------------------------------------------

// ridgeFit solves (XᵀX + alpha·I)β = Xᵀ(y - ȳ) and returns the
// coefficients with ȳ as intercept. The design matrix arrives
// column-centered, so the intercept reduces to the target mean.
func ridgeFit(x [][]float64, y []float64, alpha float64) ([]float64, float64, error) {
	ybar := engine.Mean(y)

	a := make([][]float64, ridgeFeatureCount)
	for i := range a {
		a[i] = make([]float64, ridgeFeatureCount)
	}
	b := make([]float64, ridgeFeatureCount)

	for r, row := range x {
		yc := y[r] - ybar
		for i := 0; i < ridgeFeatureCount; i++ {
			b[i] += row[i] * yc
			for j := 0; j < ridgeFeatureCount; j++ {
				a[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < ridgeFeatureCount; i++ {
		a[i][i] += alpha
	}

	coefs, err := solveLinear(a, b)
	if err != nil {
		return nil, 0, err
	}
	return coefs, ybar, nil
}

// solveLinear solves the square system a·x = b by Gaussian elimination with
// partial pivoting, mutating both arguments.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, ErrSingularSystem
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}
