// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"math"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Error Metrics
// -----------------------------------------------------------------------------

// ComputeErrorMetrics computes accuracy metrics between a true and a
// predicted series.
//
// Description:
//
//	Per-element error is predicted - true, so positive bias means the
//	predictor systematically overestimates. Percentage-based metrics
//	(MAPE, MeanPctError, Bias) are aggregated only over elements whose
//	true value is non-zero; PctSamples reports how many elements
//	contributed. RSquared is the squared Pearson correlation between true
//	and predicted and is 0 when fewer than two elements are present.
//
// Inputs:
//   - trueVals: ground-truth series.
//   - preds: predicted series, same length.
//
// Outputs:
//   - *datatypes.ErrorMetrics: the computed metrics.
//   - error: ErrEmptySeries for empty input, ErrLengthMismatch when the
//     series differ in length.
//
// Thread Safety: pure function, safe for concurrent use.
func ComputeErrorMetrics(trueVals, preds []float64) (*datatypes.ErrorMetrics, error) {
	if len(trueVals) != len(preds) {
		return nil, ErrLengthMismatch
	}
	n := len(trueVals)
	if n == 0 {
		return nil, ErrEmptySeries
	}

	var sumErr, sumAbs, sumSq float64
	var sumPct, sumAbsPct float64
	pctN := 0
	for i := 0; i < n; i++ {
		e := preds[i] - trueVals[i]
		sumErr += e
		sumAbs += math.Abs(e)
		sumSq += e * e
		if trueVals[i] != 0 {
			pct := e / trueVals[i] * 100
			sumPct += pct
			sumAbsPct += math.Abs(pct)
			pctN++
		}
	}

	m := &datatypes.ErrorMetrics{
		MAE:        sumAbs / float64(n),
		RMSE:       math.Sqrt(sumSq / float64(n)),
		MeanError:  sumErr / float64(n),
		Samples:    n,
		PctSamples: pctN,
	}
	if pctN > 0 {
		m.MAPE = sumAbsPct / float64(pctN)
		m.MeanPctError = sumPct / float64(pctN)
		m.Bias = m.MeanPctError
	}
	if n >= 2 {
		r, err := PearsonCorrelation(trueVals, preds)
		if err != nil {
			return nil, err
		}
		m.RSquared = r * r
	}
	return m, nil
}

// MetricsForRecords computes error metrics over the true/predicted pairs of
// a record set. See ComputeErrorMetrics for the aggregation rules.
func MetricsForRecords(records []datatypes.ObservationRecord) (*datatypes.ErrorMetrics, error) {
	trueVals := make([]float64, len(records))
	preds := make([]float64, len(records))
	for i, r := range records {
		trueVals[i] = r.TrueValue
		preds[i] = r.PredictedValue
	}
	return ComputeErrorMetrics(trueVals, preds)
}
