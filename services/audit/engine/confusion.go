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
// Stratified Confusion Matrices
// -----------------------------------------------------------------------------

// minConfusionMembers is the smallest stratum for which a confusion matrix
// is meaningful; smaller strata are omitted rather than zero-filled.
const minConfusionMembers = 4

// StratumAxis selects the stratum label for a record. An empty string
// excludes the record from stratified aggregation.
type StratumAxis func(datatypes.ObservationRecord) string

// IncomeAxis labels records by income quintile ("Q1".."Q5").
func IncomeAxis(r datatypes.ObservationRecord) string {
	if !r.IncomeQuintile.Assigned() {
		return ""
	}
	return r.IncomeQuintile.String()
}

// MinorityAxis labels records by minority category.
func MinorityAxis(r datatypes.ObservationRecord) string {
	if !r.MinorityCategory.Assigned() {
		return ""
	}
	return string(r.MinorityCategory)
}

// StratifiedConfusion frames each stratum as a binary classification task
// and scores the predictor against it.
//
// Description:
//
//	Within each stratum the threshold is the median of the TRUE values of
//	that stratum alone. A record is positive when its value exceeds the
//	threshold; the true series defines the reference class, the predicted
//	series the asserted class. The threshold is never global: a global
//	median over quintile-defined strata is trivially separable (every
//	low-stratum member falls below it, every high-stratum member above)
//	and would measure the stratification, not the predictor.
//
//	Strata with fewer than minConfusionMembers records, or where the true
//	series yields a single class after thresholding, are omitted.
//
// Inputs:
//   - records: enriched observation records.
//   - axis: stratum selector (IncomeAxis or MinorityAxis).
//   - label: name for the positive class, carried into each result row.
//
// Outputs:
//   - []datatypes.ConfusionMatrix: one entry per surviving stratum, sorted
//     by stratum label for deterministic output.
func StratifiedConfusion(records []datatypes.ObservationRecord, axis StratumAxis, label string) []datatypes.ConfusionMatrix {
	type pair struct {
		trueVal float64
		predVal float64
	}
	groups := make(map[string][]pair)
	for _, r := range records {
		stratum := axis(r)
		if stratum == "" {
			continue
		}
		groups[stratum] = append(groups[stratum], pair{trueVal: r.TrueValue, predVal: r.PredictedValue})
	}

	labels := make([]string, 0, len(groups))
	for stratum := range groups {
		labels = append(labels, stratum)
	}
	sort.Strings(labels)

	out := make([]datatypes.ConfusionMatrix, 0, len(labels))
	for _, stratum := range labels {
		pairs := groups[stratum]
		if len(pairs) < minConfusionMembers {
			continue
		}

		trueVals := make([]float64, len(pairs))
		for i, p := range pairs {
			trueVals[i] = p.trueVal
		}
		threshold := Median(trueVals)

		var tp, fp, fn, tn, positives int
		for _, p := range pairs {
			actual := p.trueVal > threshold
			predicted := p.predVal > threshold
			if actual {
				positives++
			}
			switch {
			case actual && predicted:
				tp++
			case !actual && predicted:
				fp++
			case actual && !predicted:
				fn++
			default:
				tn++
			}
		}
		// single-class stratum after thresholding carries no signal
		if positives == 0 || positives == len(pairs) {
			continue
		}

		cm := datatypes.ConfusionMatrix{
			Stratum:        stratum,
			Label:          label,
			Threshold:      threshold,
			Members:        len(pairs),
			TruePositives:  tp,
			FalsePositives: fp,
			FalseNegatives: fn,
			TrueNegatives:  tn,
		}
		if tp+fp > 0 {
			cm.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			cm.Recall = float64(tp) / float64(tp+fn)
		}
		if cm.Precision+cm.Recall > 0 {
			cm.F1Score = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
		}
		cm.Accuracy = float64(tp+tn) / float64(len(pairs))
		out = append(out, cm)
	}
	return out
}
