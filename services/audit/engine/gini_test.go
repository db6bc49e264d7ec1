// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"errors"
	"testing"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// -----------------------------------------------------------------------------
// Gini Coefficient Tests
// -----------------------------------------------------------------------------

func TestGini(t *testing.T) {
	t.Run("equal distribution", func(t *testing.T) {
		g, err := Gini([]float64{10, 10, 10, 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g == nil {
			t.Fatal("expected a coefficient, got nil")
		}
		if *g >= 0.1 {
			t.Errorf("expected near-zero Gini for equal distribution, got %.4f", *g)
		}
	})

	t.Run("full concentration", func(t *testing.T) {
		g, err := Gini([]float64{0, 0, 0, 100})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g == nil {
			t.Fatal("expected a coefficient, got nil")
		}
		if *g <= 0.7 {
			t.Errorf("expected Gini > 0.7 for full concentration, got %.4f", *g)
		}
	})

	t.Run("bounds", func(t *testing.T) {
		g, err := Gini([]float64{5, 80, 12, 3, 44, 9})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *g < 0 || *g > 1 {
			t.Errorf("expected Gini in [0,1], got %.4f", *g)
		}
	})

	t.Run("empty yields nil", func(t *testing.T) {
		g, err := Gini(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g != nil {
			t.Errorf("expected nil for empty input, got %.4f", *g)
		}
	})

	t.Run("all zeros yields zero", func(t *testing.T) {
		g, err := Gini([]float64{0, 0, 0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g == nil || *g != 0 {
			t.Errorf("expected 0 for all-zero distribution, got %v", g)
		}
	})

	t.Run("negative value rejected", func(t *testing.T) {
		_, err := Gini([]float64{10, -5, 20})
		if !errors.Is(err, ErrNegativeValue) {
			t.Errorf("expected ErrNegativeValue, got %v", err)
		}
	})

	t.Run("input not mutated", func(t *testing.T) {
		input := []float64{30, 10, 20}
		if _, err := Gini(input); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if input[0] != 30 || input[1] != 10 || input[2] != 20 {
			t.Errorf("expected input untouched, got %v", input)
		}
	})
}

func TestGiniNullable(t *testing.T) {
	t.Run("nulls filtered before compute", func(t *testing.T) {
		g, err := GiniNullable([]*float64{nil, datatypes.Float64(10), nil, datatypes.Float64(10)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g == nil {
			t.Fatal("expected a coefficient, got nil")
		}
		if *g >= 0.1 {
			t.Errorf("expected near-zero Gini after filtering nulls, got %.4f", *g)
		}
	})

	t.Run("all null yields nil", func(t *testing.T) {
		g, err := GiniNullable([]*float64{nil, nil})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g != nil {
			t.Errorf("expected nil for all-null input, got %.4f", *g)
		}
	})
}
