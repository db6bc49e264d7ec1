// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package loader reads audit input tables and generates synthetic ones.
//
// Two tables feed an audit: census tracts (GeographicEntity rows) and
// ground-truth counter sites. Both load from CSV or JSON, keyed by file
// extension, and both accept the column spellings of upstream census
// extracts (tract_id, total_population, daily_volume) alongside the
// canonical ones. A scenario that asks for synthetic data skips files
// entirely and generates a seeded Durham-shaped dataset instead.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// Dataset bundles the input tables of one audit run.
type Dataset struct {
	Tracts   []datatypes.GeographicEntity
	Counters []datatypes.CounterSite

	// LoadedAt feeds freshness validation.
	LoadedAt time.Time
}

// Resolve turns a scenario's dataset spec into loaded tables.
//
// Description:
//
//	Synthetic specs generate tracts and counters from the scenario seed;
//	the counter count falls back to DefaultSyntheticCounters when unset.
//	File specs load the tracts table and, when a path is given, the
//	counters table.
//
// Inputs:
//   - spec: Dataset block of a validated scenario.
//   - seed: Scenario seed; drives synthetic generation only.
//
// Outputs:
//   - *Dataset - Loaded or generated tables.
//   - error - Non-nil on read or parse failure.
func Resolve(spec datatypes.DatasetSpec, seed int64) (*Dataset, error) {
	if spec.Synthetic.Enabled() {
		tracts := GenerateTracts(spec.Synthetic.Tracts, seed)
		n := spec.Synthetic.Counters
		if n <= 0 {
			n = DefaultSyntheticCounters
		}
		return &Dataset{
			Tracts:   tracts,
			Counters: GenerateCounters(tracts, n, seed),
			LoadedAt: time.Now().UTC(),
		}, nil
	}

	tracts, err := LoadTracts(spec.TractsPath)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{Tracts: tracts, LoadedAt: tableTimestamp(spec.TractsPath)}
	if spec.CountersPath != "" {
		ds.Counters, err = LoadCounters(spec.CountersPath)
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// tableTimestamp dates a file-backed dataset by its table's modification
// time, so freshness checks see the age of the extract rather than the
// load. Falls back to now if the file cannot be statted.
func tableTimestamp(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now().UTC()
	}
	return info.ModTime().UTC()
}

// -----------------------------------------------------------------------------
// Tract Table
// -----------------------------------------------------------------------------

// tractRow is the permissive decode shape for one tract record. Upstream
// census extracts spell the ID and population columns differently.
type tractRow struct {
	Geoid           string   `json:"geoid"`
	TractID         string   `json:"tract_id"`
	Population      *float64 `json:"population"`
	TotalPopulation *float64 `json:"total_population"`
	MedianIncome    *float64 `json:"median_income"`
	PctMinority     *float64 `json:"pct_minority"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
}

// LoadTracts reads a census tract table from a CSV or JSON file.
//
// Description:
//
//	Census sentinel incomes (negative values stand for "not reported")
//	become nil incomes, and zero-population rows are dropped, matching how
//	the upstream extract pipeline cleans the same data. Rows without an ID
//	fail the load.
//
// Inputs:
//   - path: Table file; format keyed by extension (.csv or .json).
//
// Outputs:
//   - []datatypes.GeographicEntity - Cleaned tract rows, input order.
//   - error - Non-nil on read, parse, or empty-table failure.
func LoadTracts(path string) ([]datatypes.GeographicEntity, error) {
	rows, err := readTractRows(path)
	if err != nil {
		return nil, err
	}

	out := make([]datatypes.GeographicEntity, 0, len(rows))
	for i, row := range rows {
		id := row.Geoid
		if id == "" {
			id = row.TractID
		}
		if id == "" {
			return nil, fmt.Errorf("loader: tract row %d in %s has no geoid", i+1, path)
		}

		pop := 0
		if row.Population != nil {
			pop = int(*row.Population)
		} else if row.TotalPopulation != nil {
			pop = int(*row.TotalPopulation)
		}
		if pop <= 0 {
			continue
		}

		income := row.MedianIncome
		if income != nil && *income < 0 {
			income = nil
		}

		out = append(out, datatypes.GeographicEntity{
			ID:           id,
			Population:   pop,
			MedianIncome: income,
			PctMinority:  row.PctMinority,
			Lat:          row.Lat,
			Lon:          row.Lon,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("loader: no usable tract rows in %s", path)
	}
	return out, nil
}

func readTractRows(path string) ([]tractRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var rows []tractRow
		if err := readJSON(path, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	case ".csv":
		return readTractCSV(path)
	default:
		return nil, fmt.Errorf("loader: unsupported table format %q (want .csv or .json)", filepath.Ext(path))
	}
}

func readTractCSV(path string) ([]tractRow, error) {
	records, idx, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	rows := make([]tractRow, 0, len(records))
	for i, rec := range records {
		row := tractRow{
			Geoid:   stringField(rec, idx, "geoid"),
			TractID: stringField(rec, idx, "tract_id"),
		}
		if row.Population, err = floatField(rec, idx, "population"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		}
		if row.TotalPopulation, err = floatField(rec, idx, "total_population"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		}
		if row.MedianIncome, err = floatField(rec, idx, "median_income"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		}
		if row.PctMinority, err = floatField(rec, idx, "pct_minority"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		}
		if v, err := floatField(rec, idx, "lat"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		} else if v != nil {
			row.Lat = *v
		}
		if v, err := floatField(rec, idx, "lon"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		} else if v != nil {
			row.Lon = *v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// -----------------------------------------------------------------------------
// Counter Table
// -----------------------------------------------------------------------------

// counterRow is the permissive decode shape for one counter record.
type counterRow struct {
	CounterID   string   `json:"counter_id"`
	Geoid       string   `json:"geoid"`
	TractID     string   `json:"tract_id"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	BaseVolume  *float64 `json:"base_volume"`
	DailyVolume *float64 `json:"daily_volume"`
	Source      string   `json:"source"`
	Type        string   `json:"type"`
}

// LoadCounters reads a ground-truth counter table from a CSV or JSON file.
// Legacy "type" labels map onto Source: "real" becomes "observed", anything
// else "synthetic".
func LoadCounters(path string) ([]datatypes.CounterSite, error) {
	rows, err := readCounterRows(path)
	if err != nil {
		return nil, err
	}

	out := make([]datatypes.CounterSite, 0, len(rows))
	for i, row := range rows {
		if row.CounterID == "" {
			return nil, fmt.Errorf("loader: counter row %d in %s has no counter_id", i+1, path)
		}
		entityID := row.Geoid
		if entityID == "" {
			entityID = row.TractID
		}

		volume := 0.0
		if row.BaseVolume != nil {
			volume = *row.BaseVolume
		} else if row.DailyVolume != nil {
			volume = *row.DailyVolume
		}
		if volume <= 0 {
			return nil, fmt.Errorf("loader: counter %s in %s has no positive volume", row.CounterID, path)
		}

		source := row.Source
		if source == "" {
			if row.Type == "real" {
				source = "observed"
			} else {
				source = "synthetic"
			}
		}

		out = append(out, datatypes.CounterSite{
			ID:         row.CounterID,
			EntityID:   entityID,
			Lat:        row.Lat,
			Lon:        row.Lon,
			BaseVolume: volume,
			Source:     source,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("loader: no counter rows in %s", path)
	}
	return out, nil
}

func readCounterRows(path string) ([]counterRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var rows []counterRow
		if err := readJSON(path, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	case ".csv":
		return readCounterCSV(path)
	default:
		return nil, fmt.Errorf("loader: unsupported table format %q (want .csv or .json)", filepath.Ext(path))
	}
}

func readCounterCSV(path string) ([]counterRow, error) {
	records, idx, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	rows := make([]counterRow, 0, len(records))
	for i, rec := range records {
		row := counterRow{
			CounterID: stringField(rec, idx, "counter_id"),
			Geoid:     stringField(rec, idx, "geoid"),
			TractID:   stringField(rec, idx, "tract_id"),
			Source:    stringField(rec, idx, "source"),
			Type:      stringField(rec, idx, "type"),
		}
		if row.BaseVolume, err = floatField(rec, idx, "base_volume"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		}
		if row.DailyVolume, err = floatField(rec, idx, "daily_volume"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		}
		if v, err := floatField(rec, idx, "lat"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		} else if v != nil {
			row.Lat = *v
		}
		if v, err := floatField(rec, idx, "lon"); err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", path, i+2, err)
		} else if v != nil {
			row.Lon = *v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// -----------------------------------------------------------------------------
// File Helpers
// -----------------------------------------------------------------------------

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loader: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("loader: parse %s: %w", path, err)
	}
	return nil
}

// readCSV returns the data records and a lower-cased header index.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("loader: parse %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("loader: %s is empty", path)
	}

	idx := make(map[string]int, len(all[0]))
	for i, name := range all[0] {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return all[1:], idx, nil
}

func stringField(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// floatField parses an optional numeric column; a missing column or blank
// cell is nil, not an error.
func floatField(rec []string, idx map[string]int, name string) (*float64, error) {
	s := stringField(rec, idx, name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &v, nil
}
