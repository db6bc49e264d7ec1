// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package runstore persists completed audit reports in an embedded BadgerDB
// instance.
//
// Each report is stored as a JSON value keyed by its run ID, so the HTTP
// service and the CLI can list, fetch, and delete past runs without a
// database server. In-memory mode backs the tests.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

var tracer = otel.Tracer("safetai.audit.runstore")

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrStoreClosed is returned when operations are called on a closed store.
	ErrStoreClosed = errors.New("run store is closed")

	// ErrRunNotFound is returned when no report exists for the requested run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNilReport is returned when attempting to store a nil report.
	ErrNilReport = errors.New("report must not be nil")

	// ErrMissingRunID is returned when a report carries no run ID.
	ErrMissingRunID = errors.New("report has no run id")
)

// runKeyPrefix scopes report keys within the database.
const runKeyPrefix = "run:"

func runKey(runID string) []byte {
	return []byte(runKeyPrefix + runID)
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// RunSummary is a listing row for a stored report.
type RunSummary struct {
	RunID       string                     `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Scenario    datatypes.ScenarioMetadata `json:"scenario"`
	Seed        int64                      `json:"seed"`
	Domains     []datatypes.Domain         `json:"domains"`
}

// Store persists completed audit reports keyed by run ID.
//
// Description:
//
//	Wraps an embedded BadgerDB. Values are the JSON encoding of
//	datatypes.FullReport. Every operation checks its context before
//	touching the database.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens a report store with the given configuration.
//
// Description:
//
//	Opens the underlying BadgerDB (creating the directory for persistent
//	stores) and starts the GC runner if GCInterval is configured.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the database cannot be opened.
//
// Thread Safety: The returned *Store is safe for concurrent use.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "runstore"))

	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		s.gc.start()
	}

	logger.Info("run store opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory))

	return s, nil
}

// Put stores a report under its run ID, replacing any previous version.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked before the write.
//	report - The assembled report. Must be non-nil with a run ID.
//
// Outputs:
//
//	error - Non-nil if validation, encoding, or the write fails.
func (s *Store) Put(ctx context.Context, report *datatypes.FullReport) error {
	if report == nil {
		return ErrNilReport
	}
	if report.RunID == "" {
		return ErrMissingRunID
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	ctx, span := tracer.Start(ctx, "runstore.Put",
		trace.WithAttributes(attribute.String("run_id", report.RunID)))
	defer span.End()

	data, err := json.Marshal(report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return fmt.Errorf("encode report: %w", err)
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(runKey(report.RunID), data)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("store report %s: %w", report.RunID, err)
	}

	span.SetAttributes(attribute.Int("report_bytes", len(data)))

	s.logger.Debug("report stored",
		slog.String("run_id", report.RunID),
		slog.Int("bytes", len(data)))

	return nil
}

// Get loads the report stored under runID.
//
// Outputs:
//
//	*datatypes.FullReport - The decoded report.
//	error - ErrRunNotFound if no report exists for runID.
func (s *Store) Get(ctx context.Context, runID string) (*datatypes.FullReport, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	ctx, span := tracer.Start(ctx, "runstore.Get",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	var report *datatypes.FullReport
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var r datatypes.FullReport
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("decode report %s: %w", runID, err)
			}
			report = &r
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, ErrRunNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "read failed")
		}
		return nil, err
	}

	return report, nil
}

// List returns summaries of all stored reports, newest first.
//
// Description:
//
//	Iterates every stored report and projects the listing fields. Reports
//	generated at the same instant sort by run ID for a stable order.
//
// Outputs:
//
//	[]RunSummary - One row per stored report. Empty if the store is empty.
//	error - Non-nil if iteration or decoding fails.
func (s *Store) List(ctx context.Context) ([]RunSummary, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	ctx, span := tracer.Start(ctx, "runstore.List")
	defer span.End()

	var summaries []RunSummary
	prefix := []byte(runKeyPrefix)
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				var r datatypes.FullReport
				if err := json.Unmarshal(val, &r); err != nil {
					return fmt.Errorf("decode report %s: %w", key, err)
				}
				summaries = append(summaries, RunSummary{
					RunID:       r.RunID,
					GeneratedAt: r.GeneratedAt,
					Scenario:    r.Scenario,
					Seed:        r.Seed,
					Domains:     r.Domains(),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("list reports: %w", err)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].GeneratedAt.Equal(summaries[j].GeneratedAt) {
			return summaries[i].GeneratedAt.After(summaries[j].GeneratedAt)
		}
		return summaries[i].RunID < summaries[j].RunID
	})

	span.SetAttributes(attribute.Int("run_count", len(summaries)))

	return summaries, nil
}

// Delete removes the report stored under runID.
//
// Outputs:
//
//	error - ErrRunNotFound if no report exists for runID.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	ctx, span := tracer.Start(ctx, "runstore.Delete",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(runID)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		} else if err != nil {
			return err
		}
		return txn.Delete(runKey(runID))
	})
	if err != nil {
		if !errors.Is(err, ErrRunNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
			return fmt.Errorf("delete report %s: %w", runID, err)
		}
		return err
	}

	s.logger.Info("report deleted", slog.String("run_id", runID))

	return nil
}

// Close stops garbage collection and closes the database.
//
// Description:
//
//	Safe to call multiple times; subsequent calls are no-ops.
//
// Outputs:
//
//	error - Non-nil if the database close fails.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	if s.gc != nil {
		s.gc.stop()
	}

	s.logger.Info("run store closed")

	return s.db.Close()
}

// -----------------------------------------------------------------------------
// Transaction Helpers
// -----------------------------------------------------------------------------

// update executes fn within a read-write transaction, committing if fn
// returns nil.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}

	return txn.Commit()
}

// view executes fn within a read-only transaction.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
