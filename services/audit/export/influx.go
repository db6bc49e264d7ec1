// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package export writes audit time series to InfluxDB.
//
// The crash audit produces yearly actual/reported/predicted sums per income
// quintile; this package turns those series into InfluxDB points so the bias
// trends can be charted next to other operational dashboards. The write API
// is injectable for testing.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

// crashMeasurement is the measurement name for exported crash series points.
const crashMeasurement = "crash_series"

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config holds InfluxDB connection settings.
type Config struct {
	// URL is the InfluxDB server base URL.
	URL string

	// Token is the API token. Required.
	Token string

	// Org is the InfluxDB organization.
	Org string

	// Bucket receives the exported points.
	Bucket string
}

// ConfigFromEnv reads connection settings from the environment.
//
// Description:
//
//	Reads INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, and INFLUXDB_BUCKET.
//	URL, org, and bucket fall back to local defaults; the token has no
//	default and must be set for Validate to pass.
//
// Outputs:
//
//	Config - Settings as read, with defaults applied.
func ConfigFromEnv() Config {
	cfg := Config{
		URL:    os.Getenv("INFLUXDB_URL"),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    os.Getenv("INFLUXDB_ORG"),
		Bucket: os.Getenv("INFLUXDB_BUCKET"),
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:8086"
	}
	if cfg.Org == "" {
		cfg.Org = "safe-t-ai"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "audit-series"
	}
	return cfg
}

// Validate checks that the configuration can open a client.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("influx url is required")
	}
	if c.Token == "" {
		return errors.New("influx token is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Sink
// -----------------------------------------------------------------------------

// Sink writes audit series to an InfluxDB bucket.
//
// Thread Safety: Safe for concurrent use; the blocking write API serializes
// writes internally.
type Sink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	logger *slog.Logger
}

// NewSink connects a sink to the configured InfluxDB server.
//
// Inputs:
//
//	cfg - Connection settings. Must pass Validate().
//	logger - Optional logger. Defaults to slog.Default().
//
// Outputs:
//
//	*Sink - Ready-to-use sink. Caller must call Close() when done.
//	error - Non-nil if the configuration is invalid.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	return &Sink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger: logger.With(slog.String("component", "export")),
	}, nil
}

// NewSinkWithWriter builds a sink over an existing write API.
//
// Description:
//
//	Used by tests to inject a recording writer. The returned sink has no
//	client, so Ping and WaitReady are no-ops and Close releases nothing.
func NewSinkWithWriter(w api.WriteAPIBlocking, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		write:  w,
		logger: logger.With(slog.String("component", "export")),
	}
}

// Ping checks server health.
//
// Outputs:
//
//	error - Non-nil if the server is unreachable or reports a failing status.
func (s *Sink) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("influx health status %q", health.Status)
	}
	return nil
}

// WaitReady polls server health until it passes or attempts run out.
//
// Inputs:
//
//	ctx - Context for cancellation between attempts.
//	attempts - Number of health checks to try. Must be positive.
//	delay - Pause between attempts.
//
// Outputs:
//
//	error - Non-nil if the server never became ready.
func (s *Sink) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	if s.client == nil {
		return nil
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = s.Ping(ctx)
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("influx not ready, retrying",
			slog.Int("attempt", i+1),
			slog.String("error", lastErr.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("influx not ready after %d attempts: %w", attempts, lastErr)
}

// Close releases the underlying client.
func (s *Sink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// -----------------------------------------------------------------------------
// Crash Series Export
// -----------------------------------------------------------------------------

// ExportCrashSeries writes one yearly point per series line for a run.
//
// Description:
//
//	Emits points under the crash_series measurement, tagged with the run ID
//	and the series name (quintile label or "overall"), with the yearly
//	actual/reported/predicted sums as fields. Points are timestamped at the
//	start of their year (UTC). An empty series writes nothing.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	runID - Audit run ID used as the run_id tag.
//	series - Yearly crash sums from the crash report.
//
// Outputs:
//
//	int - Number of points written.
//	error - Non-nil if the write fails.
func (s *Sink) ExportCrashSeries(ctx context.Context, runID string, series datatypes.CrashTimeSeries) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}

	points := crashPoints(runID, series)
	if len(points) == 0 {
		s.logger.Info("no crash series points to export", slog.String("run_id", runID))
		return 0, nil
	}

	if err := s.write.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("write crash series: %w", err)
	}

	s.logger.Info("crash series exported",
		slog.String("run_id", runID),
		slog.Int("points", len(points)))

	return len(points), nil
}

// crashPoints flattens a crash time series into InfluxDB points, quintile
// lines first (sorted by label), then the overall line.
func crashPoints(runID string, series datatypes.CrashTimeSeries) []*write.Point {
	labels := make([]string, 0, len(series.ByQuintile))
	for label := range series.ByQuintile {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var points []*write.Point
	for _, label := range labels {
		for _, pt := range series.ByQuintile[label] {
			points = append(points, crashPoint(runID, label, pt))
		}
	}
	for _, pt := range series.Overall {
		points = append(points, crashPoint(runID, "overall", pt))
	}
	return points
}

func crashPoint(runID, seriesName string, pt datatypes.CrashSeriesPoint) *write.Point {
	return influxdb2.NewPoint(
		crashMeasurement,
		map[string]string{
			"run_id": runID,
			"series": seriesName,
		},
		map[string]interface{}{
			"actual":    pt.Actual,
			"reported":  pt.Reported,
			"predicted": pt.Predicted,
		},
		time.Date(pt.Year, time.January, 1, 0, 0, 0, 0, time.UTC),
	)
}
