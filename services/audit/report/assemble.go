// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report assembles audit domain results into the full equity report.
//
// The four Build functions each turn one domain's simulated observations
// into its report section; the Runner wires simulation and assembly
// together, runs requested domains concurrently, and tags the result with a
// run ID. All Build functions are deterministic given their inputs, so a
// scenario seed fully determines the report.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/engine"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/simulate"
)

var tracer = otel.Tracer("safetai.audit.report")

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Narrator drafts a plain-language narrative for an assembled report. The
// narrative is cosmetic; findings never depend on it.
type Narrator interface {
	Narrate(ctx context.Context, rep *datatypes.FullReport) (string, error)
}

// Runner executes audit scenarios.
//
// Thread Safety: safe for concurrent use; Run shares no mutable state
// between calls.
type Runner struct {
	Logger *slog.Logger

	// Narrator, when set, drafts the report narrative after assembly.
	// Narrator failures are logged and otherwise ignored.
	Narrator Narrator
}

// Run executes every domain the scenario requests and assembles the full
// report.
//
// Description:
//
//	Entities are stratified once; each requested domain then simulates and
//	builds its section concurrently. Every domain seeds its own generator
//	from the scenario seed, so concurrency does not perturb results and
//	domain subsets reproduce the numbers of a full run. The first domain
//	error cancels the rest and fails the run.
//
// Inputs:
//   - ctx: Cancellation and tracing context.
//   - scenario: Validated scenario; its config block drives everything.
//   - entities: Census entities for the audit area.
//   - counters: Ground-truth counter sites; required only for the volume
//     domain.
//
// Outputs:
//   - *datatypes.FullReport - Assembled report with one section per
//     requested domain.
//   - error - Stratification failure or the first domain failure.
func (r *Runner) Run(ctx context.Context, scenario *datatypes.AuditScenario, entities []datatypes.GeographicEntity, counters []datatypes.CounterSite) (*datatypes.FullReport, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := scenario.Config
	domains := scenario.DomainSet()

	ctx, span := tracer.Start(ctx, "audit.Run",
		trace.WithAttributes(
			attribute.String("scenario.id", scenario.Metadata.ID),
			attribute.Int64("audit.seed", cfg.Seed),
			attribute.Int("audit.entities", len(entities)),
			attribute.Int("audit.domains", len(domains)),
		),
	)
	defer span.End()

	strata, err := engine.StratifyEntities(entities, cfg)
	if err != nil {
		return nil, fmt.Errorf("report: stratify entities: %w", err)
	}

	rep := &datatypes.FullReport{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Scenario:    scenario.Metadata,
		Seed:        cfg.Seed,
	}

	logger.Info("audit run started",
		slog.String("run_id", rep.RunID),
		slog.String("scenario", scenario.Metadata.ID),
		slog.Int64("seed", cfg.Seed),
		slog.Int("entities", len(entities)),
		slog.Int("counters", len(counters)),
	)

	start := time.Now()
	g, gCtx := errgroup.WithContext(ctx)
	for _, domain := range domains {
		domain := domain
		g.Go(func() error {
			_, domainSpan := tracer.Start(gCtx, "audit."+string(domain))
			defer domainSpan.End()

			if err := gCtx.Err(); err != nil {
				return err
			}
			if err := r.runDomain(domain, rep, entities, counters, strata, cfg); err != nil {
				logger.Error("audit domain failed",
					slog.String("run_id", rep.RunID),
					slog.String("domain", string(domain)),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if r.Narrator != nil {
		narrative, err := r.Narrator.Narrate(ctx, rep)
		if err != nil {
			logger.Warn("narrative generation failed",
				slog.String("run_id", rep.RunID),
				slog.String("error", err.Error()),
			)
		} else {
			rep.Narrative = narrative
		}
	}

	logger.Info("audit run finished",
		slog.String("run_id", rep.RunID),
		slog.Int("domains", len(domains)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return rep, nil
}

// runDomain simulates and builds one domain section. Each domain owns a
// fresh generator seeded from the scenario, so sections never share draws.
func (r *Runner) runDomain(domain datatypes.Domain, rep *datatypes.FullReport, entities []datatypes.GeographicEntity, counters []datatypes.CounterSite, strata *engine.EntityStrata, cfg datatypes.AuditConfig) error {
	rng := simulate.NewRand(cfg.Seed)

	switch domain {
	case datatypes.DomainVolume:
		sim := simulate.NewVolumeSimulator(&cfg)
		obs := sim.Simulate(counters, entities, strata, rng)
		vol, err := BuildVolume(obs, entities, strata, cfg)
		if err != nil {
			return err
		}
		rep.Volume = vol

	case datatypes.DomainCrash:
		sim := simulate.NewCrashSimulator(&cfg)
		obs := sim.Generate(entities, rng)
		sim.ApplyReportingBias(obs, entities, rng)
		sim.PredictFromReported(obs, strata, rng)
		crash, err := BuildCrash(obs, entities, strata, cfg)
		if err != nil {
			return err
		}
		rep.Crash = crash

	case datatypes.DomainInfrastructure:
		sim := simulate.NewDangerSimulator(&cfg)
		scores := sim.Scores(entities, rng)
		aiPriorities := sim.AIPriorities(scores, entities, rng)
		needPriorities := simulate.NeedPriorities(scores)
		infra, err := BuildInfrastructure(scores, aiPriorities, needPriorities, entities, strata, cfg)
		if err != nil {
			return err
		}
		rep.Infrastructure = infra

	case datatypes.DomainDemand:
		sim := simulate.NewDemandSimulator(&cfg)
		obs := sim.Simulate(entities, rng)
		demand, err := BuildDemand(obs, entities, strata, cfg)
		if err != nil {
			return err
		}
		rep.Demand = demand

	default:
		return fmt.Errorf("report: unknown audit domain %q", domain)
	}
	return nil
}
