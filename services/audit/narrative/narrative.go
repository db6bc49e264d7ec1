// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package narrative drafts plain-language summaries of assembled audit
// reports via an OpenAI-compatible chat completion endpoint.
//
// The summarizer is optional: runs work without it, and the deterministic
// findings in each report section never depend on it. It stays disabled
// unless an API key is configured.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
)

const defaultModel = "gpt-4o-mini"

const systemPrompt = "You are a transportation equity analyst. Summarize the " +
	"audit results you are given in two or three short plain-language " +
	"paragraphs for city staff. Stick to the numbers provided, lead with the " +
	"most serious equity problems, and do not invent figures."

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config holds settings for the narrative summarizer.
type Config struct {
	// APIKey authenticates against the completion endpoint. The summarizer
	// is disabled while this is empty.
	APIKey string

	// Model is the completion model name. Defaults to gpt-4o-mini.
	Model string

	// BaseURL points at an OpenAI-compatible server. Empty uses the OpenAI
	// default.
	BaseURL string
}

// ConfigFromEnv reads summarizer settings from the environment.
//
// Description:
//
//	Reads OPENAI_API_KEY, OPENAI_MODEL, and OPENAI_BASE_URL. The model
//	defaults to gpt-4o-mini when unset. A missing key leaves the
//	summarizer disabled rather than failing.
//
// Outputs:
//
//	Config - Settings as read, with the model default applied.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return cfg
}

// Enabled reports whether the summarizer can run.
func (c Config) Enabled() bool {
	return c.APIKey != ""
}

// -----------------------------------------------------------------------------
// Summarizer
// -----------------------------------------------------------------------------

// chatCompleter is the slice of the OpenAI client the summarizer uses.
// Narrow so tests can inject a canned completion.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Summarizer drafts report narratives through a chat completion endpoint.
//
// Thread Safety: Safe for concurrent use.
type Summarizer struct {
	client chatCompleter
	model  string
	logger *slog.Logger
}

// NewSummarizer builds a summarizer from the given configuration.
//
// Inputs:
//
//	cfg - Summarizer settings. Enabled() must be true.
//	logger - Optional logger. Defaults to slog.Default().
//
// Outputs:
//
//	*Summarizer - Ready-to-use summarizer implementing report.Narrator.
//	error - Non-nil if no API key is configured.
func NewSummarizer(cfg Config, logger *slog.Logger) (*Summarizer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("narrative: api key not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	var client *openai.Client
	if cfg.BaseURL != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		oc.BaseURL = cfg.BaseURL
		client = openai.NewClientWithConfig(oc)
	} else {
		client = openai.NewClient(cfg.APIKey)
	}

	logger = logger.With(slog.String("component", "narrative"))
	logger.Info("narrative summarizer enabled",
		slog.String("model", model),
		slog.Bool("custom_endpoint", cfg.BaseURL != ""))

	return &Summarizer{client: client, model: model, logger: logger}, nil
}

// Narrate drafts a plain-language narrative for an assembled report.
//
// Description:
//
//	Digests the report's headline numbers and findings into a prompt and
//	requests a short summary. The digest is deterministic; only the
//	completion itself varies.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	report - The assembled report. Must be non-nil.
//
// Outputs:
//
//	string - The drafted narrative, whitespace-trimmed.
//	error - Non-nil if the completion call fails or returns no choices.
func (s *Summarizer) Narrate(ctx context.Context, report *datatypes.FullReport) (string, error) {
	if report == nil {
		return "", errors.New("report must not be nil")
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(report)},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	narrative := strings.TrimSpace(resp.Choices[0].Message.Content)

	s.logger.Debug("narrative drafted",
		slog.String("run_id", report.RunID),
		slog.Int("chars", len(narrative)))

	return narrative, nil
}

// -----------------------------------------------------------------------------
// Prompt Digest
// -----------------------------------------------------------------------------

// buildPrompt flattens the report's headline numbers and findings into the
// user prompt, one block per present domain.
func buildPrompt(r *datatypes.FullReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Audit of AI-generated transportation safety estimates for scenario %q (seed %d).\n",
		r.Scenario.ID, r.Seed)

	if r.Volume != nil {
		o := r.Volume.Overall
		fmt.Fprintf(&b, "\nTraffic volume: %d counter sites audited; overall MAPE %.1f%%; bias %.1f trips.\n",
			o.TotalCounters, o.Metrics.MAPE, o.Metrics.Bias)
		writeFindings(&b, r.Volume.Findings)
	}

	if r.Crash != nil {
		sum := r.Crash.Summary
		fmt.Fprintf(&b, "\nCrash risk: %.0f actual vs %.0f reported crashes across %d tracts; overall reporting rate %.0f%%.\n",
			sum.TotalActual, sum.TotalReported, sum.Tracts, sum.ReportingRate*100)
		writeFindings(&b, r.Crash.Findings)
	}

	if r.Infrastructure != nil {
		ai := r.Infrastructure.AIAllocation
		fmt.Fprintf(&b, "\nInfrastructure budget: AI-guided allocation funded %d projects for $%.0f of $%.0f.\n",
			len(ai.Records), ai.Budget.Allocated(), ai.Budget.Total)
		if ai.Equity.Gini != nil {
			fmt.Fprintf(&b, "Gini coefficient of funded costs: %.2f.\n", *ai.Equity.Gini)
		}
		writeFindings(&b, r.Infrastructure.Findings)
	}

	if r.Demand != nil {
		sum := r.Demand.Summary
		fmt.Fprintf(&b, "\nActive transportation demand: %.1f%% of potential demand suppressed across %d tracts (%d with high suppression).\n",
			sum.SuppressionRate, sum.Tracts, sum.HighSuppression)
		writeFindings(&b, r.Demand.Findings)
	}

	b.WriteString("\nWrite the summary now.")
	return b.String()
}

func writeFindings(b *strings.Builder, findings []datatypes.Finding) {
	for _, f := range findings {
		fmt.Fprintf(b, "- [%s] %s\n", f.Severity, f.Message)
	}
}
