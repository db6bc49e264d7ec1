// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers serves the audit report over HTTP.
//
// Handlers are gin.HandlerFunc factories taking their dependencies as
// arguments; SetupRoutes wires them onto a router. The served report and
// its input dataset live in a process-wide Registry, computed once at
// startup and replaced wholesale when a new run completes.
package handlers

import (
	"sync"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/loader"
)

// Registry caches the audit artifacts the service serves.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	report  *datatypes.FullReport
	dataset *loader.Dataset
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetReport replaces the served report.
func (r *Registry) SetReport(rep *datatypes.FullReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = rep
}

// Report returns the current report, or nil before the first run completes.
func (r *Registry) Report() *datatypes.FullReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report
}

// SetDataset replaces the served input dataset.
func (r *Registry) SetDataset(ds *loader.Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataset = ds
}

// Dataset returns the current input dataset, or nil when none is loaded.
func (r *Registry) Dataset() *loader.Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dataset
}
