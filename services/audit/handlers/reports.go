// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/telemetry"
)

// currentReport fetches the served report, answering 404 when no run has
// completed yet.
func currentReport(c *gin.Context, reg *Registry) (*datatypes.FullReport, bool) {
	rep := reg.Report()
	if rep == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no audit report available"})
		return nil, false
	}
	return rep, true
}

// volumeSection fetches the volume section, answering 404 when the run did
// not include the volume domain.
func volumeSection(c *gin.Context, reg *Registry) (*datatypes.VolumeReport, bool) {
	rep, ok := currentReport(c, reg)
	if !ok {
		return nil, false
	}
	if rep.Volume == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "volume audit not part of this run"})
		return nil, false
	}
	return rep.Volume, true
}

func recordServed(c *gin.Context, metrics *telemetry.Metrics, domain string) {
	if metrics == nil {
		return
	}
	metrics.ReportsServedTotal.Add(c.Request.Context(), 1, metric.WithAttributes(
		attribute.String("domain", domain),
	))
}

// GetFullReport serves the assembled report across all requested domains.
func GetFullReport(reg *Registry, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, ok := currentReport(c, reg)
		if !ok {
			return
		}
		recordServed(c, metrics, "full")
		c.JSON(http.StatusOK, rep)
	}
}

// GetVolumeReport serves the volume audit section.
func GetVolumeReport(reg *Registry, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		vol, ok := volumeSection(c, reg)
		if !ok {
			return
		}
		recordServed(c, metrics, string(datatypes.DomainVolume))
		c.JSON(http.StatusOK, vol)
	}
}

// GetCrashReport serves the crash audit section.
func GetCrashReport(reg *Registry, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, ok := currentReport(c, reg)
		if !ok {
			return
		}
		if rep.Crash == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "crash audit not part of this run"})
			return
		}
		recordServed(c, metrics, string(datatypes.DomainCrash))
		c.JSON(http.StatusOK, rep.Crash)
	}
}

// GetInfrastructureReport serves the infrastructure audit section.
func GetInfrastructureReport(reg *Registry, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, ok := currentReport(c, reg)
		if !ok {
			return
		}
		if rep.Infrastructure == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "infrastructure audit not part of this run"})
			return
		}
		recordServed(c, metrics, string(datatypes.DomainInfrastructure))
		c.JSON(http.StatusOK, rep.Infrastructure)
	}
}

// GetDemandReport serves the demand audit section.
func GetDemandReport(reg *Registry, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, ok := currentReport(c, reg)
		if !ok {
			return
		}
		if rep.Demand == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "demand audit not part of this run"})
			return
		}
		recordServed(c, metrics, string(datatypes.DomainDemand))
		c.JSON(http.StatusOK, rep.Demand)
	}
}

// GetAccuracyByIncome serves the volume accuracy rows by income quintile.
func GetAccuracyByIncome(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		vol, ok := volumeSection(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, vol.ByIncome)
	}
}

// GetAccuracyByRace serves the volume accuracy rows by minority category.
func GetAccuracyByRace(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		vol, ok := volumeSection(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, vol.ByRace)
	}
}

// GetScatterData serves the predicted-vs-actual scatter points.
func GetScatterData(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		vol, ok := volumeSection(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, vol.Scatter)
	}
}

// GetErrorDistribution serves the percent-error histogram.
func GetErrorDistribution(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		vol, ok := volumeSection(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, vol.ErrorHistogram)
	}
}

// GetTractErrors serves per-tract error aggregates for the map views.
func GetTractErrors(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		vol, ok := volumeSection(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, vol.EntityErrors)
	}
}
