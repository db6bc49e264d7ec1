// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/runstore"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/telemetry"
)

// SetupRoutes registers every audit endpoint on the router.
//
// The run-registry routes are only registered when a store is configured;
// the /metrics route only when the Prometheus exporter is active. metrics
// may be nil, which disables per-domain serving counters.
func SetupRoutes(router *gin.Engine, reg *Registry, store *runstore.Store, metrics *telemetry.Metrics) {
	router.GET("/health", HealthCheck)

	if mh := telemetry.MetricsHandler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}

	// API version 1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", GetInfo())
		v1.GET("/census-tracts", GetCensusTracts(reg))
		v1.GET("/counter-locations", GetCounterLocations(reg))
		v1.GET("/report", GetFullReport(reg, metrics))

		volume := v1.Group("/volume")
		{
			volume.GET("/report", GetVolumeReport(reg, metrics))
			volume.GET("/accuracy-by-income", GetAccuracyByIncome(reg))
			volume.GET("/accuracy-by-race", GetAccuracyByRace(reg))
			volume.GET("/scatter-data", GetScatterData(reg))
			volume.GET("/error-distribution", GetErrorDistribution(reg))
			volume.GET("/tract-errors", GetTractErrors(reg))
		}

		v1.GET("/crash/report", GetCrashReport(reg, metrics))
		v1.GET("/infrastructure/report", GetInfrastructureReport(reg, metrics))
		v1.GET("/demand/report", GetDemandReport(reg, metrics))

		// Run registry routes
		if store != nil {
			runs := v1.Group("/runs")
			{
				runs.GET("", ListRuns(store))
				runs.GET("/:runId", GetRun(store))
				runs.DELETE("/:runId", DeleteRun(store))
			}
		}
	}
}
