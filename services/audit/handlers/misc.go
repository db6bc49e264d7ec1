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
)

const serviceName = "safetai-audit"
const serviceVersion = "1.0.0"

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// GetInfo describes the available audits and their endpoints.
func GetInfo() gin.HandlerFunc {
	audits := []gin.H{
		{
			"id":          "volume",
			"name":        "Volume Estimation Equity Audit",
			"description": "Evaluates AI volume estimation tools for demographic bias",
			"status":      "active",
			"endpoints": []string{
				"/api/v1/census-tracts",
				"/api/v1/counter-locations",
				"/api/v1/volume/report",
				"/api/v1/volume/accuracy-by-income",
				"/api/v1/volume/accuracy-by-race",
				"/api/v1/volume/scatter-data",
				"/api/v1/volume/error-distribution",
				"/api/v1/volume/tract-errors",
			},
		},
		{
			"id":          "crash",
			"name":        "Crash Prediction Bias Audit",
			"description": "Evaluates crash risk predictions trained on under-reported data",
			"status":      "active",
			"endpoints":   []string{"/api/v1/crash/report"},
		},
		{
			"id":          "infrastructure",
			"name":        "Infrastructure Recommendation Audit",
			"description": "Evaluates AI-guided safety budget allocation for equity",
			"status":      "active",
			"endpoints":   []string{"/api/v1/infrastructure/report"},
		},
		{
			"id":          "demand",
			"name":        "Suppressed Demand Analysis",
			"description": "Evaluates demand models against infrastructure-suppressed trips",
			"status":      "active",
			"endpoints":   []string{"/api/v1/demand/report"},
		},
	}

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": serviceVersion,
			"audits":  audits,
		})
	}
}
