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

// GetCensusTracts serves the tract table of the current dataset.
func GetCensusTracts(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds := reg.Dataset()
		if ds == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no dataset loaded"})
			return
		}
		c.JSON(http.StatusOK, ds.Tracts)
	}
}

// GetCounterLocations serves the counter sites of the current dataset.
func GetCounterLocations(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds := reg.Dataset()
		if ds == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no dataset loaded"})
			return
		}
		c.JSON(http.StatusOK, ds.Counters)
	}
}
