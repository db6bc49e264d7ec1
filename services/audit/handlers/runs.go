// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/validation"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/runstore"
)

// ListRuns serves summaries of every stored audit run, newest first.
func ListRuns(store *runstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs, err := store.List(c.Request.Context())
		if err != nil {
			slog.Error("failed to list stored runs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stored runs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
	}
}

// GetRun serves one stored report by run ID.
func GetRun(store *runstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")
		if err := validation.ValidateRunID(runID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		rep, err := store.Get(c.Request.Context(), runID)
		if err != nil {
			if errors.Is(err, runstore.ErrRunNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			slog.Error("failed to load stored run", "run_id", runID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stored run"})
			return
		}
		c.JSON(http.StatusOK, rep)
	}
}

// DeleteRun removes one stored report by run ID.
func DeleteRun(store *runstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")
		if err := validation.ValidateRunID(runID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		slog.Info("Received a request to delete a stored run", "run_id", runID)

		if err := store.Delete(c.Request.Context(), runID); err != nil {
			if errors.Is(err, runstore.ErrRunNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			slog.Error("failed to delete stored run", "run_id", runID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete stored run"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_run_id": runID})
	}
}
