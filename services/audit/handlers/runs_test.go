// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/datatypes"
	"github.com/safe-t-ai/safe-t-ai.github.io/services/audit/runstore"
)

// ============================================================================
// Run Registry Tests
// ============================================================================

func TestListRuns_EmptyStore(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newTestRegistry(), openTestStore(t), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("List runs returned %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Runs  []runstore.RunSummary `json:"runs"`
		Count int                   `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse list response: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("Count = %d, want 0", body.Count)
	}
}

func TestListRuns_ShowsStoredRun(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put(context.Background(), testReport()); err != nil {
		t.Fatalf("Failed to store report: %v", err)
	}

	router := gin.New()
	SetupRoutes(router, newTestRegistry(), store, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("List runs returned %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Runs  []runstore.RunSummary `json:"runs"`
		Count int                   `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse list response: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("Count = %d, want 1", body.Count)
	}
	if body.Runs[0].RunID != "run-test-0001" {
		t.Errorf("RunID = %q, want %q", body.Runs[0].RunID, "run-test-0001")
	}
	if body.Runs[0].Scenario.ID != "durham-baseline" {
		t.Errorf("Scenario = %q, want %q", body.Runs[0].Scenario.ID, "durham-baseline")
	}
}

func TestGetRun_ReturnsStoredReport(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put(context.Background(), testReport()); err != nil {
		t.Fatalf("Failed to store report: %v", err)
	}

	router := gin.New()
	SetupRoutes(router, newTestRegistry(), store, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs/run-test-0001", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Get run returned %d, want %d", w.Code, http.StatusOK)
	}

	var rep datatypes.FullReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("Failed to parse run response: %v", err)
	}
	if rep.RunID != "run-test-0001" {
		t.Errorf("RunID = %q, want %q", rep.RunID, "run-test-0001")
	}
	if rep.Volume == nil {
		t.Error("Stored report lost its volume section")
	}
}

func TestGetRun_UnknownRun(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newTestRegistry(), openTestStore(t), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs/run-does-not-exist", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Get run returned %d, want %d", w.Code, http.StatusNotFound)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse error response: %v", err)
	}
	if body["error"] != "run not found" {
		t.Errorf("Error = %q, want %q", body["error"], "run not found")
	}
}

func TestGetRun_MalformedID(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newTestRegistry(), openTestStore(t), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs/run%20id%20%7C%3E%20drop()", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Get run returned %d, want %d", w.Code, http.StatusBadRequest)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse error response: %v", err)
	}
	if body["error"] != "invalid run id" {
		t.Errorf("Error = %q, want %q", body["error"], "invalid run id")
	}
}

func TestDeleteRun_RemovesStoredRun(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put(context.Background(), testReport()); err != nil {
		t.Fatalf("Failed to store report: %v", err)
	}

	router := gin.New()
	SetupRoutes(router, newTestRegistry(), store, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/runs/run-test-0001", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Delete run returned %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse delete response: %v", err)
	}
	if body["status"] != "success" {
		t.Errorf("Status = %q, want %q", body["status"], "success")
	}
	if body["deleted_run_id"] != "run-test-0001" {
		t.Errorf("Deleted run ID = %q, want %q", body["deleted_run_id"], "run-test-0001")
	}

	// The run should be gone now.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/runs/run-test-0001", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Get after delete returned %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteRun_UnknownRun(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newTestRegistry(), openTestStore(t), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/runs/run-does-not-exist", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Delete run returned %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteRun_MalformedID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put(context.Background(), testReport()); err != nil {
		t.Fatalf("Failed to store report: %v", err)
	}

	router := gin.New()
	SetupRoutes(router, newTestRegistry(), store, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/runs/run:run-test-0001", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Delete run returned %d, want %d", w.Code, http.StatusBadRequest)
	}

	// The stored run must survive the rejected request.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/runs/run-test-0001", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Get after rejected delete returned %d, want %d", w.Code, http.StatusOK)
	}
}
