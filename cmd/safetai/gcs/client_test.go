// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// NewClient Tests
// ============================================================================

func TestNewClient_NonExistentSAKeyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "safet-audit", "safet-reports", "/nonexistent/path/to/key.json")
	if err == nil {
		t.Fatal("NewClient with non-existent SA key should return error")
	}
	if !strings.Contains(err.Error(), "service account key not found") {
		t.Errorf("Error should mention SA key not found, got: %v", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/to/key.json") {
		t.Errorf("Error should contain the path, got: %v", err)
	}
}

func TestNewClient_EmptyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "safet-audit", "safet-reports", "")
	if err == nil {
		t.Fatal("NewClient with empty SA key path should return error")
	}
}

func TestNewClient_InvalidCredentialsFile(t *testing.T) {
	ctx := context.Background()

	// Create a temporary file with invalid JSON
	tmpDir := t.TempDir()
	invalidKeyPath := filepath.Join(tmpDir, "invalid_key.json")
	err := os.WriteFile(invalidKeyPath, []byte("not valid json"), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err = NewClient(ctx, "safet-audit", "safet-reports", invalidKeyPath)
	if err == nil {
		t.Fatal("NewClient with invalid credentials file should return error")
	}
	if !strings.Contains(err.Error(), "failed to create GCS storage client") {
		t.Errorf("Error should mention failed to create client, got: %v", err)
	}
}

func TestNewClient_DirectoryInsteadOfFile(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	// Try to use a directory as the credentials file
	_, err := NewClient(ctx, "safet-audit", "safet-reports", tmpDir)
	if err == nil {
		t.Fatal("NewClient with directory as SA key should return error")
	}
}

func TestNewClient_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	// Even with canceled context, the SA key check happens first
	_, err := NewClient(ctx, "safet-audit", "safet-reports", "/nonexistent/key.json")
	if err == nil {
		t.Fatal("Should still return error for non-existent key")
	}
	// The error should be about the key file, not context cancellation
	if !strings.Contains(err.Error(), "service account key not found") {
		t.Errorf("Expected SA key error, got: %v", err)
	}
}

// ============================================================================
// Close Tests
// ============================================================================

func TestClient_Close_NilStorageClient(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "safet-audit",
		BucketName:    "safet-reports",
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close with nil storage client should be a no-op, got: %v", err)
	}
}

// ============================================================================
// UploadFile Tests (error paths that don't require GCS connection)
// ============================================================================

func TestClient_UploadFile_NonExistentLocalFile(t *testing.T) {
	// Create a client struct directly without a real storage client.
	// This tests the local file validation before any GCS operations.
	client := &Client{
		storageClient: nil,
		ProjectId:     "safet-audit",
		BucketName:    "safet-reports",
	}

	ctx := context.Background()
	err := client.UploadFile(ctx, "/nonexistent/report.json", "reports/report.json")
	if err == nil {
		t.Fatal("UploadFile with non-existent local file should return error")
	}
	if !strings.Contains(err.Error(), "failed to open the local file") {
		t.Errorf("Error should mention failed to open file, got: %v", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/report.json") {
		t.Errorf("Error should contain the path, got: %v", err)
	}
}

func TestClient_UploadFile_EmptyPath(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "safet-audit",
		BucketName:    "safet-reports",
	}

	ctx := context.Background()
	err := client.UploadFile(ctx, "", "reports/report.json")
	if err == nil {
		t.Fatal("UploadFile with empty local path should return error")
	}
}

// ============================================================================
// UploadDir Tests (error paths)
// ============================================================================

func TestClient_UploadDir_NonExistentDirectory(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "safet-audit",
		BucketName:    "safet-reports",
	}

	ctx := context.Background()
	err := client.UploadDir(ctx, "/nonexistent/directory/path", "reports/2025-08-25")
	if err == nil {
		t.Fatal("UploadDir with non-existent directory should return error")
	}
}

func TestClient_UploadDir_EmptyPath(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "safet-audit",
		BucketName:    "safet-reports",
	}

	ctx := context.Background()
	err := client.UploadDir(ctx, "", "reports/2025-08-25")
	if err == nil {
		t.Fatal("UploadDir with empty path should return error")
	}
}

// ============================================================================
// Content Type Tests
// ============================================================================

func TestContentTypeFor(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"audit_run.json", "application/json"},
		{"nested/dir/AUDIT.JSON", "application/json"},
		{"quintiles.csv", "text/csv"},
		{"summary.html", "text/html; charset=utf-8"},
		{"notes.txt", "text/plain; charset=utf-8"},
		{"archive.tar.gz", "application/octet-stream"},
		{"noextension", "application/octet-stream"},
	}

	for _, tc := range cases {
		if got := contentTypeFor(tc.path); got != tc.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

// ============================================================================
// Client Fields Tests
// ============================================================================

func TestClient_Fields(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "safet-audit-123",
		BucketName:    "safet-reports-456",
	}

	if client.ProjectId != "safet-audit-123" {
		t.Errorf("ProjectId = %q, want %q", client.ProjectId, "safet-audit-123")
	}
	if client.BucketName != "safet-reports-456" {
		t.Errorf("BucketName = %q, want %q", client.BucketName, "safet-reports-456")
	}
}

// ============================================================================
// Integration Tests (require real GCS credentials)
// These tests are skipped by default but document how to test with real GCS
// ============================================================================

func integrationEnv(t *testing.T) (keyPath, projectID, bucketName string) {
	t.Helper()
	keyPath = os.Getenv("GCS_TEST_SA_KEY_PATH")
	projectID = os.Getenv("GCS_TEST_PROJECT_ID")
	bucketName = os.Getenv("GCS_TEST_BUCKET_NAME")

	if keyPath == "" || projectID == "" || bucketName == "" {
		t.Skip("Skipping integration test: GCS_TEST_SA_KEY_PATH, GCS_TEST_PROJECT_ID, and GCS_TEST_BUCKET_NAME not set")
	}
	return keyPath, projectID, bucketName
}

func TestNewClient_Integration(t *testing.T) {
	keyPath, projectID, bucketName := integrationEnv(t)

	ctx := context.Background()
	client, err := NewClient(ctx, projectID, bucketName, keyPath)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if client.ProjectId != projectID {
		t.Errorf("ProjectId = %q, want %q", client.ProjectId, projectID)
	}
	if client.BucketName != bucketName {
		t.Errorf("BucketName = %q, want %q", client.BucketName, bucketName)
	}
}

func TestClient_UploadFile_Integration(t *testing.T) {
	keyPath, projectID, bucketName := integrationEnv(t)

	ctx := context.Background()
	client, err := NewClient(ctx, projectID, bucketName, keyPath)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	// Create a temp file to upload
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test_upload.json")
	err = os.WriteFile(testFile, []byte(`{"run_id":"integration-test"}`), 0644)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	err = client.UploadFile(ctx, testFile, "test/integration_test_upload.json")
	if err != nil {
		t.Errorf("UploadFile failed: %v", err)
	}
}

func TestClient_UploadDir_Integration(t *testing.T) {
	keyPath, projectID, bucketName := integrationEnv(t)

	ctx := context.Background()
	client, err := NewClient(ctx, projectID, bucketName, keyPath)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	// Create a temp directory with a nested layout
	tmpDir := t.TempDir()
	err = os.WriteFile(filepath.Join(tmpDir, "report.json"), []byte(`{"run_id":"r1"}`), 0644)
	if err != nil {
		t.Fatalf("Failed to create test file 1: %v", err)
	}
	sub := filepath.Join(tmpDir, "extracts")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	err = os.WriteFile(filepath.Join(sub, "quintiles.csv"), []byte("quintile,mae\nQ1,12.5\n"), 0644)
	if err != nil {
		t.Fatalf("Failed to create test file 2: %v", err)
	}

	err = client.UploadDir(ctx, tmpDir, "test/integration_dir_upload")
	if err != nil {
		t.Errorf("UploadDir failed: %v", err)
	}
}
