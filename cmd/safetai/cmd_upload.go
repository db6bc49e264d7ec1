// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/safe-t-ai/safe-t-ai.github.io/cmd/safetai/gcs"
	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
)

// runUploadReports publishes a local directory of report bundles to GCS
// under a date-partitioned prefix.
func runUploadReports(cmd *cobra.Command, args []string) {
	localDir := expandHome(args[0])

	projectID := gcsProjectID
	if projectID == "" {
		projectID = os.Getenv("GCS_PROJECT_ID")
	}
	bucketName := gcsBucketName
	if bucketName == "" {
		bucketName = os.Getenv("GCS_BUCKET_NAME")
	}
	saKeyPath := gcsSAKeyPath
	if saKeyPath == "" {
		saKeyPath = os.Getenv("GCS_SA_KEY_PATH")
	}
	if projectID == "" || bucketName == "" || saKeyPath == "" {
		ux.Error("GCS upload needs --project, --bucket, and --sa-key (or GCS_PROJECT_ID, GCS_BUCKET_NAME, GCS_SA_KEY_PATH).")
		return
	}

	info, err := os.Stat(localDir)
	if err != nil || !info.IsDir() {
		ux.Error(fmt.Sprintf("%s is not a readable directory.", localDir))
		return
	}

	prefix := uploadPrefix
	if prefix == "" {
		prefix = fmt.Sprintf("reports/%s", time.Now().Format("2006-01-02"))
	}

	ctx := context.Background()
	client, err := gcs.NewClient(ctx, projectID, bucketName, expandHome(saKeyPath))
	if err != nil {
		slog.Error("Failed to create the GCS client", "error", err)
		return
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			slog.Warn("Failed to close the GCS client", "error", closeErr)
		}
	}()

	fmt.Printf("Uploading %s to gs://%s/%s...\n", localDir, bucketName, prefix)
	if err := client.UploadDir(ctx, localDir, prefix); err != nil {
		slog.Error("Upload failed", "error", err)
		return
	}

	ux.Success(fmt.Sprintf("Report bundle uploaded to gs://%s/%s", bucketName, prefix))
}
