// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	scenarioPath     string   // --config path to the scenario YAML
	domainFilter     []string // --domain overrides for the scenario's domain list
	storePathFlag    string   // --store override for the run store directory
	reportAsJSON     bool
	synthTracts      int
	synthCounters    int
	synthSeed        int64
	synthOut         string
	servePort        string
	gcsProjectID     string
	gcsBucketName    string
	gcsSAKeyPath     string
	uploadPrefix     string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "safetai",
		Short: "A cli to audit AI transportation-safety estimates for demographic bias",
		Long: `Safe-T audits AI-generated transportation-safety estimates against
				demographic ground truth: traffic volumes, crash risk, infrastructure
				budgets, and suppressed demand, stratified by income and race.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
			initLogging()
		},
	}

	// --- Audit ---
	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Run equity audits and inspect their reports",
	}
	auditRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the audit pipeline for a scenario and store the report",
		Run:   runAudit, // Defined in cmd_audit.go
	}
	auditReportCmd = &cobra.Command{
		Use:   "report [run_id]",
		Short: "Show the findings of a stored run (default: the newest)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runAuditReport, // Defined in cmd_audit.go
	}

	// --- Data ---
	dataCmd = &cobra.Command{
		Use:   "data",
		Short: "Generate and manage audit datasets",
	}
	dataSynthCmd = &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic tract and counter dataset to disk",
		Run:   runDataSynth, // Defined in cmd_data.go
	}

	// --- Stored Runs ---
	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Manage stored audit runs",
	}
	runsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Run:   runRunsList, // Defined in cmd_runs.go
	}
	runsShowCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "Print a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsShow, // Defined in cmd_runs.go
	}
	runsDeleteCmd = &cobra.Command{
		Use:   "delete [run_id]",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsDelete, // Defined in cmd_runs.go
	}

	// --- Export ---
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export audit results to external systems",
	}
	exportTimeseriesCmd = &cobra.Command{
		Use:   "timeseries [run_id]",
		Short: "Write the crash time series of a run to InfluxDB",
		Args:  cobra.ExactArgs(1),
		Run:   runExportTimeseries, // Defined in cmd_export.go
	}
	exportCSVCmd = &cobra.Command{
		Use:   "csv [run_id]",
		Short: "Export volume accuracy by income quintile to CSV",
		Args:  cobra.ExactArgs(1),
		Run:   runExportCSV, // Defined in cmd_export.go
	}

	// --- GCS ---
	uploadCmd = &cobra.Command{
		Use:   "upload",
		Short: "Upload data to Google Cloud Storage (GCS)",
	}
	uploadReportsCmd = &cobra.Command{
		Use:   "reports [local_directory]",
		Short: "Uploads report bundles from a local directory to GCS",
		Args:  cobra.ExactArgs(1),
		Run:   runUploadReports, // Defined in cmd_upload.go
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run an audit and serve its report over HTTP",
		Run:   runServe, // Defined in cmd_serve.go
	}
)

// init runs when the Go program starts
func init() {
	// Global personality flag
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output personality: full, standard, minimal, machine (default: auto-detect)")

	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditRunCmd)
	auditRunCmd.Flags().StringVar(&scenarioPath, "config", "", "Path to scenario configuration file (YAML, default: built-in baseline)")
	auditRunCmd.Flags().StringSliceVar(&domainFilter, "domain", nil, "Audit only these domains (volume, crash, infrastructure, demand)")
	auditRunCmd.Flags().StringVar(&storePathFlag, "store", "", "Run store directory (default: $AUDIT_STORE_PATH or ~/.safetai/runs)")
	auditCmd.AddCommand(auditReportCmd)
	auditReportCmd.Flags().BoolVar(&reportAsJSON, "json", false, "Print the full report as JSON")
	auditReportCmd.Flags().StringVar(&storePathFlag, "store", "", "Run store directory (default: $AUDIT_STORE_PATH or ~/.safetai/runs)")

	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataSynthCmd)
	dataSynthCmd.Flags().IntVar(&synthTracts, "tracts", 60, "Number of census tracts to generate")
	dataSynthCmd.Flags().IntVar(&synthCounters, "counters", 15, "Number of counter sites to generate")
	dataSynthCmd.Flags().Int64Var(&synthSeed, "seed", 42, "Deterministic generation seed")
	dataSynthCmd.Flags().StringVar(&synthOut, "out", ".", "Output directory for tracts.json and counters.json")

	rootCmd.AddCommand(runsCmd)
	runsCmd.PersistentFlags().StringVar(&storePathFlag, "store", "", "Run store directory (default: $AUDIT_STORE_PATH or ~/.safetai/runs)")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)

	rootCmd.AddCommand(exportCmd)
	exportCmd.PersistentFlags().StringVar(&storePathFlag, "store", "", "Run store directory (default: $AUDIT_STORE_PATH or ~/.safetai/runs)")
	exportCmd.AddCommand(exportTimeseriesCmd)
	exportCmd.AddCommand(exportCSVCmd)
	exportCSVCmd.Flags().StringP("output", "o", "", "Output filename (default: audit_{RunID}.csv)")

	rootCmd.AddCommand(uploadCmd)
	uploadCmd.AddCommand(uploadReportsCmd)
	uploadReportsCmd.Flags().StringVar(&gcsProjectID, "project", "", "GCS project ID (default: $GCS_PROJECT_ID)")
	uploadReportsCmd.Flags().StringVar(&gcsBucketName, "bucket", "", "GCS bucket name (default: $GCS_BUCKET_NAME)")
	uploadReportsCmd.Flags().StringVar(&gcsSAKeyPath, "sa-key", "", "Path to the service account key (default: $GCS_SA_KEY_PATH)")
	uploadReportsCmd.Flags().StringVar(&uploadPrefix, "prefix", "", "Object prefix (default: reports/{YYYY-MM-DD})")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP port (default: $AUDIT_PORT or 5000)")
	serveCmd.Flags().StringVar(&scenarioPath, "config", "", "Path to scenario configuration file (YAML, default: built-in baseline)")
	serveCmd.Flags().StringVar(&storePathFlag, "store", "", "Run store directory (default: $AUDIT_STORE_PATH or ~/.safetai/runs)")
}
