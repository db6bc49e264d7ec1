// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/safe-t-ai/safe-t-ai.github.io/pkg/logging"
)

// appLogger is the process-wide logger, built once in PersistentPreRun and
// flushed after the command finishes.
var appLogger *logging.Logger

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	err := rootCmd.Execute()
	if appLogger != nil {
		_ = appLogger.Close()
	}
	if err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// initLogging builds the CLI logger and installs it as the slog default so
// the audit packages inherit it. Console output goes to stderr; the full
// JSON trail lands under SAFETAI_LOG_DIR when set.
func initLogging() {
	appLogger = logging.New(logging.Config{
		Level:   logLevelFromEnv(),
		Service: "cli",
		LogDir:  os.Getenv("SAFETAI_LOG_DIR"),
	})
	slog.SetDefault(appLogger.Slog())
}

func logLevelFromEnv() logging.Level {
	switch strings.ToLower(os.Getenv("SAFETAI_LOG_LEVEL")) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
