// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command metricpicker resolves natural-language metric questions against a
// semantic layer catalog and exposes the result as MCP and HTTP tools.
//
// Usage:
//
//	metricpicker serve   [--addr :8080]
//	metricpicker mcp
//	metricpicker resolve [--catalog file.yaml] [--concurrency 4] QUERY...
//	metricpicker metrics
//	metricpicker history [--limit 20]
//
// Configuration comes from METRICPICKER_CONFIG (YAML) and the environment.
// Logs always go to stderr.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootOptions holds the persistent flags.
type rootOptions struct {
	logLevel  string
	logFormat string
	getenv    func(string) string
}

// newRootCmd builds the command tree. getenv is os.Getenv outside tests.
func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &rootOptions{getenv: getenv}

	cmd := &cobra.Command{
		Use:           "metricpicker",
		Short:         "Pick the metric a question refers to, or ask for clarification",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			setLogger(cmd, logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newResolveCmd(opts),
		newMetricsCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Getenv)
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
