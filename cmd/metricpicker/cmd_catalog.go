// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/metricpicker/services/config"
	"github.com/AleutianAI/metricpicker/services/journal"
)

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the metric catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.getenv, loggerFrom(ctx), needLayer)
			if err != nil {
				return err
			}
			defer a.Close()

			catalog, err := a.layer.ListMetrics(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return renderCatalog(out, catalog, isTerminal(out))
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent resolution decisions from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.getenv, loggerFrom(ctx), 0)
			if err != nil {
				return err
			}
			if a.cfg.JournalDir == "" {
				return fmt.Errorf("no journal to read: set %s to the directory `serve`, `mcp` and `resolve` write to", config.EnvJournalDir)
			}
			if err := a.openJournal(); err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.journal.Recent(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return renderHistory(out, entries, isTerminal(out))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", journal.DefaultRecentLimit, "Number of entries to show")
	return cmd
}
