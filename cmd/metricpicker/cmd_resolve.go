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
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/metricpicker/services/config"
)

// defaultConcurrency bounds parallel model calls in `resolve`.
const defaultConcurrency = 4

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		catalogFile string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "resolve QUERY...",
		Short: "Resolve each query to a metric without executing it",
		Long: "Resolve each query to a metric without executing it.\n\n" +
			"Queries run concurrently. Output is JSON when stdout is not a terminal.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1, got %d", concurrency)
			}
			ctx := cmd.Context()
			logger := loggerFrom(ctx)

			a, err := newApp(ctx, overlayEnv(opts.getenv, map[string]string{config.EnvCatalogFile: catalogFile}), logger, needOrchestrator)
			if err != nil {
				return err
			}
			defer a.Close()

			results := make([]resolution, len(args))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(concurrency)
			for i, query := range args {
				g.Go(func() error {
					d, _ := a.orch.Resolve(gctx, query)
					results[i] = resolution{Query: query, Decision: d}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			logger.Debug("resolved queries", slog.Int("count", len(results)))
			out := cmd.OutOrStdout()
			return renderResolutions(out, results, isTerminal(out))
		},
	}
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "YAML catalog file to use instead of the semantic layer")
	cmd.Flags().IntVar(&concurrency, "concurrency", defaultConcurrency, "Maximum queries resolved at once")
	return cmd
}
