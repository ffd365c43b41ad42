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
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/metricpicker/services/config"
	"github.com/AleutianAI/metricpicker/services/journal"
	"github.com/AleutianAI/metricpicker/services/llm"
	"github.com/AleutianAI/metricpicker/services/orchestrator"
	"github.com/AleutianAI/metricpicker/services/picker"
	"github.com/AleutianAI/metricpicker/services/semantic"
)

// app is the wired process. Components a command does not need stay nil.
type app struct {
	cfg     *config.Config
	layer   semantic.Layer
	engine  *picker.Engine
	db      *badger.DB
	journal *journal.BadgerJournal
	orch    *orchestrator.Orchestrator
	logger  *slog.Logger
}

// needs selects the components newApp builds.
type needs uint8

const (
	needLayer needs = 1 << iota
	needEngine
	needJournal
	needHTTP

	// needOrchestrator is everything query_metrics touches.
	needOrchestrator = needLayer | needEngine | needJournal
)

// configParts is the configuration that must validate for n.
func (n needs) configParts() config.Part {
	var parts config.Part
	if n&needLayer != 0 {
		parts |= config.PartSemanticLayer
	}
	if n&needEngine != 0 {
		parts |= config.PartModel
	}
	if n&needHTTP != 0 {
		parts |= config.PartHTTP
	}
	return parts
}

// overlayEnv returns a lookup that prefers non-empty overrides to getenv.
// Flags are applied this way so they pass through config validation.
func overlayEnv(getenv func(string) string, overrides map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := overrides[key]; ok && v != "" {
			return v
		}
		return getenv(key)
	}
}

// newApp loads configuration and wires the components in n.
//
// Description:
//
//	Only the settings of the requested components are validated, so
//	`history` runs without model credentials and `metrics` without a model.
//	The semantic layer is a FileSource when a catalog file is configured and
//	the dbt GraphQL client otherwise. The journal lives in JournalDir, or in
//	memory when that is empty. The orchestrator is built when the layer and
//	the engine both are.
//
// Inputs:
//
//	ctx    - Used for loading AWS configuration.
//	getenv - Environment lookup, usually overlaid with flag values.
//	logger - Process logger.
//	n      - Components to build.
//
// Outputs:
//
//	*app  - The wired application. Call Close when done.
//	error - Non-nil if configuration is invalid or a component fails to open.
func newApp(ctx context.Context, getenv func(string) string, logger *slog.Logger, n needs) (*app, error) {
	cfg, err := config.LoadFor(getenv, n.configParts())
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", slog.Any("config", cfg))

	a := &app{cfg: cfg, logger: logger}

	if n&needLayer != 0 {
		if a.layer, err = newLayer(cfg, logger); err != nil {
			return nil, err
		}
	}

	if n&needEngine != 0 {
		gateway, err := llm.NewGateway(ctx, cfg.GatewaySettings(), logger)
		if err != nil {
			return nil, fmt.Errorf("creating model gateway: %w", err)
		}
		a.engine = picker.NewEngine(gateway, cfg.ModelTimeout, logger)
	}

	if n&needJournal != 0 {
		if cfg.JournalDir == "" {
			logger.Info("decision journal is in memory; set " + config.EnvJournalDir + " to keep it")
		}
		if err := a.openJournal(); err != nil {
			return nil, err
		}
	}

	if a.layer != nil && a.engine != nil {
		var rec journal.Recorder
		if a.journal != nil {
			rec = a.journal
		}
		a.orch = orchestrator.New(a.layer, a.engine, rec, logger)
	}
	return a, nil
}

func newLayer(cfg *config.Config, logger *slog.Logger) (semantic.Layer, error) {
	if cfg.CatalogFile != "" {
		src, err := semantic.NewFileSource(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		logger.Info("using file catalog", slog.String("path", cfg.CatalogFile))
		return src, nil
	}
	client, err := semantic.NewGraphQLClient(cfg.GraphQLConfig(), logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// openJournal opens the journal in cfg.JournalDir, in memory when empty.
func (a *app) openJournal() error {
	db, err := journal.OpenDB(a.cfg.JournalDir)
	if err != nil {
		return err
	}
	j, err := journal.NewBadgerJournal(db, journal.DefaultTTL, a.logger)
	if err != nil {
		_ = db.Close()
		return err
	}
	a.db, a.journal = db, j
	return nil
}

// Close releases the journal database, if one was opened.
func (a *app) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close journal", slog.String("error", err.Error()))
	}
}
