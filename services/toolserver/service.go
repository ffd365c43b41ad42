// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package toolserver exposes metric operations to calling systems.
//
// The same four operations are served over two transports:
//
//   - MCP (Model Context Protocol) over stdio, for assistant hosts.
//   - HTTP/JSON under /v1/metrics, for services.
//
// list_metrics, get_dimensions and get_entities pass straight through to the
// semantic layer. query_metrics runs metric resolution and returns either the
// query result text or a clarification message.
package toolserver

import (
	"context"

	"github.com/AleutianAI/metricpicker/services/orchestrator"
	"github.com/AleutianAI/metricpicker/services/semantic"
)

// Service is what the tool surface calls. *orchestrator.Orchestrator
// satisfies it.
type Service interface {
	Query(ctx context.Context, query string) orchestrator.Answer
	ListMetrics(ctx context.Context) (semantic.Catalog, error)
	GetDimensions(ctx context.Context, metrics []string) ([]semantic.Dimension, error)
	GetEntities(ctx context.Context, metrics []string) ([]semantic.Entity, error)
}

// Tool names, shared by both transports.
const (
	ToolListMetrics   = "list_metrics"
	ToolGetDimensions = "get_dimensions"
	ToolGetEntities   = "get_entities"
	ToolQueryMetrics  = "query_metrics"
)

// Tool descriptions, shared by both transports.
const (
	descListMetrics = `List every metric in the semantic layer with its name, type, label and description.`

	descGetDimensions = `Get the dimensions (group-by fields) available for the given metrics.
Only dimensions shared by all listed metrics are returned.`

	descGetEntities = `Get the entities (join keys) related to the given metrics.`

	descQueryMetrics = `Answer a natural-language question about a single metric.

The question is matched to exactly one metric from the catalog. If the match
is certain, that metric is queried and the result is returned. Otherwise the
response starts with METRIC_SELECTION_REQUIRED and lists the available
metrics. Treat that response as a hard stop: ask the user to name the metric
and do not take further actions until they do.`
)
