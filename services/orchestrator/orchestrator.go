// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator connects metric resolution to the semantic layer.
//
// QueryMetrics is the boundary operation behind the query_metrics tool: it
// lists the catalog, resolves the query to at most one metric and, only on
// a match, runs the semantic-layer query for that metric. Without a match it
// returns a clarification message and executes nothing.
package orchestrator

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/metricpicker/services/journal"
	"github.com/AleutianAI/metricpicker/services/llm"
	"github.com/AleutianAI/metricpicker/services/picker"
	"github.com/AleutianAI/metricpicker/services/semantic"
)

var tracer = otel.Tracer("metricpicker.orchestrator")

// Resolver picks at most one metric for a query. *picker.Engine satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, catalog semantic.Catalog, query string) picker.Decision
	Model() string
}

// Orchestrator runs the query_metrics flow and the catalog pass-throughs.
//
// # Thread Safety
//
// Safe for concurrent use if its collaborators are.
type Orchestrator struct {
	layer    semantic.Layer
	resolver Resolver
	recorder journal.Recorder
	logger   *slog.Logger
}

// New creates an Orchestrator.
//
// # Inputs
//
//   - layer: Semantic-layer catalog source and query executor. Must not be nil.
//   - resolver: Metric resolver. Must not be nil.
//   - recorder: Decision journal. Nil disables journaling.
//   - logger: Logger. May be nil.
//
// # Outputs
//
//   - *Orchestrator: Ready to use. Never nil.
func New(layer semantic.Layer, resolver Resolver, recorder journal.Recorder, logger *slog.Logger) *Orchestrator {
	if layer == nil {
		panic("orchestrator.New: layer must not be nil")
	}
	if resolver == nil {
		panic("orchestrator.New: resolver must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		layer:    layer,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
	}
}

// Answer is the outcome of a query_metrics call.
type Answer struct {
	// Text is the executor's result text or the clarification message.
	Text string

	// SelectionRequired is true when Text is a clarification. It is set from
	// the decision, never from the text.
	SelectionRequired bool
}

// QueryMetrics answers a natural-language metric question with text only.
// See Query.
func (o *Orchestrator) QueryMetrics(ctx context.Context, query string) string {
	return o.Query(ctx, query).Text
}

// Query answers a natural-language metric question.
//
// # Description
//
// Lists the catalog and resolves query against it. On Matched, the matched
// metric's name (and only that name) is sent to the query executor and its
// result text is returned verbatim, success or failure. On NoMatch the
// clarification message is returned and the executor is never called.
//
// A catalog listing failure is logged and treated as an empty catalog, so
// the caller still gets a well-formed clarification.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - query: The user's question.
//
// # Outputs
//
//   - Answer: The text, and whether it asks the user to pick a metric.
//
// # Thread Safety
//
// Safe for concurrent use.
func (o *Orchestrator) Query(ctx context.Context, query string) Answer {
	ctx, span := tracer.Start(ctx, "orchestrator.QueryMetrics")
	defer span.End()

	d, catalog := o.resolve(ctx, query)
	span.SetAttributes(
		attribute.String("outcome", d.Outcome()),
		attribute.String("reason", string(d.Reason())),
	)

	m, ok := d.Metric()
	if !ok {
		return Answer{Text: Clarification(catalog), SelectionRequired: true}
	}

	span.SetAttributes(attribute.String("metric", m.Name))
	result := o.layer.QueryMetrics(ctx, []string{m.Name})
	if !result.OK() {
		o.logger.Warn("orchestrator: query execution failed",
			slog.String("metric", m.Name),
			slog.String("error", llm.SafeLogString(result.Text())),
		)
		span.SetStatus(codes.Error, "query execution failed")
	}
	return Answer{Text: result.Text()}
}

// Resolve lists the catalog and resolves query without executing anything.
//
// # Outputs
//
//   - picker.Decision: The resolution.
//   - semantic.Catalog: The catalog used, for rendering a clarification.
func (o *Orchestrator) Resolve(ctx context.Context, query string) (picker.Decision, semantic.Catalog) {
	ctx, span := tracer.Start(ctx, "orchestrator.Resolve")
	defer span.End()
	return o.resolve(ctx, query)
}

func (o *Orchestrator) resolve(ctx context.Context, query string) (picker.Decision, semantic.Catalog) {
	catalog, err := o.layer.ListMetrics(ctx)
	if err != nil {
		o.logger.Warn("orchestrator: listing metrics failed",
			slog.String("error", llm.SafeLogString(err.Error())),
		)
		trace.SpanFromContext(ctx).RecordError(err)
		catalog = nil
	}

	d := o.resolver.Resolve(ctx, catalog, query)
	o.record(ctx, query, d)
	return d, catalog
}

// record appends d to the journal. Failures are logged and ignored.
func (o *Orchestrator) record(ctx context.Context, query string, d picker.Decision) {
	if o.recorder == nil {
		return
	}
	e := journal.Entry{
		Query:   query,
		Outcome: d.Outcome(),
		Reason:  string(d.Reason()),
		Model:   o.resolver.Model(),
	}
	if m, ok := d.Metric(); ok {
		e.Metric = m.Name
	}
	if err := o.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		o.logger.Warn("orchestrator: journal write failed", slog.String("error", err.Error()))
	}
}

// =============================================================================
// Pass-throughs
// =============================================================================

// ListMetrics returns the semantic layer's catalog.
func (o *Orchestrator) ListMetrics(ctx context.Context) (semantic.Catalog, error) {
	return o.layer.ListMetrics(ctx)
}

// GetDimensions returns the dimensions shared by metrics.
func (o *Orchestrator) GetDimensions(ctx context.Context, metrics []string) ([]semantic.Dimension, error) {
	return o.layer.GetDimensions(ctx, metrics)
}

// GetEntities returns the entities shared by metrics.
func (o *Orchestrator) GetEntities(ctx context.Context, metrics []string) ([]semantic.Entity, error) {
	return o.layer.GetEntities(ctx, metrics)
}
