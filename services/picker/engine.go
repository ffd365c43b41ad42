// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/metricpicker/services/llm"
	"github.com/AleutianAI/metricpicker/services/semantic"
)

// DefaultModelTimeout bounds a single model call when NewEngine is given zero.
const DefaultModelTimeout = 30 * time.Second

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	engineDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metricpicker",
		Subsystem: "engine",
		Name:      "decisions_total",
		Help:      "Resolution decisions by outcome and no-match reason.",
	}, []string{"outcome", "reason"})

	engineResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "metricpicker",
		Subsystem: "engine",
		Name:      "resolve_duration_seconds",
		Help:      "End-to-end duration of a resolution, including the model call.",
		Buckets:   []float64{0.05, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

var engineTracer = otel.Tracer("metricpicker.picker.engine")

// =============================================================================
// Engine
// =============================================================================

// Completer is the model call the engine depends on. Every llm.Gateway
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Engine resolves a query against a catalog with a language model acting as
// a conservative classifier.
//
// Description:
//
//	Each call builds the prompt, makes exactly one model call and matches
//	the answer against the catalog. Any failure along the way, including a
//	timeout, a cancelled context or a panicking gateway, ends in NoMatch.
//	Resolve never returns an error and never panics.
//
// Thread Safety: Safe for concurrent use. The engine holds no mutable state;
// independent queries may be resolved in parallel.
type Engine struct {
	gateway Completer
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine creates an Engine.
//
// Inputs:
//
//	gateway - The model gateway, constructed once at startup.
//	timeout - Bound on a single model call. Zero uses DefaultModelTimeout.
//	logger  - Logger instance. Nil uses slog.Default().
//
// Outputs:
//
//	*Engine - The constructed engine. Never nil.
func NewEngine(gateway Completer, timeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &Engine{
		gateway: gateway,
		timeout: timeout,
		logger:  logger,
	}
}

// Model returns the gateway's model identifier, or "" without a gateway.
func (e *Engine) Model() string {
	if e.gateway == nil {
		return ""
	}
	return e.gateway.Model()
}

// Resolve picks at most one metric from catalog for query.
//
// Description:
//
//	Init -> PromptBuilt -> ModelInvoked -> ResponseEvaluated -> Decided.
//	An empty catalog is decided immediately without calling the model.
//	There are no retries.
//
// Inputs:
//
//	ctx     - Context for cancellation. Cancellation abandons the model call.
//	catalog - Metrics to choose from, in priority order for tie-breaks.
//	query   - The user's question, passed through verbatim.
//
// Outputs:
//
//	Decision - Matched with a value-equal catalog member, or NoMatch.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) Resolve(ctx context.Context, catalog semantic.Catalog, query string) (d Decision) {
	ctx, span := engineTracer.Start(ctx, "picker.Engine.Resolve",
		trace.WithAttributes(
			attribute.Int("catalog_size", len(catalog)),
			attribute.Int("query_length", len(query)),
			attribute.String("model", e.Model()),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		e.record(span, d, time.Since(start))
	}()

	if len(catalog) == 0 {
		e.logger.Info("picker: empty catalog, skipping model call")
		return NoMatch(ReasonEmptyCatalog)
	}

	prompt, err := BuildPrompt(catalog, query)
	if err != nil {
		e.logger.Error("picker: prompt build failed", slog.String("error", err.Error()))
		span.RecordError(err)
		return NoMatch(ReasonPromptError)
	}
	span.AddEvent("prompt_built", trace.WithAttributes(attribute.Int("prompt_length", len(prompt))))
	e.logger.Debug("picker: prompt built",
		slog.Int("catalog_size", len(catalog)),
		slog.String("prompt", llm.SafeLogString(prompt)),
	)

	raw, err := e.invoke(ctx, prompt)
	if err != nil {
		kind := llm.ClassifyError(err)
		e.logger.Warn("picker: model call failed",
			slog.String("error_type", string(kind)),
			slog.String("error", llm.SafeLogString(err.Error())),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("error_type", string(kind)))
		return NoMatch(ReasonTransportFailure)
	}
	span.AddEvent("model_invoked", trace.WithAttributes(attribute.Int("response_length", len(raw))))
	e.logger.Debug("picker: model answered", slog.String("response", llm.SafeLogString(raw)))

	d = Match(raw, catalog)
	span.AddEvent("response_evaluated")
	if d.Reason() == ReasonParseFailure {
		e.logger.Warn("picker: answer matched no catalog entry",
			slog.String("response", llm.SafeLogString(truncate(raw, 500))),
		)
	}
	return d
}

// invoke makes the single model call under the engine timeout.
//
// The call runs on its own goroutine so that a gateway which ignores its
// context still cannot hold Resolve past the deadline. The result channel is
// buffered, so the goroutine exits as soon as the gateway returns.
func (e *Engine) invoke(ctx context.Context, prompt string) (string, error) {
	if e.gateway == nil {
		return "", errors.New("picker: no model gateway configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("picker: model gateway panicked: %v", r)}
			}
		}()
		text, err := e.gateway.Complete(ctx, prompt)
		done <- result{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.text == "" {
			return "", errors.New("picker: model returned empty text")
		}
		return res.text, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("picker: model call abandoned: %w", ctx.Err())
	}
}

// record emits the decision's log line, span attributes and metrics.
func (e *Engine) record(span trace.Span, d Decision, elapsed time.Duration) {
	span.SetAttributes(
		attribute.String("outcome", d.Outcome()),
		attribute.String("reason", string(d.Reason())),
	)
	engineDecisionsTotal.WithLabelValues(d.Outcome(), string(d.Reason())).Inc()
	engineResolveDuration.Observe(elapsed.Seconds())

	if m, ok := d.Metric(); ok {
		span.SetAttributes(attribute.String("metric", m.Name))
		e.logger.Info("picker: metric resolved",
			slog.String("metric", m.Name),
			slog.Duration("elapsed", elapsed),
		)
		return
	}
	e.logger.Info("picker: no metric resolved",
		slog.String("reason", string(d.Reason())),
		slog.Duration("elapsed", elapsed),
	)
}

// truncate shortens s to at most n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
