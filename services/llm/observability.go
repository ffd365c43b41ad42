// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// gatewayTracerName is the shared OTel tracer name for all gateways.
const gatewayTracerName = "metricpicker.llm"

// Package-level Prometheus metrics for gateway calls.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// gatewayCallDuration measures the duration of model calls.
	//
	// Labels:
	//   - provider: "bedrock", "anthropic"
	//   - status: "success" or "error"
	gatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "metricpicker",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Duration of language model calls in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	gatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metricpicker",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Total number of language model calls.",
		},
		[]string{"provider", "status"},
	)

	gatewayErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metricpicker",
			Subsystem: "gateway",
			Name:      "errors_total",
			Help:      "Total language model call failures by kind.",
		},
		[]string{"provider", "error_type"},
	)
)

// observeCall runs one model call inside a span and records its metrics.
//
// Description:
//
//	Shared by every Gateway so that spans and metrics look identical across
//	providers. The call's error is returned unchanged.
//
// Inputs:
//
//	ctx      - Parent context.
//	provider - Provider label ("bedrock", "anthropic").
//	model    - Model identifier, recorded as a span attribute.
//	promptLen - Prompt length in bytes, recorded as a span attribute.
//	call     - The model call itself.
//
// Outputs:
//
//	string - The call's text.
//	error  - The call's error.
func observeCall(ctx context.Context, provider, model string, promptLen int, call func(ctx context.Context) (string, error)) (string, error) {
	ctx, span := otel.Tracer(gatewayTracerName).Start(ctx, "llm.Gateway.Complete",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
			attribute.Int("prompt_length", promptLen),
		),
	)
	defer span.End()

	start := time.Now()
	text, err := call(ctx)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		kind := ClassifyError(err)
		gatewayErrorsTotal.WithLabelValues(provider, string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("error_type", string(kind)))
	} else {
		span.SetAttributes(attribute.Int("response_length", len(text)))
	}

	gatewayCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	gatewayCallsTotal.WithLabelValues(provider, status).Inc()
	return text, err
}
