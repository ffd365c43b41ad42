// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semantic holds the metric catalog model and the clients that talk
// to the semantic layer: listing metrics, dimensions and entities, and
// executing the final metric query.
//
// Thread Safety:
//
//	All exported types are immutable values or safe for concurrent use.
package semantic

import (
	"context"
	"fmt"
)

// MetricType enumerates the kinds of metric the semantic layer defines.
type MetricType string

// Metric types reported by the semantic layer.
const (
	MetricTypeSimple     MetricType = "SIMPLE"
	MetricTypeRatio      MetricType = "RATIO"
	MetricTypeCumulative MetricType = "CUMULATIVE"
	MetricTypeDerived    MetricType = "DERIVED"
	MetricTypeConversion MetricType = "CONVERSION"
)

// Metric describes one metric in the semantic layer catalog.
//
// Description:
//
//	Metric is owned by the semantic layer. Callers treat it as an immutable
//	value; it is compared by value, never by pointer.
type Metric struct {
	// Name is the unique identifier of the metric within a catalog.
	Name string `json:"name" yaml:"name"`

	// Type is the metric kind (SIMPLE, RATIO, DERIVED, ...).
	Type MetricType `json:"type" yaml:"type"`

	// Label is the human-readable name.
	Label string `json:"label" yaml:"label"`

	// Description is free text supplied by the metric author.
	Description string `json:"description" yaml:"description"`
}

// Catalog is the ordered list of metrics available for a single call.
//
// Order is significant: it is the tie-break order used when matching model
// output. A catalog never contains two metrics with the same name.
type Catalog []Metric

// Names returns the metric names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for _, m := range c {
		names = append(names, m.Name)
	}
	return names
}

// Validate reports an error if two metrics share a name.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, m := range c {
		if _, ok := seen[m.Name]; ok {
			return fmt.Errorf("semantic: duplicate metric name %q in catalog", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// Dimension describes a dimension that metrics can be grouped by.
type Dimension struct {
	Name          string   `json:"name" yaml:"name"`
	Type          string   `json:"type" yaml:"type"`
	Description   string   `json:"description,omitempty" yaml:"description"`
	Granularities []string `json:"granularities,omitempty" yaml:"granularities"`

	// Metrics lists the metrics this dimension applies to. Used by the file
	// catalog only; the GraphQL API filters server-side.
	Metrics []string `json:"-" yaml:"metrics"`
}

// Entity describes an entity (join key) related to metrics.
type Entity struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Metrics     []string `json:"-" yaml:"metrics"`
}

// QueryResult is the outcome of a metric query: exactly one of success text
// or failure text.
type QueryResult struct {
	ok   bool
	text string
}

// Success builds a successful QueryResult carrying the result payload.
func Success(result string) QueryResult {
	return QueryResult{ok: true, text: result}
}

// Failure builds a failed QueryResult carrying the error text.
func Failure(message string) QueryResult {
	return QueryResult{ok: false, text: message}
}

// OK reports whether the query succeeded.
func (r QueryResult) OK() bool { return r.ok }

// Text returns the result payload on success, or the error text on failure.
func (r QueryResult) Text() string { return r.text }

// CatalogSource lists the semantic layer's metrics, dimensions and entities.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CatalogSource interface {
	// ListMetrics returns the full metric catalog in the semantic layer's order.
	ListMetrics(ctx context.Context) (Catalog, error)

	// GetDimensions returns the dimensions shared by the given metrics.
	GetDimensions(ctx context.Context, metrics []string) ([]Dimension, error)

	// GetEntities returns the entities related to the given metrics.
	GetEntities(ctx context.Context, metrics []string) ([]Entity, error)
}

// QueryExecutor runs a metric query against the semantic layer.
//
// Thread Safety: Implementations must be safe for concurrent use.
type QueryExecutor interface {
	// QueryMetrics executes a query over the named metrics. Failures are
	// reported in the returned QueryResult, not as a Go error, so that the
	// text can be relayed verbatim to the caller.
	QueryMetrics(ctx context.Context, metrics []string) QueryResult
}

// Layer is a semantic layer that both lists and queries metrics.
type Layer interface {
	CatalogSource
	QueryExecutor
}
