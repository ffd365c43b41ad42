// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package toolserver

import (
	"context"
	"errors"
	"sync"

	"github.com/AleutianAI/metricpicker/services/orchestrator"
	"github.com/AleutianAI/metricpicker/services/semantic"
)

var testCatalog = semantic.Catalog{
	{Name: "total_revenue", Type: semantic.MetricTypeSimple, Label: "Total Revenue", Description: "Total revenue from all orders"},
	{Name: "total_cost", Type: semantic.MetricTypeSimple, Label: "Total Cost", Description: "Total cost of goods sold"},
}

// fakeService records calls and returns canned answers.
type fakeService struct {
	mu      sync.Mutex
	queries []string
	metrics [][]string
	answer  orchestrator.Answer
	err     error
}

func (f *fakeService) Query(ctx context.Context, query string) orchestrator.Answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.answer
}

func (f *fakeService) ListMetrics(ctx context.Context) (semantic.Catalog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return testCatalog, nil
}

func (f *fakeService) GetDimensions(ctx context.Context, metrics []string) ([]semantic.Dimension, error) {
	f.mu.Lock()
	f.metrics = append(f.metrics, metrics)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []semantic.Dimension{{Name: "metric_time", Type: "TIME", Granularities: []string{"DAY", "MONTH"}}}, nil
}

func (f *fakeService) GetEntities(ctx context.Context, metrics []string) ([]semantic.Entity, error) {
	f.mu.Lock()
	f.metrics = append(f.metrics, metrics)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

var errUpstream = errors.New("semantic: status 503: Bearer dbtc_abcdefghijklmnop unavailable")
