// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semantic

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// errFileQueryUnsupported is returned as failure text by FileSource.QueryMetrics.
const errFileQueryUnsupported = "query execution is not configured for file catalogs"

// fileCatalog is the on-disk YAML layout read by FileSource.
type fileCatalog struct {
	Metrics    []Metric    `yaml:"metrics"`
	Dimensions []Dimension `yaml:"dimensions"`
	Entities   []Entity    `yaml:"entities"`
}

// FileSource serves a metric catalog from a YAML file.
//
// Description:
//
//	Used for local runs and demos where no semantic layer is reachable.
//	The file is re-read on every call so edits are picked up without a
//	restart. Dimensions and entities declare the metrics they apply to;
//	an empty metrics list means "applies to every metric".
//
//	Example file:
//
//	  metrics:
//	    - name: total_revenue
//	      type: SIMPLE
//	      label: Total Revenue
//	      description: Total revenue from all orders
//	  dimensions:
//	    - name: order__region
//	      type: CATEGORICAL
//	      metrics: [total_revenue]
//
// Thread Safety: Safe for concurrent use (stateless apart from the path).
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for the given YAML path.
//
// The file is parsed once here so that a broken catalog fails at startup.
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSource) load() (*fileCatalog, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("semantic: reading catalog file: %w", err)
	}
	var fc fileCatalog
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("semantic: parsing catalog file %s: %w", s.path, err)
	}
	if err := Catalog(fc.Metrics).Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// ListMetrics implements CatalogSource.
func (s *FileSource) ListMetrics(_ context.Context) (Catalog, error) {
	fc, err := s.load()
	if err != nil {
		return nil, err
	}
	return Catalog(fc.Metrics), nil
}

// GetDimensions implements CatalogSource.
func (s *FileSource) GetDimensions(_ context.Context, metrics []string) ([]Dimension, error) {
	fc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Dimension, 0, len(fc.Dimensions))
	for _, d := range fc.Dimensions {
		if appliesToAll(d.Metrics, metrics) {
			out = append(out, d)
		}
	}
	return out, nil
}

// GetEntities implements CatalogSource.
func (s *FileSource) GetEntities(_ context.Context, metrics []string) ([]Entity, error) {
	fc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(fc.Entities))
	for _, e := range fc.Entities {
		if appliesToAll(e.Metrics, metrics) {
			out = append(out, e)
		}
	}
	return out, nil
}

// QueryMetrics implements QueryExecutor. A file catalog cannot execute queries.
func (s *FileSource) QueryMetrics(_ context.Context, _ []string) QueryResult {
	return Failure(errFileQueryUnsupported)
}

// appliesToAll reports whether a dimension or entity scoped to scope is
// available for every requested metric. An empty scope applies everywhere.
func appliesToAll(scope, requested []string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, r := range requested {
		if !slices.Contains(scope, r) {
			return false
		}
	}
	return true
}
