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
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"golang.org/x/time/rate"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultHTTPTimeout  = 60 * time.Second
	graphQLPath         = "/api/graphql"
)

// Query statuses reported by the semantic layer for an asynchronous query.
const (
	queryStatusSuccessful = "SUCCESSFUL"
	queryStatusFailed     = "FAILED"
)

const listMetricsQuery = `query ListMetrics($environmentId: BigInt!) {
  metrics(environmentId: $environmentId) { name type label description }
}`

const getDimensionsQuery = `query GetDimensions($environmentId: BigInt!, $metrics: [MetricInput!]!) {
  dimensions(environmentId: $environmentId, metrics: $metrics) { name type description queryableGranularities }
}`

const getEntitiesQuery = `query GetEntities($environmentId: BigInt!, $metrics: [MetricInput!]!) {
  entities(environmentId: $environmentId, metrics: $metrics) { name type description }
}`

const createQueryMutation = `mutation CreateQuery($environmentId: BigInt!, $metrics: [MetricInput!]!) {
  createQuery(environmentId: $environmentId, metrics: $metrics) { queryId }
}`

const getQueryResultQuery = `query GetQueryResult($environmentId: BigInt!, $queryId: String!) {
  query(environmentId: $environmentId, queryId: $queryId) { status error jsonResult(encoding: NONE) }
}`

// GraphQLConfig configures a GraphQLClient.
type GraphQLConfig struct {
	// Host is the semantic layer host, with or without scheme
	// (e.g. "semantic-layer.cloud.getdbt.com").
	Host string

	// EnvironmentID is the production environment the metrics live in.
	EnvironmentID int64

	// Token is the service token sent as a bearer credential.
	Token string

	// PollInterval is the minimum spacing between query status polls.
	// Zero uses 500ms.
	PollInterval time.Duration

	// HTTPTimeout bounds each individual HTTP request. Zero uses 60s.
	HTTPTimeout time.Duration
}

// GraphQLClient talks to the dbt Semantic Layer GraphQL API.
//
// Description:
//
//	Implements Layer. Listing calls are single round trips. QueryMetrics
//	creates an asynchronous query and polls its status until it reaches a
//	terminal state or the context expires.
//
// Thread Safety: Safe for concurrent use.
type GraphQLClient struct {
	client        *graphql.Client
	environmentID int64
	pollInterval  time.Duration
	logger        *slog.Logger
}

// NewGraphQLClient creates a GraphQLClient.
//
// Inputs:
//   - cfg: Connection settings. Host and Token must be non-empty.
//   - logger: Logger instance. Nil uses slog.Default().
//
// Outputs:
//   - *GraphQLClient: The configured client.
//   - error: Non-nil if required settings are missing.
func NewGraphQLClient(cfg GraphQLConfig, logger *slog.Logger) (*GraphQLClient, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("semantic: host is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("semantic: token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: &bearerTransport{token: cfg.Token, base: http.DefaultTransport},
	}
	client := graphql.NewClient(graphQLEndpoint(cfg.Host), graphql.WithHTTPClient(httpClient))
	client.Log = func(s string) {
		logger.Debug("semantic layer graphql", slog.String("detail", truncate(s, 512)))
	}
	return &GraphQLClient{
		client:        client,
		environmentID: cfg.EnvironmentID,
		pollInterval:  cfg.PollInterval,
		logger:        logger,
	}, nil
}

// bearerTransport adds the service token to every request and turns a
// non-200 answer into an error carrying the status and the start of the body.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("semantic layer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp, nil
}

// graphQLEndpoint turns a bare host or base URL into the GraphQL endpoint.
func graphQLEndpoint(host string) string {
	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	if strings.HasSuffix(base, graphQLPath) {
		return base
	}
	return base + graphQLPath
}

type metricInput struct {
	Name string `json:"name"`
}

func metricInputs(names []string) []metricInput {
	inputs := make([]metricInput, 0, len(names))
	for _, n := range names {
		inputs = append(inputs, metricInput{Name: n})
	}
	return inputs
}

// ListMetrics implements CatalogSource.
func (c *GraphQLClient) ListMetrics(ctx context.Context) (Catalog, error) {
	var data struct {
		Metrics []Metric `json:"metrics"`
	}
	if err := c.do(ctx, listMetricsQuery, map[string]any{}, &data); err != nil {
		return nil, fmt.Errorf("semantic: listing metrics: %w", err)
	}
	return Catalog(data.Metrics), nil
}

// GetDimensions implements CatalogSource.
func (c *GraphQLClient) GetDimensions(ctx context.Context, metrics []string) ([]Dimension, error) {
	var data struct {
		Dimensions []struct {
			Name          string   `json:"name"`
			Type          string   `json:"type"`
			Description   string   `json:"description"`
			Granularities []string `json:"queryableGranularities"`
		} `json:"dimensions"`
	}
	vars := map[string]any{"metrics": metricInputs(metrics)}
	if err := c.do(ctx, getDimensionsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("semantic: getting dimensions: %w", err)
	}
	dims := make([]Dimension, 0, len(data.Dimensions))
	for _, d := range data.Dimensions {
		dims = append(dims, Dimension{
			Name:          d.Name,
			Type:          d.Type,
			Description:   d.Description,
			Granularities: d.Granularities,
		})
	}
	return dims, nil
}

// GetEntities implements CatalogSource.
func (c *GraphQLClient) GetEntities(ctx context.Context, metrics []string) ([]Entity, error) {
	var data struct {
		Entities []Entity `json:"entities"`
	}
	vars := map[string]any{"metrics": metricInputs(metrics)}
	if err := c.do(ctx, getEntitiesQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("semantic: getting entities: %w", err)
	}
	return data.Entities, nil
}

// QueryMetrics implements QueryExecutor.
//
// Description:
//
//	Creates the query, then polls its status no faster than the configured
//	poll interval. Transport errors, GraphQL errors, a FAILED status and
//	context expiry all produce a Failure result.
//
// Inputs:
//   - ctx: Bounds the whole create-and-poll cycle.
//   - metrics: Metric names to query.
//
// Outputs:
//   - QueryResult: Success carrying the JSON result, or Failure carrying the error text.
func (c *GraphQLClient) QueryMetrics(ctx context.Context, metrics []string) QueryResult {
	var created struct {
		CreateQuery struct {
			QueryID string `json:"queryId"`
		} `json:"createQuery"`
	}
	vars := map[string]any{"metrics": metricInputs(metrics)}
	if err := c.do(ctx, createQueryMutation, vars, &created); err != nil {
		return Failure(fmt.Sprintf("creating query: %v", err))
	}
	queryID := created.CreateQuery.QueryID
	if queryID == "" {
		return Failure("creating query: semantic layer returned no query id")
	}

	c.logger.Debug("semantic layer query created",
		slog.String("query_id", queryID),
		slog.Int("metric_count", len(metrics)),
	)

	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return Failure(fmt.Sprintf("waiting for query %s: %v", queryID, err))
		}

		var polled struct {
			Query struct {
				Status     string  `json:"status"`
				Error      *string `json:"error"`
				JSONResult *string `json:"jsonResult"`
			} `json:"query"`
		}
		pollVars := map[string]any{"queryId": queryID}
		if err := c.do(ctx, getQueryResultQuery, pollVars, &polled); err != nil {
			return Failure(fmt.Sprintf("polling query %s: %v", queryID, err))
		}

		switch polled.Query.Status {
		case queryStatusSuccessful:
			if polled.Query.JSONResult == nil {
				return Success("")
			}
			return Success(*polled.Query.JSONResult)
		case queryStatusFailed:
			msg := "query failed"
			if polled.Query.Error != nil && *polled.Query.Error != "" {
				msg = *polled.Query.Error
			}
			return Failure(msg)
		default:
			c.logger.Debug("semantic layer query pending",
				slog.String("query_id", queryID),
				slog.String("status", polled.Query.Status),
			)
		}
	}
}

// do executes one GraphQL operation and decodes its data into out.
func (c *GraphQLClient) do(ctx context.Context, query string, vars map[string]any, out any) error {
	req := graphql.NewRequest(query)
	req.Var("environmentId", c.environmentID)
	for k, v := range vars {
		req.Var(k, v)
	}
	return c.client.Run(ctx, req, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
