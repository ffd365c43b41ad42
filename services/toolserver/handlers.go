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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/metricpicker/services/llm"
)

// requestIDHeader carries the caller's request ID, or ours when absent.
const requestIDHeader = "X-Request-ID"

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MetricsRequest names the metrics for dimension and entity lookups.
type MetricsRequest struct {
	Metrics []string `json:"metrics" binding:"required,min=1,dive,required"`
}

// QueryRequest carries a natural-language metric question.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// QueryResponse is the answer to a QueryRequest.
//
// SelectionRequired is true when Result is a clarification message rather
// than a query result; callers must not treat it as data.
type QueryResponse struct {
	Result            string `json:"result"`
	SelectionRequired bool   `json:"selection_required"`
}

// Handlers serves the metric tools over HTTP.
type Handlers struct {
	svc    Service
	logger *slog.Logger
}

// NewHandlers creates Handlers.
//
// Inputs:
//
//	svc    - The metric service. Must not be nil.
//	logger - Logger. Nil uses slog.Default().
func NewHandlers(svc Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// RegisterRoutes registers the metric tool routes.
//
// Description:
//
//	Registers all /v1/metrics/* endpoints with the given router group. The
//	group should already have any required middleware applied.
//
// Endpoints:
//
//	GET  /v1/metrics             - list_metrics
//	POST /v1/metrics/dimensions  - get_dimensions
//	POST /v1/metrics/entities    - get_entities
//	POST /v1/metrics/query       - query_metrics
//	GET  /v1/health              - Liveness check
//
// Example:
//
//	v1 := router.Group("/v1")
//	toolserver.RegisterRoutes(v1, toolserver.NewHandlers(orch, logger))
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	metrics := rg.Group("/metrics")
	{
		metrics.GET("", h.HandleListMetrics)
		metrics.POST("/dimensions", h.HandleGetDimensions)
		metrics.POST("/entities", h.HandleGetEntities)
		metrics.POST("/query", h.HandleQueryMetrics)
	}
	rg.GET("/health", h.HandleHealth)
}

// HandleListMetrics handles GET /v1/metrics.
func (h *Handlers) HandleListMetrics(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListMetrics")

	catalog, err := h.svc.ListMetrics(c.Request.Context())
	if err != nil {
		h.upstreamError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(catalog))
}

// HandleGetDimensions handles POST /v1/metrics/dimensions.
func (h *Handlers) HandleGetDimensions(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetDimensions")

	var req MetricsRequest
	if !bindJSON(c, &req) {
		return
	}
	dims, err := h.svc.GetDimensions(c.Request.Context(), req.Metrics)
	if err != nil {
		h.upstreamError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(dims))
}

// HandleGetEntities handles POST /v1/metrics/entities.
func (h *Handlers) HandleGetEntities(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetEntities")

	var req MetricsRequest
	if !bindJSON(c, &req) {
		return
	}
	ents, err := h.svc.GetEntities(c.Request.Context(), req.Metrics)
	if err != nil {
		h.upstreamError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(ents))
}

// HandleQueryMetrics handles POST /v1/metrics/query.
//
// Description:
//
//	Always answers 200 with a QueryResponse; a clarification is a normal
//	answer, flagged by SelectionRequired.
func (h *Handlers) HandleQueryMetrics(c *gin.Context) {
	logger := h.requestLogger(c, "HandleQueryMetrics")

	var req QueryRequest
	if !bindJSON(c, &req) {
		return
	}
	answer := h.svc.Query(c.Request.Context(), req.Query)
	resp := QueryResponse{
		Result:            answer.Text,
		SelectionRequired: answer.SelectionRequired,
	}
	logger.Info("query answered", slog.Bool("selection_required", resp.SelectionRequired))
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler),
	)
}

func (h *Handlers) upstreamError(c *gin.Context, logger *slog.Logger, err error) {
	msg := llm.SafeLogString(err.Error())
	logger.Warn("semantic layer call failed", slog.String("error", msg))
	c.JSON(http.StatusBadGateway, ErrorResponse{
		Error: msg,
		Code:  "SEMANTIC_LAYER_ERROR",
	})
}

// bindJSON binds the body into req, answering 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	return true
}

// getOrCreateRequestID returns the caller's X-Request-ID or a new UUID, and
// echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(requestIDHeader, id)
	return id
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
