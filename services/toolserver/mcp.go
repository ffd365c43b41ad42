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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/AleutianAI/metricpicker/services/llm"
)

// serverName is reported to MCP clients during initialization.
const serverName = "metricpicker"

// MCPServer serves the metric tools over the Model Context Protocol.
//
// # Thread Safety
//
// Safe for concurrent use; tool calls may run in parallel.
type MCPServer struct {
	svc       Service
	mcpServer *mcpserver.MCPServer
	logger    *slog.Logger
}

// NewMCPServer creates an MCPServer with all tools registered.
//
// # Inputs
//
//   - svc: The metric service. Must not be nil.
//   - version: Version string reported to clients.
//   - logger: Logger. May be nil.
//
// # Outputs
//
//   - *MCPServer: Ready to serve. Never nil.
func NewMCPServer(svc Service, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MCPServer{
		svc: svc,
		mcpServer: mcpserver.NewMCPServer(serverName, version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
		logger: logger,
	}
	s.registerTools()
	return s
}

// Server returns the underlying mcp-go server.
func (s *MCPServer) Server() *mcpserver.MCPServer { return s.mcpServer }

// ServeStdio serves MCP over the given streams until ctx is done or in
// closes.
func (s *MCPServer) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return mcpserver.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool(ToolListMetrics,
			mcplib.WithDescription(descListMetrics),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
		),
		s.handleListMetrics,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolGetDimensions,
			mcplib.WithDescription(descGetDimensions),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithArray("metrics",
				mcplib.Description("Metric names, as returned by list_metrics."),
				mcplib.Required(),
				mcplib.WithStringItems(),
			),
		),
		s.handleGetDimensions,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolGetEntities,
			mcplib.WithDescription(descGetEntities),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithArray("metrics",
				mcplib.Description("Metric names, as returned by list_metrics."),
				mcplib.Required(),
				mcplib.WithStringItems(),
			),
		),
		s.handleGetEntities,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolQueryMetrics,
			mcplib.WithDescription(descQueryMetrics),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("query",
				mcplib.Description("The user's question in natural language, e.g. \"total revenue last month\"."),
				mcplib.Required(),
			),
		),
		s.handleQueryMetrics,
	)
}

func (s *MCPServer) handleListMetrics(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	catalog, err := s.svc.ListMetrics(ctx)
	if err != nil {
		return s.failure(ToolListMetrics, err), nil
	}
	return jsonResult(nonNil(catalog))
}

func (s *MCPServer) handleGetDimensions(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	metrics := request.GetStringSlice("metrics", nil)
	if len(metrics) == 0 {
		return mcplib.NewToolResultError("metrics is required"), nil
	}
	dims, err := s.svc.GetDimensions(ctx, metrics)
	if err != nil {
		return s.failure(ToolGetDimensions, err), nil
	}
	return jsonResult(nonNil(dims))
}

func (s *MCPServer) handleGetEntities(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	metrics := request.GetStringSlice("metrics", nil)
	if len(metrics) == 0 {
		return mcplib.NewToolResultError("metrics is required"), nil
	}
	ents, err := s.svc.GetEntities(ctx, metrics)
	if err != nil {
		return s.failure(ToolGetEntities, err), nil
	}
	return jsonResult(nonNil(ents))
}

func (s *MCPServer) handleQueryMetrics(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcplib.NewToolResultError("query is required"), nil
	}
	return mcplib.NewToolResultText(s.svc.Query(ctx, query).Text), nil
}

// failure logs err and returns a tool error carrying a redacted message.
func (s *MCPServer) failure(tool string, err error) *mcplib.CallToolResult {
	msg := llm.SafeLogString(err.Error())
	s.logger.Warn("toolserver: tool call failed",
		slog.String("tool", tool),
		slog.String("error", msg),
	)
	return mcplib.NewToolResultError(fmt.Sprintf("%s failed: %s", tool, msg))
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("toolserver: encoding result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}
