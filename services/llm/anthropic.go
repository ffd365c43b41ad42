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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	anthropicAPIVersion = "2023-06-01"
	defaultAnthropicURL = "https://api.anthropic.com/v1/messages"
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is shared with Bedrock, which returns the same message
// shape for Claude models.
type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason,omitempty"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// joinText concatenates the text blocks of a reply in order.
func (r *anthropicResponse) joinText() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// AnthropicClient is a Gateway for the Anthropic Messages API.
type AnthropicClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewAnthropicClient creates an AnthropicClient from settings.
//
// Inputs:
//
//	s      - Gateway settings. AnthropicAPIKey and Model are required.
//	logger - Logger. Nil means slog.Default().
//
// Outputs:
//
//	*AnthropicClient - The configured client.
//	error            - A config GatewayError when the API key is missing.
func NewAnthropicClient(s Settings, logger *slog.Logger) (*AnthropicClient, error) {
	s = s.withDefaults()
	if s.AnthropicAPIKey == "" {
		return nil, &GatewayError{Provider: ProviderAnthropic, Kind: KindConfig, Message: "API key is missing (ANTHROPIC_API_KEY)"}
	}
	if s.Model == "" {
		return nil, &GatewayError{Provider: ProviderAnthropic, Kind: KindConfig, Message: "model is required"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicClient{
		httpClient:  &http.Client{Timeout: s.Timeout},
		apiKey:      s.AnthropicAPIKey,
		model:       s.Model,
		baseURL:     s.AnthropicBaseURL,
		maxTokens:   s.MaxTokens,
		temperature: s.Temperature,
		logger:      logger.With(slog.String("provider", ProviderAnthropic)),
	}, nil
}

// Provider implements Gateway.
func (a *AnthropicClient) Provider() string { return ProviderAnthropic }

// Model implements Gateway.
func (a *AnthropicClient) Model() string { return a.model }

// Complete implements Gateway.
func (a *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	return observeCall(ctx, ProviderAnthropic, a.model, len(prompt), func(ctx context.Context) (string, error) {
		return a.complete(ctx, prompt)
	})
}

func (a *AnthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	reqPayload := anthropicRequest{
		Model:       a.model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", newGatewayError(ProviderAnthropic, KindMalformed, "marshaling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return "", newGatewayError(ProviderAnthropic, KindConfig, "creating HTTP request", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	a.logger.Debug("Sending request to Anthropic", slog.String("model", a.model))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", newGatewayError(ProviderAnthropic, "", "HTTP request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GatewayError{Provider: ProviderAnthropic, Kind: KindNetwork, StatusCode: resp.StatusCode, Message: "reading response body", Err: err}
	}

	a.logger.Debug("Anthropic response received",
		slog.Int("status", resp.StatusCode),
		slog.Int("body_length", len(bodyBytes)),
	)

	if resp.StatusCode != http.StatusOK {
		return "", &GatewayError{
			Provider:   ProviderAnthropic,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    SafeLogString(truncateBody(bodyBytes)),
		}
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", newGatewayError(ProviderAnthropic, KindMalformed, "parsing response JSON", err)
	}
	if apiResp.Error != nil {
		return "", &GatewayError{
			Provider: ProviderAnthropic,
			Kind:     KindServer,
			Message:  fmt.Sprintf("API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message)),
		}
	}

	text := apiResp.joinText()
	if text == "" {
		return "", &GatewayError{Provider: ProviderAnthropic, Kind: KindEmptyResponse, Message: "received no text content"}
	}
	return text, nil
}

// truncateBody bounds error bodies carried in messages.
func truncateBody(b []byte) string {
	const limit = 512
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
