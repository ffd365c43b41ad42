// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the language model gateways used to disambiguate
// metric queries.
//
// A Gateway sends one prompt and returns the model's text completion. Two
// providers are supported: Amazon Bedrock (the production default) and the
// Anthropic Messages API. Every failure is returned as a *GatewayError so
// callers can treat transport problems uniformly.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Supported provider names.
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
)

// Defaults applied by NewGateway when Settings leaves a field zero.
const (
	DefaultMaxTokens = 4000
	DefaultRegion    = "eu-west-1"
	DefaultTimeout   = 30 * time.Second
)

// Gateway sends a single prompt to a language model.
//
// Description:
//
//	Complete returns the concatenated text of the model's reply. An empty
//	reply is an error. Implementations never retry; the caller decides what
//	a failure means.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Gateway interface {
	// Complete sends prompt as a single user turn and returns the reply text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Provider returns the provider name ("bedrock", "anthropic").
	Provider() string

	// Model returns the model identifier in use.
	Model() string
}

// Settings configures a Gateway.
type Settings struct {
	// Provider selects the backend. Empty means ProviderBedrock.
	Provider string

	// Model is the model identifier. Required.
	Model string

	// MaxTokens caps the completion length. Zero means DefaultMaxTokens.
	MaxTokens int

	// Temperature is sent verbatim. Zero gives deterministic sampling.
	Temperature float64

	// Timeout bounds a single HTTP exchange with either provider. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// Bedrock credentials. AccessKeyID and SecretAccessKey are required
	// for ProviderBedrock.
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Anthropic settings. AnthropicAPIKey is required for ProviderAnthropic.
	AnthropicAPIKey  string
	AnthropicBaseURL string
}

// withDefaults fills zero fields.
func (s Settings) withDefaults() Settings {
	if s.Provider == "" {
		s.Provider = ProviderBedrock
	}
	s.Provider = strings.ToLower(s.Provider)
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Region == "" {
		s.Region = DefaultRegion
	}
	if s.AnthropicBaseURL == "" {
		s.AnthropicBaseURL = defaultAnthropicURL
	}
	return s
}

// NewGateway creates the Gateway selected by s.Provider.
//
// Description:
//
//	Validates the provider-specific settings and constructs the client.
//	Missing credentials are reported here, at startup, rather than on the
//	first call.
//
// Inputs:
//
//	ctx    - Context for loading provider configuration.
//	s      - Gateway settings.
//	logger - Logger for the client. Nil means slog.Default().
//
// Outputs:
//
//	Gateway - The configured gateway.
//	error   - A *GatewayError of kind "config" when settings are invalid.
func NewGateway(ctx context.Context, s Settings, logger *slog.Logger) (Gateway, error) {
	s = s.withDefaults()
	if s.Model == "" {
		return nil, &GatewayError{Provider: s.Provider, Kind: KindConfig, Message: "model is required"}
	}

	switch s.Provider {
	case ProviderBedrock:
		client, err := NewBedrockClient(ctx, s, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderAnthropic:
		client, err := NewAnthropicClient(s, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, &GatewayError{
			Provider: s.Provider,
			Kind:     KindConfig,
			Message:  fmt.Sprintf("unknown provider %q (supported: %s, %s)", s.Provider, ProviderBedrock, ProviderAnthropic),
		}
	}
}
