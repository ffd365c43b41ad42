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
	"testing"
)

func TestNewGateway_SelectsProvider(t *testing.T) {
	gw, err := NewGateway(context.Background(), Settings{
		Provider:        "Anthropic",
		Model:           "claude-test",
		AnthropicAPIKey: "k",
	}, nil)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if gw.Provider() != ProviderAnthropic {
		t.Errorf("Provider = %q, want %q", gw.Provider(), ProviderAnthropic)
	}
}

func TestNewGateway_DefaultsToBedrock(t *testing.T) {
	_, err := NewGateway(context.Background(), Settings{Model: "m"}, nil)
	gwErr, ok := err.(*GatewayError)
	if !ok {
		t.Fatalf("error = %v, want *GatewayError", err)
	}
	if gwErr.Provider != ProviderBedrock || gwErr.Kind != KindConfig {
		t.Errorf("error = %+v, want bedrock config error", gwErr)
	}
}

func TestNewGateway_RejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
	}{
		{"missing model", Settings{Provider: ProviderAnthropic, AnthropicAPIKey: "k"}},
		{"unknown provider", Settings{Provider: "openai", Model: "gpt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGateway(context.Background(), tt.s, nil)
			if ClassifyError(err) != KindConfig {
				t.Errorf("ClassifyError = %q, want %q (err=%v)", ClassifyError(err), KindConfig, err)
			}
		})
	}
}

func TestSettings_WithDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	if s.Provider != ProviderBedrock || s.MaxTokens != DefaultMaxTokens ||
		s.Timeout != DefaultTimeout || s.Region != DefaultRegion ||
		s.AnthropicBaseURL != defaultAnthropicURL {
		t.Errorf("withDefaults = %+v", s)
	}
}
