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
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

// bedrockAnthropicVersion is the Messages API version Bedrock expects in the
// request body for Claude models.
const bedrockAnthropicVersion = "bedrock-2023-05-31"

// bedrockInvoker is the subset of *bedrockruntime.Client used here.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

type bedrockMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

// BedrockClient is a Gateway for Claude models hosted on Amazon Bedrock.
//
// Thread Safety: Safe for concurrent use.
type BedrockClient struct {
	invoker     bedrockInvoker
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewBedrockClient creates a BedrockClient with static credentials.
//
// Description:
//
//	Loads the AWS configuration for s.Region with the access key pair from
//	s. The SDK's own retries are disabled; a failed call is reported once.
//	s.Timeout bounds each HTTP exchange with Bedrock.
//
// Inputs:
//
//	ctx    - Context for loading AWS configuration.
//	s      - Gateway settings. AccessKeyID, SecretAccessKey and Model are required.
//	logger - Logger. Nil means slog.Default().
//
// Outputs:
//
//	*BedrockClient - The configured client.
//	error          - A config GatewayError when credentials are missing.
func NewBedrockClient(ctx context.Context, s Settings, logger *slog.Logger) (*BedrockClient, error) {
	s = s.withDefaults()
	if s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return nil, &GatewayError{
			Provider: ProviderBedrock,
			Kind:     KindConfig,
			Message:  "AWS credentials are missing (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)",
		}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken),
		),
		awsconfig.WithRetryMaxAttempts(1),
		awsconfig.WithHTTPClient(bedrockHTTPClient(s.Timeout)),
	)
	if err != nil {
		return nil, newGatewayError(ProviderBedrock, KindConfig, "loading AWS config", err)
	}

	return newBedrockClient(bedrockruntime.NewFromConfig(cfg), s, logger)
}

// bedrockHTTPClient is the SDK HTTP client with every exchange bounded by
// timeout.
func bedrockHTTPClient(timeout time.Duration) *awshttp.BuildableClient {
	return awshttp.NewBuildableClient().WithTimeout(timeout)
}

// newBedrockClient wires an invoker. Tests pass a fake.
func newBedrockClient(invoker bedrockInvoker, s Settings, logger *slog.Logger) (*BedrockClient, error) {
	s = s.withDefaults()
	if s.Model == "" {
		return nil, &GatewayError{Provider: ProviderBedrock, Kind: KindConfig, Message: "model is required"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BedrockClient{
		invoker:     invoker,
		model:       s.Model,
		maxTokens:   s.MaxTokens,
		temperature: s.Temperature,
		logger:      logger.With(slog.String("provider", ProviderBedrock)),
	}, nil
}

// Provider implements Gateway.
func (b *BedrockClient) Provider() string { return ProviderBedrock }

// Model implements Gateway.
func (b *BedrockClient) Model() string { return b.model }

// Complete implements Gateway.
//
// Description:
//
//	Invokes the model with prompt as the only user message and returns the
//	concatenated text blocks of the reply.
//
// Inputs:
//
//	ctx    - Context for cancellation and deadlines.
//	prompt - The full prompt.
//
// Outputs:
//
//	string - The reply text. Never empty on success.
//	error  - A *GatewayError on any failure.
//
// Thread Safety: Safe for concurrent use.
func (b *BedrockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return observeCall(ctx, ProviderBedrock, b.model, len(prompt), func(ctx context.Context) (string, error) {
		return b.complete(ctx, prompt)
	})
}

func (b *BedrockClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        b.maxTokens,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: prompt}},
		}},
		Temperature: b.temperature,
	})
	if err != nil {
		return "", newGatewayError(ProviderBedrock, KindMalformed, "marshaling request", err)
	}

	b.logger.Debug("Invoking Bedrock model", slog.String("model", b.model))

	out, err := b.invoker.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", &GatewayError{
			Provider: ProviderBedrock,
			Kind:     classifyBedrockError(err),
			Message:  "invoke model",
			Err:      err,
		}
	}

	b.logger.Debug("Bedrock response received", slog.Int("body_length", len(out.Body)))

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", newGatewayError(ProviderBedrock, KindMalformed, "parsing response JSON", err)
	}
	text := resp.joinText()
	if text == "" {
		return "", &GatewayError{Provider: ProviderBedrock, Kind: KindEmptyResponse, Message: "received no text content"}
	}
	return text, nil
}

// classifyBedrockError maps AWS API error codes to an ErrorKind, falling back
// to ClassifyError for anything that is not a smithy.APIError.
func classifyBedrockError(err error) ErrorKind {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return ClassifyError(err)
	}
	code := apiErr.ErrorCode()
	switch {
	case strings.HasPrefix(code, "AccessDenied"),
		strings.HasPrefix(code, "UnrecognizedClient"),
		strings.HasPrefix(code, "ExpiredToken"),
		strings.HasPrefix(code, "InvalidSignature"):
		return KindAuth
	case strings.HasPrefix(code, "Throttling"),
		strings.HasPrefix(code, "ServiceQuotaExceeded"):
		return KindRateLimit
	case strings.HasPrefix(code, "ModelTimeout"):
		return KindTimeout
	case strings.HasPrefix(code, "Validation"),
		strings.HasPrefix(code, "ResourceNotFound"):
		return KindConfig
	case strings.HasPrefix(code, "InternalServer"),
		strings.HasPrefix(code, "ServiceUnavailable"),
		strings.HasPrefix(code, "ModelNotReady"),
		strings.HasPrefix(code, "ModelError"):
		return KindServer
	default:
		return ClassifyError(err)
	}
}
