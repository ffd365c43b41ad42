// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads process configuration once at startup.
//
// Values come from an optional YAML file named by METRICPICKER_CONFIG, then
// from the environment, which always wins. The result is validated and is
// immutable afterwards; components receive the pieces they need explicitly.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/metricpicker/services/llm"
	"github.com/AleutianAI/metricpicker/services/semantic"
)

// Environment variable names.
const (
	EnvConfigFile      = "METRICPICKER_CONFIG"
	EnvProvider        = "METRICPICKER_PROVIDER"
	EnvBedrockModel    = "AWS_BEDROCK_MODEL"
	EnvRegion          = "AWS_REGION"
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    = "AWS_SESSION_TOKEN"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvClaudeModel     = "CLAUDE_MODEL"
	EnvAnthropicURL    = "ANTHROPIC_BASE_URL"
	EnvMaxTokens       = "METRICPICKER_MAX_TOKENS"
	EnvModelTimeout    = "METRICPICKER_MODEL_TIMEOUT"
	EnvDBTHost         = "DBT_HOST"
	EnvDBTEnvID        = "DBT_PROD_ENV_ID"
	EnvDBTToken        = "DBT_TOKEN"
	EnvCatalogFile     = "METRICPICKER_CATALOG_FILE"
	EnvJournalDir      = "METRICPICKER_JOURNAL_DIR"
	EnvHTTPAddr        = "METRICPICKER_HTTP_ADDR"
)

// DefaultHTTPAddr is the listen address for `serve`.
const DefaultHTTPAddr = ":8080"

// Config is the validated process configuration.
//
// Description:
//
//	Secrets are never read from the YAML file; they come from the
//	environment only. LogValue omits them.
//
// Thread Safety: Immutable after Load; safe for concurrent use.
type Config struct {
	// Provider selects the model gateway: "bedrock" or "anthropic".
	Provider string `yaml:"provider" validate:"oneof=bedrock anthropic"`

	// Model is the model identifier for the selected provider.
	Model string `yaml:"model" validate:"required"`

	// Region is the AWS region for Bedrock.
	Region string `yaml:"region" validate:"required"`

	AccessKeyID     string `yaml:"-" validate:"required_if=Provider bedrock"`
	SecretAccessKey string `yaml:"-" validate:"required_if=Provider bedrock"`
	SessionToken    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-" validate:"required_if=Provider anthropic"`

	// AnthropicBaseURL overrides the Messages API endpoint.
	AnthropicBaseURL string `yaml:"anthropic_base_url" validate:"omitempty,url"`

	// MaxTokens caps the model's answer length.
	MaxTokens int `yaml:"max_tokens" validate:"min=1,max=64000"`

	// ModelTimeout bounds a single model call.
	ModelTimeout time.Duration `yaml:"model_timeout" validate:"min=1s,max=10m"`

	// Semantic layer (dbt). Required unless CatalogFile is set.
	DBTHost          string `yaml:"dbt_host" validate:"required_without=CatalogFile"`
	DBTEnvironmentID int64  `yaml:"dbt_environment_id" validate:"required_with=DBTHost"`
	DBTToken         string `yaml:"-" validate:"required_with=DBTHost"`

	// CatalogFile is a YAML catalog used instead of the semantic layer.
	CatalogFile string `yaml:"catalog_file"`

	// JournalDir is the decision journal directory. Empty keeps the journal
	// in memory.
	JournalDir string `yaml:"journal_dir"`

	// HTTPAddr is the listen address for the HTTP tool surface.
	HTTPAddr string `yaml:"http_addr" validate:"required"`
}

// defaults returns a Config with every optional field at its default.
func defaults() Config {
	return Config{
		Provider:     llm.ProviderBedrock,
		Region:       llm.DefaultRegion,
		MaxTokens:    llm.DefaultMaxTokens,
		ModelTimeout: llm.DefaultTimeout,
		HTTPAddr:     DefaultHTTPAddr,
	}
}

// Load reads configuration from the YAML file (if any) and the environment.
//
// Description:
//
//	getenv is usually os.Getenv; tests pass a map lookup. The model is read
//	from AWS_BEDROCK_MODEL for bedrock and CLAUDE_MODEL for anthropic.
//
// Inputs:
//
//	getenv - Environment lookup. Must not be nil.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error   - Non-nil if the file cannot be read, a value cannot be parsed,
//	          or validation fails. The message names environment variables.
func Load(getenv func(string) string) (*Config, error) {
	return LoadFor(getenv, PartAll)
}

// LoadFor is Load with validation limited to parts. Settings outside parts
// are still read but may be missing or invalid.
func LoadFor(getenv func(string) string, parts Part) (*Config, error) {
	cfg := defaults()

	if path := getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.ValidateFor(parts); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, name string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}

	setString(&c.Provider, EnvProvider)
	c.Provider = strings.ToLower(c.Provider)
	switch c.Provider {
	case llm.ProviderBedrock:
		setString(&c.Model, EnvBedrockModel)
	case llm.ProviderAnthropic:
		setString(&c.Model, EnvClaudeModel)
	}
	setString(&c.Region, EnvRegion)
	setString(&c.AccessKeyID, EnvAccessKeyID)
	setString(&c.SecretAccessKey, EnvSecretAccessKey)
	setString(&c.SessionToken, EnvSessionToken)
	setString(&c.AnthropicAPIKey, EnvAnthropicAPIKey)
	setString(&c.AnthropicBaseURL, EnvAnthropicURL)
	setString(&c.DBTHost, EnvDBTHost)
	setString(&c.DBTToken, EnvDBTToken)
	setString(&c.CatalogFile, EnvCatalogFile)
	setString(&c.JournalDir, EnvJournalDir)
	setString(&c.HTTPAddr, EnvHTTPAddr)

	if v := strings.TrimSpace(getenv(EnvMaxTokens)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer", EnvMaxTokens, v)
		}
		c.MaxTokens = n
	}
	if v := strings.TrimSpace(getenv(EnvModelTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not a duration: %w", EnvModelTimeout, v, err)
		}
		c.ModelTimeout = d
	}
	if v := strings.TrimSpace(getenv(EnvDBTEnvID)); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer", EnvDBTEnvID, v)
		}
		c.DBTEnvironmentID = id
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldEnv maps struct fields to the variable an operator sets.
var fieldEnv = map[string]string{
	"Provider":         EnvProvider,
	"Region":           EnvRegion,
	"AccessKeyID":      EnvAccessKeyID,
	"SecretAccessKey":  EnvSecretAccessKey,
	"AnthropicAPIKey":  EnvAnthropicAPIKey,
	"AnthropicBaseURL": EnvAnthropicURL,
	"MaxTokens":        EnvMaxTokens,
	"ModelTimeout":     EnvModelTimeout,
	"DBTHost":          EnvDBTHost,
	"DBTEnvironmentID": EnvDBTEnvID,
	"DBTToken":         EnvDBTToken,
	"HTTPAddr":         EnvHTTPAddr,
}

// Part is a group of settings that one component needs.
type Part uint8

const (
	// PartModel covers the model gateway and engine settings.
	PartModel Part = 1 << iota
	// PartSemanticLayer covers the dbt connection or catalog file.
	PartSemanticLayer
	// PartHTTP covers the HTTP listener.
	PartHTTP

	PartAll = PartModel | PartSemanticLayer | PartHTTP
)

// partFields lists the validated fields of each part.
var partFields = []struct {
	part   Part
	fields []string
}{
	{PartModel, []string{"Provider", "Model", "Region", "AccessKeyID", "SecretAccessKey", "AnthropicAPIKey", "AnthropicBaseURL", "MaxTokens", "ModelTimeout"}},
	{PartSemanticLayer, []string{"DBTHost", "DBTEnvironmentID", "DBTToken"}},
	{PartHTTP, []string{"HTTPAddr"}},
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	return c.ValidateFor(PartAll)
}

// ValidateFor checks only the settings in parts.
func (c *Config) ValidateFor(parts Part) error {
	var err error
	if parts&PartAll == PartAll {
		err = validate.Struct(c)
	} else {
		var fields []string
		for _, pf := range partFields {
			if parts&pf.part != 0 {
				fields = append(fields, pf.fields...)
			}
		}
		if len(fields) == 0 {
			return nil
		}
		err = validate.StructPartial(c, fields...)
	}
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, c.describe(fe))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

// describe renders one validation failure in operator terms.
func (c *Config) describe(fe validator.FieldError) string {
	name := fieldEnv[fe.StructField()]
	if fe.StructField() == "Model" {
		name = EnvBedrockModel
		if c.Provider == llm.ProviderAnthropic {
			name = EnvClaudeModel
		}
	}
	if name == "" {
		name = fe.StructField()
	}

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required for provider %s", name, c.Provider)
	case "required_without":
		return fmt.Sprintf("%s is required unless %s is set", name, EnvCatalogFile)
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", name, EnvDBTHost)
	case "oneof":
		return fmt.Sprintf("%s=%q must be one of: %s", name, fmt.Sprint(fe.Value()), fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s=%v is out of range (%s %s)", name, fe.Value(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

// GatewaySettings returns the model gateway settings.
func (c *Config) GatewaySettings() llm.Settings {
	return llm.Settings{
		Provider:         c.Provider,
		Model:            c.Model,
		MaxTokens:        c.MaxTokens,
		Timeout:          c.ModelTimeout,
		Region:           c.Region,
		AccessKeyID:      c.AccessKeyID,
		SecretAccessKey:  c.SecretAccessKey,
		SessionToken:     c.SessionToken,
		AnthropicAPIKey:  c.AnthropicAPIKey,
		AnthropicBaseURL: c.AnthropicBaseURL,
	}
}

// GraphQLConfig returns the semantic layer client settings.
func (c *Config) GraphQLConfig() semantic.GraphQLConfig {
	return semantic.GraphQLConfig{
		Host:          c.DBTHost,
		EnvironmentID: c.DBTEnvironmentID,
		Token:         c.DBTToken,
	}
}

// LogValue implements slog.LogValuer. Secrets are reported only as set or
// unset.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", c.Provider),
		slog.String("model", c.Model),
		slog.String("region", c.Region),
		slog.Bool("aws_credentials", c.AccessKeyID != "" && c.SecretAccessKey != ""),
		slog.Bool("anthropic_key", c.AnthropicAPIKey != ""),
		slog.Int("max_tokens", c.MaxTokens),
		slog.Duration("model_timeout", c.ModelTimeout),
		slog.String("dbt_host", c.DBTHost),
		slog.String("catalog_file", c.CatalogFile),
		slog.String("journal_dir", c.JournalDir),
		slog.String("http_addr", c.HTTPAddr),
	)
}
