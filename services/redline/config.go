// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package redline

import (
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/mutation"
	"github.com/AleutianAI/AleutianRedline/services/redline/pipeline"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Configuration
// =============================================================================

// Config is the complete service configuration.
//
// # Sources
//
// LoadConfig layers, lowest precedence first: built-in defaults, an optional
// YAML file, then environment variables. The CLI applies flags on top.
type Config struct {
	Port     int    `yaml:"port" env:"REDLINE_PORT" validate:"min=1,max=65535"`
	APIToken string `yaml:"api_token" env:"REDLINE_API_TOKEN"`

	// Concurrency bounds parallel instructions in a batch run.
	Concurrency int `yaml:"concurrency" env:"REDLINE_CONCURRENCY" validate:"min=1"`

	MaxDocumentBytes int64 `yaml:"max_document_bytes" env:"REDLINE_MAX_DOCUMENT_BYTES" validate:"min=1"`

	LLM       LLMConfig       `yaml:"llm"`
	Engine    EngineConfig    `yaml:"engine"`
	Documents DocumentsConfig `yaml:"documents"`
	Status    StatusConfig    `yaml:"status"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig selects and configures the reasoning backend.
type LLMConfig struct {
	Backend string `yaml:"backend" env:"REDLINE_LLM_BACKEND" validate:"oneof=openai ollama"`

	OpenAIAPIKey  string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIModel   string `yaml:"openai_model" env:"OPENAI_MODEL"`
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`

	OllamaURL   string `yaml:"ollama_url" env:"OLLAMA_URL" validate:"required_if=Backend ollama"`
	OllamaModel string `yaml:"ollama_model" env:"OLLAMA_MODEL"`

	// RequestsPerSecond limits reasoning calls. Zero disables the limit.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REDLINE_LLM_RPS" validate:"min=0"`
	Burst             int     `yaml:"burst" env:"REDLINE_LLM_BURST" validate:"min=0"`
}

// EngineConfig locates the python document engine.
type EngineConfig struct {
	Python        string        `yaml:"python" env:"REDLINE_PYTHON" validate:"required"`
	ScriptsDir    string        `yaml:"scripts_dir" env:"REDLINE_SCRIPTS_DIR" validate:"required"`
	TempDir       string        `yaml:"temp_dir" env:"REDLINE_TEMP_DIR"`
	ScriptTimeout time.Duration `yaml:"script_timeout" env:"REDLINE_SCRIPT_TIMEOUT" validate:"min=0"`
}

// DocumentsConfig locates the contracts that instructions refer to. A GCS
// bucket takes precedence over Dir.
type DocumentsConfig struct {
	Dir            string `yaml:"dir" env:"REDLINE_DOCUMENTS_DIR"`
	GCSBucket      string `yaml:"gcs_bucket" env:"REDLINE_GCS_BUCKET"`
	GCSPrefix      string `yaml:"gcs_prefix" env:"REDLINE_GCS_PREFIX"`
	GCSCredentials string `yaml:"gcs_credentials" env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// StatusConfig selects the status store.
type StatusConfig struct {
	Backend string `yaml:"backend" env:"REDLINE_STATUS_BACKEND" validate:"oneof=memory badger"`
	Path    string `yaml:"path" env:"REDLINE_STATUS_PATH" validate:"required_if=Backend badger"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter    string `yaml:"exporter" env:"OTEL_TRACES_EXPORTER" validate:"oneof=otlp stdout none"`
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"REDLINE_LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json" env:"REDLINE_LOG_JSON"`
	Dir   string `yaml:"dir" env:"REDLINE_LOG_DIR"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	var cfg Config
	applyConfigDefaults(&cfg)
	return cfg
}

// applyConfigDefaults fills zero values.
func applyConfigDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = pipeline.DefaultConcurrency
	}
	if cfg.MaxDocumentBytes == 0 {
		cfg.MaxDocumentBytes = datatypes.MaxDocumentBytes
	}
	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = "openai"
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 1
	}
	if cfg.Engine.Python == "" {
		cfg.Engine.Python = "python3"
	}
	if cfg.Engine.ScriptsDir == "" {
		cfg.Engine.ScriptsDir = "scripts"
	}
	if cfg.Engine.ScriptTimeout == 0 {
		cfg.Engine.ScriptTimeout = mutation.DefaultScriptTimeout
	}
	if cfg.Documents.Dir == "" {
		cfg.Documents.Dir = "test-documents"
	}
	if cfg.Status.Backend == "" {
		cfg.Status.Backend = "memory"
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "none"
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = "localhost:4317"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "redline"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

var configValidate = validator.New()

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig builds a Config from an optional YAML file and the environment.
//
// # Inputs
//
//   - path: YAML file. Empty skips the file.
//
// # Outputs
//
//   - Config: Populated, defaulted and validated.
//   - error: Unreadable file, malformed YAML or env, or failed validation.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
