// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the assistant server.
// It loads and validates the YAML configuration file and carries explicit
// defaults for every routing policy knob so tests can exercise boundary
// values deterministically.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server binds.
	Host string `yaml:"host"`
	// Port is the network port on which the API server listens.
	Port int `yaml:"port"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`
	// LoggingToFile routes logs into rotating files under LogDir.
	LoggingToFile bool `yaml:"logging-to-file"`
	// LogDir is the directory for rotating log files.
	LogDir string `yaml:"log-dir"`

	// Pipeline holds routing policy knobs.
	Pipeline PipelineConfig `yaml:"pipeline"`
	// Model configures the remote model collaborator.
	Model ModelConfig `yaml:"model"`
	// Store configures the persistence collaborator.
	Store StoreConfig `yaml:"store"`
	// Embedding configures the ONNX embedding engine.
	Embedding EmbeddingConfig `yaml:"embedding"`
	// Catalogues points at the intent/entity/tool definition files.
	Catalogues CatalogueConfig `yaml:"catalogues"`
	// Cache configures the semantic answer cache.
	Cache CacheConfig `yaml:"cache"`
	// Rules are optional expression-based routing overrides.
	Rules []OverrideRule `yaml:"rules"`
}

// PipelineConfig carries the router's policy knobs. Every threshold here is
// policy, not mechanism; defaults are documented on each field.
type PipelineConfig struct {
	// PromotionThreshold is the minimum semantic-match confidence that
	// promotes a query to a direct action. Default 0.80.
	PromotionThreshold float64 `yaml:"promotion-threshold"`
	// SemanticTopK is the number of semantic candidates retrieved. Default 3.
	SemanticTopK int `yaml:"semantic-top-k"`
	// MaxTools caps the tools exposed to a model invocation. Default 3.
	MaxTools int `yaml:"max-tools"`
	// InvalidPhrases mark a response as a non-answer (substring match).
	InvalidPhrases []string `yaml:"invalid-phrases"`
	// MinSuspectLength: a response longer than this with zero reported token
	// cost fails validation. Default 20.
	MinSuspectLength int `yaml:"min-suspect-length"`
	// DirectTimeoutMs bounds a direct-tier collaborator call. Default 2000.
	DirectTimeoutMs int `yaml:"direct-timeout-ms"`
	// ComplexTimeoutMs bounds the remote model call. Default 30000.
	ComplexTimeoutMs int `yaml:"complex-timeout-ms"`
	// TokenEstimator selects the counting method: "tiktoken" or "simple".
	// Default "tiktoken".
	TokenEstimator string `yaml:"token-estimator"`
	// ElevatedRoles are role strings granted access to privileged tools.
	ElevatedRoles []string `yaml:"elevated-roles"`
}

// ModelConfig configures the remote model endpoint (OpenAI-compatible).
type ModelConfig struct {
	BaseURL   string `yaml:"base-url"`
	APIKey    string `yaml:"api-key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max-tokens"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is the database path (sqlite) or connection string (postgres).
	DSN string `yaml:"dsn"`
	// TablePrefix is the tenant table prefix applied to every query.
	TablePrefix string `yaml:"table-prefix"`
}

// EmbeddingConfig configures the ONNX embedding engine used by the semantic
// matcher. When ModelPath is empty the semantic tier stays disabled and the
// pipeline falls through to complexity-driven routing.
type EmbeddingConfig struct {
	ModelPath         string `yaml:"model-path"`
	VocabPath         string `yaml:"vocab-path"`
	SharedLibraryPath string `yaml:"shared-library-path"`
}

// CatalogueConfig points at the YAML catalogue files. Empty paths fall back
// to the embedded defaults.
type CatalogueConfig struct {
	IntentsPath  string `yaml:"intents-path"`
	EntitiesPath string `yaml:"entities-path"`
	ToolsPath    string `yaml:"tools-path"`
	// WatchIntents reloads the intent catalogue when the file changes.
	WatchIntents bool `yaml:"watch-intents"`
}

// CacheConfig configures the semantic answer cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// SimilarityThreshold is the minimum cosine similarity for a cache hit.
	// Default 0.95.
	SimilarityThreshold float64 `yaml:"similarity-threshold"`
	// MaxSize is the entry cap before LRU eviction. Default 1000.
	MaxSize int `yaml:"max-size"`
}

// OverrideRule forces a tier when its condition evaluates true. Conditions
// are expr-lang expressions over {Text, Role, Length, Hour}.
type OverrideRule struct {
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
	// ForceTier currently only supports "complex".
	ForceTier string `yaml:"force-tier"`
}

// DefaultInvalidPhrases are the built-in non-answer markers, matched as
// substrings against direct-tier responses.
var DefaultInvalidPhrases = []string{
	"unable to process",
	"no information found",
	"无法处理",
	"未找到相关信息",
}

// Default returns a Config populated with documented defaults.
func Default() *Config {
	return &Config{
		Host: "127.0.0.1",
		Port: 8317,
		Pipeline: PipelineConfig{
			PromotionThreshold: 0.80,
			SemanticTopK:       3,
			MaxTools:           3,
			InvalidPhrases:     append([]string(nil), DefaultInvalidPhrases...),
			MinSuspectLength:   20,
			DirectTimeoutMs:    2000,
			ComplexTimeoutMs:   30000,
			TokenEstimator:     "tiktoken",
			ElevatedRoles:      []string{"admin", "principal"},
		},
		Model: ModelConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 2048,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "campusmind.db",
		},
		Cache: CacheConfig{
			Enabled:             true,
			SimilarityThreshold: 0.95,
			MaxSize:             1000,
		},
	}
}

// Load reads and validates the configuration file at path. Fields left unset
// in the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field consistency.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	p := &c.Pipeline
	if p.PromotionThreshold < 0 || p.PromotionThreshold > 1 {
		return fmt.Errorf("config: promotion-threshold must be in [0,1], got %v", p.PromotionThreshold)
	}
	if p.MaxTools < 0 || p.MaxTools > 3 {
		return fmt.Errorf("config: max-tools must be in [0,3], got %d", p.MaxTools)
	}
	if p.SemanticTopK <= 0 {
		return fmt.Errorf("config: semantic-top-k must be positive, got %d", p.SemanticTopK)
	}
	if p.TokenEstimator != "tiktoken" && p.TokenEstimator != "simple" {
		return fmt.Errorf("config: token-estimator must be \"tiktoken\" or \"simple\", got %q", p.TokenEstimator)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: store driver must be \"sqlite\" or \"postgres\", got %q", c.Store.Driver)
	}
	for _, r := range c.Rules {
		if r.Condition == "" {
			return fmt.Errorf("config: rule %q has empty condition", r.Name)
		}
		if r.ForceTier != "complex" {
			return fmt.Errorf("config: rule %q has unsupported force-tier %q", r.Name, r.ForceTier)
		}
	}
	return nil
}

// IsElevated reports whether the given role grants access to privileged tools.
func (c *Config) IsElevated(role string) bool {
	for _, r := range c.Pipeline.ElevatedRoles {
		if r == role {
			return true
		}
	}
	return false
}
