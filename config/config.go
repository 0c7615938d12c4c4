// Package config holds the static configuration surface for the request
// execution engine: profile, model and provider registries plus global
// concurrency and retry defaults, loaded from YAML with file overrides
// merged over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ProfileConfig maps a caller-facing profile name to a model, an optional
// provider override and the tools requests under this profile may call.
type ProfileConfig struct {
	Model    string   `yaml:"model"`
	Provider string   `yaml:"provider,omitempty"` // overrides the model's default provider
	Tools    []string `yaml:"tools,omitempty"`
}

// ModelConfig declares a model's default provider and generation defaults.
type ModelConfig struct {
	Provider   string                 `yaml:"provider"`
	Generation map[string]interface{} `yaml:"generation,omitempty"`
}

// ProviderConfig declares how to reach a backend. APIKeyEnv names the
// environment variable holding the credential; the key itself never lives
// in the config file.
type ProviderConfig struct {
	APIKeyEnv string                 `yaml:"api_key_env,omitempty"`
	Defaults  map[string]interface{} `yaml:"defaults,omitempty"`
}

// ToolConfig declares a tool available to profiles that allow it.
type ToolConfig struct {
	Description string                 `yaml:"description,omitempty"`
	Parameters  map[string]interface{} `yaml:"parameters,omitempty"`
}

// RetryConfig holds the default retry policy applied to every plan.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	BackoffSec  float64  `yaml:"backoff_sec,omitempty"`
	RetryOn     []string `yaml:"retry_on,omitempty"`
}

// Globals holds engine-wide limits. The inflight budget is derived as
// MaxConcurrency * InflightMultiplier.
type Globals struct {
	MaxConcurrency     int64       `yaml:"max_concurrency,omitempty"`
	InflightMultiplier int64       `yaml:"inflight_multiplier,omitempty"`
	CacheDir           string      `yaml:"cache_dir,omitempty"`
	Retry              RetryConfig `yaml:"retry,omitempty"`
}

// LLMConfig is the full configuration surface consumed by the engine.
type LLMConfig struct {
	Profiles  map[string]*ProfileConfig  `yaml:"profiles,omitempty"`
	Models    map[string]*ModelConfig    `yaml:"models,omitempty"`
	Providers map[string]*ProviderConfig `yaml:"providers,omitempty"`
	Tools     map[string]*ToolConfig     `yaml:"tools,omitempty"`
	Globals   Globals                    `yaml:"globals,omitempty"`
}

// ReferenceError reports a profile, model or provider reference that does
// not exist in the configuration.
type ReferenceError struct {
	Kind string // "profile", "model" or "provider"
	Name string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("llm config: unknown %s %q", e.Kind, e.Name)
}

// CredentialError reports a provider whose credential environment variable
// is not set.
type CredentialError struct {
	Provider string
	Env      string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("llm config: provider %q requires %s to be set", e.Provider, e.Env)
}

// Defaults returns the built-in configuration that file contents are merged
// over.
func Defaults() *LLMConfig {
	return &LLMConfig{
		Globals: Globals{
			MaxConcurrency:     10,
			InflightMultiplier: 2,
			Retry: RetryConfig{
				MaxAttempts: 2,
				BackoffSec:  2,
				RetryOn:     []string{"5xx", "408", "429"},
			},
		},
	}
}

// DefaultPath returns the config file path, honoring DOCFORGE_CONFIG_PATH.
func DefaultPath() string {
	if envPath := os.Getenv("DOCFORGE_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.docforge/config.yaml"
	}
	return filepath.Join(homeDir, ".docforge", "config.yaml")
}

// Load reads the YAML file at path and merges it over the built-in
// defaults. File values win.
func Load(path string) (*LLMConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse unmarshals raw YAML and merges it over the built-in defaults.
func Parse(raw []byte) (*LLMConfig, error) {
	var fileCfg LLMConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := Defaults()
	if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging config: %w", err)
	}
	return cfg, nil
}

// APIKey resolves a provider's credential from the environment. Providers
// without an APIKeyEnv (such as local backends) resolve to an empty key.
func (p *ProviderConfig) APIKey(provider string) (string, error) {
	if p.APIKeyEnv == "" {
		return "", nil
	}
	key := os.Getenv(p.APIKeyEnv)
	if key == "" {
		return "", &CredentialError{Provider: provider, Env: p.APIKeyEnv}
	}
	return key, nil
}
