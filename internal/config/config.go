// Package config loads and validates the process configuration. Files may be
// YAML or JSON; both are decoded strictly so typos in keys fail loudly.
// Secrets never live in the file: the LLM API key is read from the
// environment variable named by llm.api_key_env.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	Enabled       *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	APIKeyEnv     string  `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL       string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	PrimaryModel  string  `json:"primary_model,omitempty" yaml:"primary_model,omitempty"`
	FallbackModel string  `json:"fallback_model,omitempty" yaml:"fallback_model,omitempty"`
	MaxRetries    *int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	TimeoutMS     *int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Temperature   float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens     int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

type AuditConfig struct {
	Enabled        *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Dir            string `json:"dir,omitempty" yaml:"dir,omitempty"`
	StoreMessage   bool   `json:"store_message,omitempty" yaml:"store_message,omitempty"`
	MessageMaxLen  int    `json:"message_max_len,omitempty" yaml:"message_max_len,omitempty"`
	StoreFilePaths *bool  `json:"store_file_paths,omitempty" yaml:"store_file_paths,omitempty"`
}

type ArtifactConfig struct {
	ExcludeGlobs []string `json:"exclude_globs,omitempty" yaml:"exclude_globs,omitempty"`
}

type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

type Config struct {
	Version int `json:"version" yaml:"version"`

	// ActiveHandler pins every request to one handler id; "auto" routes.
	ActiveHandler  string `json:"active_handler,omitempty" yaml:"active_handler,omitempty"`
	DefaultHandler string `json:"default_handler,omitempty" yaml:"default_handler,omitempty"`

	Workspace string `json:"workspace,omitempty" yaml:"workspace,omitempty"`

	LLM       LLMConfig      `json:"llm,omitempty" yaml:"llm,omitempty"`
	Audit     AuditConfig    `json:"audit,omitempty" yaml:"audit,omitempty"`
	Artifacts ArtifactConfig `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Logging   LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a config file (extension decides JSON vs YAML), applies defaults
// and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := decodeJSONStrict(b, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := decodeYAMLStrict(b, &cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeJSONStrict(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("json: multiple top-level values are not allowed")
		}
		return err
	}
	return nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.ActiveHandler) == "" {
		cfg.ActiveHandler = "auto"
	}
	if strings.TrimSpace(cfg.DefaultHandler) == "" {
		cfg.DefaultHandler = "dia"
	}
	if strings.TrimSpace(cfg.Workspace) == "" {
		cfg.Workspace = "workspace"
	}

	if cfg.LLM.Enabled == nil {
		t := true
		cfg.LLM.Enabled = &t
	}
	if strings.TrimSpace(cfg.LLM.APIKeyEnv) == "" {
		cfg.LLM.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if strings.TrimSpace(cfg.LLM.BaseURL) == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if strings.TrimSpace(cfg.LLM.PrimaryModel) == "" {
		cfg.LLM.PrimaryModel = "anthropic/claude-3.5-sonnet"
	}
	if strings.TrimSpace(cfg.LLM.FallbackModel) == "" {
		cfg.LLM.FallbackModel = "openai/gpt-4o-mini"
	}
	if cfg.LLM.MaxRetries == nil {
		v := 1
		cfg.LLM.MaxRetries = &v
	}
	if cfg.LLM.TimeoutMS == nil {
		v := 45_000
		cfg.LLM.TimeoutMS = &v
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 900
	}

	if cfg.Audit.Enabled == nil {
		t := true
		cfg.Audit.Enabled = &t
	}
	if cfg.Audit.MessageMaxLen == 0 {
		cfg.Audit.MessageMaxLen = 200
	}
	if cfg.Audit.StoreFilePaths == nil {
		t := true
		cfg.Audit.StoreFilePaths = &t
	}

	cfg.Artifacts.ExcludeGlobs = trimNonEmpty(cfg.Artifacts.ExcludeGlobs)

	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Logging.Format) == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", cfg.Version)
	}
	if *cfg.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0")
	}
	if *cfg.LLM.TimeoutMS < 0 {
		return fmt.Errorf("llm.timeout_ms must be >= 0")
	}
	if cfg.Audit.MessageMaxLen <= 0 {
		return fmt.Errorf("audit.message_max_len must be > 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "text", "json":
		// ok
	default:
		return fmt.Errorf("invalid logging.format: %q (want text|json)", cfg.Logging.Format)
	}
	for _, g := range cfg.Artifacts.ExcludeGlobs {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("invalid artifacts.exclude_globs pattern: %q", g)
		}
	}
	return nil
}

// APIKey resolves the LLM credential from the environment.
func (c *Config) APIKey() string {
	if c == nil || strings.TrimSpace(c.LLM.APIKeyEnv) == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
}

// LLMEnabled reports the effective llm.enabled value.
func (c *Config) LLMEnabled() bool {
	return c != nil && c.LLM.Enabled != nil && *c.LLM.Enabled
}

// AuditEnabled reports the effective audit.enabled value.
func (c *Config) AuditEnabled() bool {
	return c != nil && c.Audit.Enabled != nil && *c.Audit.Enabled
}

// AuditDir returns audit.dir, defaulting to <workspace>/audit.
func (c *Config) AuditDir() string {
	if c == nil {
		return filepath.Join("workspace", "audit")
	}
	if strings.TrimSpace(c.Audit.Dir) != "" {
		return c.Audit.Dir
	}
	return filepath.Join(c.Workspace, "audit")
}

func trimNonEmpty(parts []string) []string {
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
