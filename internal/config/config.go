// Package config loads infomap configuration from YAML with environment
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all infomap configuration.
type Config struct {
	// LLM configures the generative text collaborator.
	LLM LLMConfig `yaml:"llm"`

	// Embedding configures the embedding collaborator.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Mapping configures the schema-mapping engine.
	Mapping MappingConfig `yaml:"mapping"`

	// Stores configures durable state.
	Stores StoresConfig `yaml:"stores"`

	// Pipeline configures the stage orchestrator.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging configures categorized debug logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the OpenAI-compatible chat endpoint used by the
// generator, reflector and curator roles.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "genai"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	TaskType       string `yaml:"task_type"`
}

// MappingConfig configures the mapping engine proper.
type MappingConfig struct {
	// SchemaPath points at the information-item YAML definition.
	SchemaPath string `yaml:"schema_path"`

	// MinConfidence is the similarity floor for header matches.
	MinConfidence float64 `yaml:"min_confidence"`

	// Relation is the name the input table is exposed under in SQL.
	Relation string `yaml:"relation"`

	// CachePolicy selects how multiple cached rows per fingerprint are
	// consulted: "newest" uses only the most recent row, "all" tries rows
	// most-recent-first when execution fails.
	CachePolicy string `yaml:"cache_policy"`
}

// StoresConfig configures the fingerprint cache and playbook store.
type StoresConfig struct {
	CachePath         string `yaml:"cache_path"`
	PlaybookDir       string `yaml:"playbook_dir"`
	PlaybookNamespace string `yaml:"playbook_namespace"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	WorkDir string `yaml:"work_dir"`

	// Timeout bounds one full run; empty or zero means no bound.
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures categorized logging.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:   "qwen-plus",
			Timeout: "120s",
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},
		Mapping: MappingConfig{
			SchemaPath:    "config/info_items.yaml",
			MinConfidence: 0.4,
			Relation:      "df",
			CachePolicy:   "newest",
		},
		Stores: StoresConfig{
			CachePath:         "config/standard.db",
			PlaybookDir:       "config",
			PlaybookNamespace: "spreadsheet",
		},
		Pipeline: PipelineConfig{
			WorkDir: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets secrets come from the environment so they never
// have to live in the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INFOMAP_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("INFOMAP_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("INFOMAP_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("INFOMAP_GENAI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
}

// PipelineTimeout parses the configured run timeout; zero means unbounded.
func (c *Config) PipelineTimeout() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// LLMTimeout parses the configured LLM timeout, falling back to two minutes.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}
