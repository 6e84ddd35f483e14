// Package config loads and validates the application configuration.
// Clean Architecture: Framework/driver layer - nothing in the domain
// depends on this.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	KB        KBConfig        `yaml:"kb"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Server    ServerConfig    `yaml:"server"`
}

// KBConfig describes the knowledge base.
type KBConfig struct {
	// Size selects the threshold profile: "small", "medium", or "large".
	Size string `yaml:"size"`
	// ChunkMetaPath is the chunk metadata JSON file produced by the
	// ingestion pipeline.
	ChunkMetaPath string `yaml:"chunk_meta_path"`
	// DataPath is the directory for the persistent chunk index.
	DataPath string `yaml:"data_path"`
	// Watch reloads the index when the chunk metadata file changes.
	Watch bool `yaml:"watch"`
}

// PipelineConfig toggles the adaptive pipeline's optional stages.
type PipelineConfig struct {
	Decomposition bool `yaml:"decomposition"`
	Evaluation    bool `yaml:"evaluation"`
	// CitationPattern overrides the citation id shape; must contain one
	// capture group for the document id.
	CitationPattern string `yaml:"citation_pattern"`
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	// Provider is "ollama" or "gemini".
	Provider       string `yaml:"provider"`
	OllamaURL      string `yaml:"ollama_url"`
	Model          string `yaml:"model"`
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the generation deadline as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	OllamaURL string `yaml:"ollama_url"`
	Model     string `yaml:"model"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		KB: KBConfig{
			Size:          "small",
			ChunkMetaPath: "embeddings/chunk_meta.json",
			DataPath:      "./data",
			Watch:         true,
		},
		Pipeline: PipelineConfig{
			Decomposition: true,
			Evaluation:    true,
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			TimeoutSeconds: 120,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. The Gemini API key may also come from the
// ADAPTIVERAG_GEMINI_API_KEY environment variable.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	if key := os.Getenv("ADAPTIVERAG_GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiAPIKey = key
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.KB.Size {
	case "small", "medium", "large":
	default:
		return fmt.Errorf("kb.size must be small, medium, or large, got %q", c.KB.Size)
	}

	switch c.LLM.Provider {
	case "ollama":
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("llm.gemini_api_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("llm.provider must be ollama or gemini, got %q", c.LLM.Provider)
	}

	if c.Pipeline.CitationPattern != "" {
		re, err := regexp.Compile(c.Pipeline.CitationPattern)
		if err != nil {
			return fmt.Errorf("pipeline.citation_pattern: %w", err)
		}
		if re.NumSubexp() != 1 {
			return fmt.Errorf("pipeline.citation_pattern must have exactly one capture group for the doc id")
		}
	}
	return nil
}

// CitationRegexp compiles the configured citation pattern, or nil when the
// default should be used.
func (c *Config) CitationRegexp() *regexp.Regexp {
	if c.Pipeline.CitationPattern == "" {
		return nil
	}
	return regexp.MustCompile(c.Pipeline.CitationPattern)
}
