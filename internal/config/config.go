// Package config loads the application configuration from YAML with
// environment variable overrides for deployment specific values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// QdrantConfig contains connection details for the vector store.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	// Provider is "ollama" or "openai".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
}

// CacheConfig bounds the embedding cache.
type CacheConfig struct {
	MaxEntries int    `yaml:"max_entries"`
	Strategy   string `yaml:"strategy"`
	TTLSecs    int    `yaml:"ttl_secs"`
}

// TTL returns the entry time-to-live; 0 means entries never expire.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// ChunkingConfig controls document splitting.
type ChunkingConfig struct {
	MaxSize           int  `yaml:"max_size"`
	MinSize           int  `yaml:"min_size"`
	OverlapPercent    int  `yaml:"overlap_percent"`
	PreserveStructure bool `yaml:"preserve_structure"`
}

// SyncConfig controls reconciliation behavior.
type SyncConfig struct {
	// DuplicateAction is "skip", "update" or "merge".
	DuplicateAction string   `yaml:"duplicate_action"`
	PreserveFields  []string `yaml:"preserve_fields"`
	BatchSize       int      `yaml:"batch_size"`
	Concurrency     int      `yaml:"concurrency"`
}

// ServeConfig configures the reporting server.
type ServeConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// Config is the root configuration.
type Config struct {
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Cache    CacheConfig    `yaml:"cache"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Sync     SyncConfig     `yaml:"sync"`
	Serve    ServeConfig    `yaml:"serve"`
}

// Load reads the config from path, falling back to defaults when the file
// does not exist. A .env file in the working directory is loaded first, then
// environment variables override the file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "knowledge_consolidator",
		},
		Embedder: EmbedderConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			BaseURL:   "http://localhost:11434",
			Dimension: 768,
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
			Strategy:   "lru",
		},
		Chunking: ChunkingConfig{
			MaxSize:           2000,
			OverlapPercent:    10,
			PreserveStructure: true,
		},
		Sync: SyncConfig{
			DuplicateAction: "skip",
			BatchSize:       100,
			Concurrency:     4,
		},
		Serve: ServeConfig{
			HTTPAddr: ":8080",
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := defaultConfig()

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = def.Qdrant.Host
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = def.Qdrant.Port
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = def.Qdrant.Collection
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = def.Embedder.Provider
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = def.Embedder.Model
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = def.Embedder.BaseURL
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = def.Embedder.Dimension
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = def.Cache.MaxEntries
	}
	if cfg.Cache.Strategy == "" {
		cfg.Cache.Strategy = def.Cache.Strategy
	}
	if cfg.Chunking.MaxSize == 0 {
		cfg.Chunking.MaxSize = def.Chunking.MaxSize
	}
	if cfg.Chunking.MinSize == 0 {
		cfg.Chunking.MinSize = cfg.Chunking.MaxSize / 10
	}
	if cfg.Chunking.OverlapPercent == 0 {
		cfg.Chunking.OverlapPercent = def.Chunking.OverlapPercent
	}
	if cfg.Sync.DuplicateAction == "" {
		cfg.Sync.DuplicateAction = def.Sync.DuplicateAction
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = def.Sync.BatchSize
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = def.Sync.Concurrency
	}
	if cfg.Serve.HTTPAddr == "" {
		cfg.Serve.HTTPAddr = def.Serve.HTTPAddr
	}
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Qdrant.Port = port
		}
	}
	if v := os.Getenv("QDRANT_COLLECTION"); v != "" {
		cfg.Qdrant.Collection = v
	}
	if v := os.Getenv("EMBEDDER_PROVIDER"); v != "" {
		cfg.Embedder.Provider = v
	}
	if v := os.Getenv("EMBEDDER_MODEL"); v != "" {
		cfg.Embedder.Model = v
	}
	if v := os.Getenv("EMBEDDER_BASE_URL"); v != "" {
		cfg.Embedder.BaseURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Serve.HTTPAddr = v
	}
}

func (c *Config) validate() error {
	switch c.Embedder.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedder provider %q", c.Embedder.Provider)
	}
	switch c.Sync.DuplicateAction {
	case "skip", "update", "merge":
	default:
		return fmt.Errorf("unknown duplicate action %q", c.Sync.DuplicateAction)
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("embedder dimension must be positive")
	}
	return nil
}
