package model

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds all aclarai configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	Claimify     ClaimifyConfig     `yaml:"claimify" mapstructure:"claimify"`
	Concepts     ConceptsConfig     `yaml:"concepts" mapstructure:"concepts"`
	Sync         SyncConfig         `yaml:"sync" mapstructure:"sync"`
	Graph        GraphConfig        `yaml:"graph" mapstructure:"graph"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Redis        RedisConfig        `yaml:"redis" mapstructure:"redis"`
	Vault        VaultConfig        `yaml:"vault" mapstructure:"vault"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig configures the completion provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"` // From env only, never written to disk
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ClaimifyConfig configures the three-stage claim extraction pipeline
type ClaimifyConfig struct {
	ContextWindowP                    int     `yaml:"context_window_p" mapstructure:"context_window_p"`
	ContextWindowF                    int     `yaml:"context_window_f" mapstructure:"context_window_f"`
	SelectionConfidenceThreshold      float64 `yaml:"selection_confidence_threshold" mapstructure:"selection_confidence_threshold"`
	DisambiguationConfidenceThreshold float64 `yaml:"disambiguation_confidence_threshold" mapstructure:"disambiguation_confidence_threshold"`
	DecompositionConfidenceThreshold  float64 `yaml:"decomposition_confidence_threshold" mapstructure:"decomposition_confidence_threshold"`
	SelectionModel                    string  `yaml:"selection_model,omitempty" mapstructure:"selection_model"`
	DisambiguationModel               string  `yaml:"disambiguation_model,omitempty" mapstructure:"disambiguation_model"`
	DecompositionModel                string  `yaml:"decomposition_model,omitempty" mapstructure:"decomposition_model"`
	TimeoutSeconds                    int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries                        int     `yaml:"max_retries" mapstructure:"max_retries"`
	Segmenter                         string  `yaml:"segmenter" mapstructure:"segmenter"` // rule, prose
	MinChunkChars                     int     `yaml:"min_chunk_chars" mapstructure:"min_chunk_chars"`
}

// StageTimeout returns the per-stage timeout as a duration
func (c ClaimifyConfig) StageTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ConceptsConfig configures noun phrase deduplication
type ConceptsConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	TopK                int     `yaml:"top_k" mapstructure:"top_k"`
	BatchMode           string  `yaml:"batch_mode" mapstructure:"batch_mode"` // sequential, independent
	M                   int     `yaml:"m" mapstructure:"m"`
	EfConstruction      int     `yaml:"ef_construction" mapstructure:"ef_construction"`
	EfSearch            int     `yaml:"ef_search" mapstructure:"ef_search"`
	RebuildSchedule     string  `yaml:"rebuild_schedule" mapstructure:"rebuild_schedule"` // cron spec, empty disables
}

// Batch modes for concept detection
const (
	BatchSequential  = "sequential"
	BatchIndependent = "independent"
)

// SyncConfig configures the vault sync engine
type SyncConfig struct {
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Workers        int           `yaml:"workers" mapstructure:"workers"`
}

// GraphConfig configures the Neo4j connection
type GraphConfig struct {
	URI      string `yaml:"uri,omitempty" mapstructure:"uri"` // Empty selects the in-memory graph
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"-" mapstructure:"password"`
	Database string `yaml:"database,omitempty" mapstructure:"database"`
}

// StoreConfig configures the candidate store
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // SQLite file, ":memory:" for ephemeral
}

// RedisConfig configures the change notification stream
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"-" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Stream   string `yaml:"stream" mapstructure:"stream"`
	Group    string `yaml:"group" mapstructure:"group"`
	Consumer string `yaml:"consumer" mapstructure:"consumer"`
}

// VaultConfig configures the Markdown vault
type VaultConfig struct {
	Root        string `yaml:"root" mapstructure:"root"`
	ConceptsDir string `yaml:"concepts_dir" mapstructure:"concepts_dir"`
}

// CacheConfig configures the embedding cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig bounds parallel chunk processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig limits provider calls
type RateLimitingConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig selects the log encoder and level
type LoggingConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"` // dev, prod
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   1000,
			Temperature: 0.1,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 64,
		},
		Claimify: ClaimifyConfig{
			ContextWindowP:                    3,
			ContextWindowF:                    1,
			SelectionConfidenceThreshold:      0.5,
			DisambiguationConfidenceThreshold: 0.5,
			DecompositionConfidenceThreshold:  0.5,
			TimeoutSeconds:                    30,
			MaxRetries:                        3,
			Segmenter:                         "rule",
			MinChunkChars:                     3,
		},
		Concepts: ConceptsConfig{
			SimilarityThreshold: 0.9,
			TopK:                10,
			BatchMode:           BatchSequential,
			M:                   16,
			EfConstruction:      200,
			EfSearch:            50,
			RebuildSchedule:     "*/30 * * * *",
		},
		Sync: SyncConfig{
			MaxRetries:     3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Workers:        4,
		},
		Graph: GraphConfig{
			Database: "neo4j",
		},
		Store: StoreConfig{
			Path: "~/.aclarai/candidates.db",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Stream:   "aclarai:vault:changes",
			Group:    "aclarai-sync",
			Consumer: "aclarai-1",
		},
		Vault: VaultConfig{
			Root:        ".",
			ConceptsDir: "concepts",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "~/.aclarai/cache",
			TTL:     7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		RateLimiting: RateLimitingConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Logging: LoggingConfig{
			Mode:  "prod",
			Level: "info",
		},
	}
}

// Validate rejects configurations the core cannot run with
func (c *Config) Validate() error {
	cl := c.Claimify
	if cl.ContextWindowP < 0 || cl.ContextWindowF < 0 {
		return fmt.Errorf("context window sizes must be non-negative (p=%d, f=%d)", cl.ContextWindowP, cl.ContextWindowF)
	}
	for name, v := range map[string]float64{
		"selection_confidence_threshold":      cl.SelectionConfidenceThreshold,
		"disambiguation_confidence_threshold": cl.DisambiguationConfidenceThreshold,
		"decomposition_confidence_threshold":  cl.DecompositionConfidenceThreshold,
		"similarity_threshold":                c.Concepts.SimilarityThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	switch c.Concepts.BatchMode {
	case BatchSequential, BatchIndependent:
	default:
		return fmt.Errorf("unknown concepts.batch_mode %q", c.Concepts.BatchMode)
	}
	if c.Concepts.TopK <= 0 {
		return fmt.Errorf("concepts.top_k must be positive")
	}
	return nil
}
