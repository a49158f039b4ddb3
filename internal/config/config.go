// Package config provides configuration loading and structs for the jobmatch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	CSV       CSVConfig       `yaml:"csv"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the run ledger and the in-memory index snapshot.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// Batch failure policies for document embedding.
const (
	OnFailureZeroVector = "zero_vector"
	OnFailureSkip       = "skip"
)

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	// Provider is one of "gemini", "openai", "onnx" or "mock".
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	APIKey     string        `yaml:"-"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	ModelPath  string        `yaml:"model_path,omitempty"`
	MaxTokens  int           `yaml:"max_tokens,omitempty"`
	CacheSize  int           `yaml:"cache_size"`
	// OnBatchFailure is OnFailureZeroVector or OnFailureSkip.
	OnBatchFailure string `yaml:"on_batch_failure"`
}

// VectorConfig selects the vector index backend and collection defaults.
type VectorConfig struct {
	// Type is "memory" or "qdrant".
	Type            string       `yaml:"type"`
	Collection      string       `yaml:"collection"`
	UpsertBatchSize int          `yaml:"upsert_batch_size"`
	Qdrant          QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds the qdrant gRPC connection settings.
type QdrantConfig struct {
	Addr           string        `yaml:"addr"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	APIKey         string        `yaml:"-"`
	TLS            bool          `yaml:"tls"`
	Timeout        time.Duration `yaml:"timeout"`
	PayloadIndexes []string      `yaml:"payload_indexes"`
}

// ChunkingConfig holds the default chunking parameters.
type ChunkingConfig struct {
	Tokenizer           string `yaml:"tokenizer"`
	ChunkSize           int    `yaml:"chunk_size"`
	// ChunkOverlap is a pointer so an explicit 0 survives ApplyDefaults.
	ChunkOverlap        *int   `yaml:"chunk_overlap"`
	NormalizeWhitespace *bool  `yaml:"normalize_whitespace"`
}

// DefaultChunkOverlap is used when chunking.chunk_overlap is unset.
const DefaultChunkOverlap = 100

// OverlapOrDefault returns the configured chunk overlap, or DefaultChunkOverlap when unset.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.ChunkOverlap != nil {
		return *c.ChunkOverlap
	}
	return DefaultChunkOverlap
}

// NormalizeOrDefault returns whether extracted text is whitespace-normalized; defaults to true when unset.
func (c *ChunkingConfig) NormalizeOrDefault() bool {
	if c.NormalizeWhitespace != nil {
		return *c.NormalizeWhitespace
	}
	return true
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	DefaultTopK    int      `yaml:"default_top_k"`
	MaxTopK        int      `yaml:"max_top_k"`
	ScoreThreshold *float64 `yaml:"score_threshold"`
	MatchThreshold float64  `yaml:"match_threshold"`
}

// CSVConfig holds the named CSV import profiles.
type CSVConfig struct {
	Profiles map[string]CSVProfile `yaml:"profiles"`
}

// CSVProfile describes how rows of a CSV file become documents.
type CSVProfile struct {
	Collection      string   `yaml:"collection"`
	IDPrefix        string   `yaml:"id_prefix"`
	TextColumns     []string `yaml:"text_columns"`
	MetadataColumns []string `yaml:"metadata_columns"`
	OwnerColumn     string   `yaml:"owner_column,omitempty"`
	MinTextLength   int      `yaml:"min_text_length"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	Collection  string   `yaml:"collection"`
	DebounceMs  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, loads a sibling .env file,
// resolves secrets from the environment, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := LoadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Storage.SnapshotPath != "" {
		cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	overlap := c.Chunking.OverlapOrDefault()
	if c.Chunking.ChunkSize <= 0 || overlap < 0 || overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("invalid chunking: chunk_overlap (%d) must be in [0, chunk_size (%d))",
			overlap, c.Chunking.ChunkSize)
	}
	switch c.Embedding.OnBatchFailure {
	case OnFailureZeroVector, OnFailureSkip:
	default:
		return fmt.Errorf("invalid embedding.on_batch_failure %q", c.Embedding.OnBatchFailure)
	}
	switch c.Vector.Type {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("invalid vector.type %q", c.Vector.Type)
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
// Secrets resolved from the environment are never written.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
