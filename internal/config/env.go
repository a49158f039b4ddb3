package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvQdrantURL overrides vector.qdrant.addr when set.
const EnvQdrantURL = "QDRANT_URL"

// LoadDotEnv loads variables from the .env file at path without overriding
// variables already set in the process environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv resolves secrets and endpoint overrides from the environment.
func ApplyEnv(cfg *Config) {
	if cfg.Embedding.APIKeyEnv != "" {
		if v := os.Getenv(cfg.Embedding.APIKeyEnv); v != "" {
			cfg.Embedding.APIKey = v
		}
	}
	if cfg.Vector.Qdrant.APIKeyEnv != "" {
		if v := os.Getenv(cfg.Vector.Qdrant.APIKeyEnv); v != "" {
			cfg.Vector.Qdrant.APIKey = v
		}
	}
	if v := os.Getenv(EnvQdrantURL); v != "" {
		cfg.Vector.Qdrant.Addr = v
	}
}
