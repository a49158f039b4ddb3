package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/jobmatch/data/db/runs.db"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "gemini":
			cfg.Embedding.Model = "text-embedding-004"
		case "openai":
			cfg.Embedding.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.Dimensions = 1536
		case "onnx":
			cfg.Embedding.Dimensions = 384
		default:
			cfg.Embedding.Dimensions = 768
		}
	}
	if cfg.Embedding.APIKeyEnv == "" {
		switch cfg.Embedding.Provider {
		case "gemini":
			cfg.Embedding.APIKeyEnv = "GOOGLE_API_KEY"
		case "openai":
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OnBatchFailure == "" {
		cfg.Embedding.OnBatchFailure = OnFailureZeroVector
	}

	if cfg.Vector.Type == "" {
		cfg.Vector.Type = "memory"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "cv_embeddings"
	}
	if cfg.Vector.Type == "memory" && cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "/usr/local/var/jobmatch/data/index.gob"
	}
	if cfg.Vector.UpsertBatchSize == 0 {
		cfg.Vector.UpsertBatchSize = 32
	}
	if cfg.Vector.Qdrant.Addr == "" {
		cfg.Vector.Qdrant.Addr = "localhost:6334"
	}
	if cfg.Vector.Qdrant.APIKeyEnv == "" {
		cfg.Vector.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
	}
	if cfg.Vector.Qdrant.Timeout == 0 {
		cfg.Vector.Qdrant.Timeout = 30 * time.Second
	}
	if cfg.Vector.Qdrant.PayloadIndexes == nil {
		cfg.Vector.Qdrant.PayloadIndexes = []string{"document_id", "user_id"}
	}

	if cfg.Chunking.Tokenizer == "" {
		cfg.Chunking.Tokenizer = "word"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 800
	}
	if cfg.Chunking.ChunkOverlap == nil {
		overlap := DefaultChunkOverlap
		cfg.Chunking.ChunkOverlap = &overlap
	}

	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.MatchThreshold == 0 {
		cfg.Search.MatchThreshold = 0.5
	}

	if cfg.CSV.Profiles == nil {
		cfg.CSV.Profiles = map[string]CSVProfile{
			"cv": {
				Collection:      "cv_embeddings",
				IDPrefix:        "cv",
				TextColumns:     []string{"Resume"},
				MetadataColumns: []string{"Category"},
				MinTextLength:   10,
			},
			"job": {
				Collection:    "job_embeddings",
				IDPrefix:      "job",
				TextColumns:   []string{"Job Title", "Job Description"},
				MinTextLength: 10,
			},
		}
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx"}
	}
	if cfg.Watch.Collection == "" {
		cfg.Watch.Collection = cfg.Vector.Collection
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 400
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
