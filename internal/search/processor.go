package search

import (
	"strings"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/models"
)

// ProcessQuery validates the search query and applies the configured
// top_k default, cap and score threshold.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	if query == nil {
		return apperr.InvalidParameter("search query cannot be nil")
	}
	if strings.TrimSpace(query.Query) == "" {
		return apperr.InvalidParameter("query cannot be empty")
	}
	if query.TopK < 0 {
		return apperr.InvalidParameter("top_k must be positive, got %d", query.TopK)
	}
	if query.TopK == 0 && cfg != nil && cfg.DefaultTopK > 0 {
		query.TopK = cfg.DefaultTopK
	}
	if cfg != nil && cfg.MaxTopK > 0 && query.TopK > cfg.MaxTopK {
		query.TopK = cfg.MaxTopK
	}
	if query.ScoreThreshold == nil && cfg != nil {
		query.ScoreThreshold = cfg.ScoreThreshold
	}
	if err := query.Validate(); err != nil {
		return apperr.InvalidParameter("%v", err)
	}
	return nil
}

// ProcessMatch validates a match query and applies the configured
// defaults. The match threshold defaults to 0.5.
func ProcessMatch(query *models.MatchQuery, cfg *config.SearchConfig) error {
	if query == nil {
		return apperr.InvalidParameter("match query cannot be nil")
	}
	if query.TopK < 0 {
		return apperr.InvalidParameter("top_k must be positive, got %d", query.TopK)
	}
	if cfg != nil {
		if query.TopK == 0 && cfg.DefaultTopK > 0 {
			query.TopK = cfg.DefaultTopK
		}
		if cfg.MaxTopK > 0 && query.TopK > cfg.MaxTopK {
			query.TopK = cfg.MaxTopK
		}
		if query.ScoreThreshold == nil && cfg.MatchThreshold > 0 {
			th := cfg.MatchThreshold
			query.ScoreThreshold = &th
		}
	}
	if err := query.Validate(); err != nil {
		return apperr.InvalidParameter("%v", err)
	}
	return nil
}
