package models

import "fmt"

const (
	DefaultTopK           = 5
	MaxTopK               = 100
	DefaultMatchThreshold = 0.5
)

// SearchQuery is a similarity search request. Filter keys are payload
// fields; all conditions must hold.
type SearchQuery struct {
	Query          string                 `json:"query"`
	Collection     string                 `json:"collection,omitempty"`
	TopK           int                    `json:"top_k,omitempty"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
	ScoreThreshold *float64               `json:"score_threshold,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise normalizes TopK.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	if err := ValidateMetadata(q.Filter); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	return nil
}

// MatchQuery finds items in TargetCollection similar to a document already
// stored in SourceCollection (e.g. jobs for a CV).
type MatchQuery struct {
	DocumentID       string                 `json:"document_id"`
	SourceCollection string                 `json:"source_collection"`
	TargetCollection string                 `json:"target_collection"`
	TopK             int                    `json:"top_k,omitempty"`
	Filter           map[string]interface{} `json:"filter,omitempty"`
	ScoreThreshold   *float64               `json:"score_threshold,omitempty"`
}

// Validate checks required fields and applies the default TopK and threshold.
func (q *MatchQuery) Validate() error {
	if q.DocumentID == "" {
		return fmt.Errorf("document_id cannot be empty")
	}
	if q.SourceCollection == "" || q.TargetCollection == "" {
		return fmt.Errorf("source_collection and target_collection are required")
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	if q.ScoreThreshold == nil {
		th := DefaultMatchThreshold
		q.ScoreThreshold = &th
	}
	if err := ValidateMetadata(q.Filter); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	return nil
}
