package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name     string
		query    *SearchQuery
		wantErr  bool
		wantTopK int
	}{
		{"empty query", &SearchQuery{Query: ""}, true, 0},
		{"valid query", &SearchQuery{Query: "hello"}, false, DefaultTopK},
		{"keeps explicit top_k", &SearchQuery{Query: "x", TopK: 7}, false, 7},
		{"caps top_k at 100", &SearchQuery{Query: "x", TopK: 200}, false, MaxTopK},
		{"rejects nested filter", &SearchQuery{Query: "x", Filter: map[string]interface{}{"tags": []string{"a"}}}, true, 0},
		{"accepts scalar filter", &SearchQuery{Query: "x", Filter: map[string]interface{}{"user_id": "A", "active": true}}, false, DefaultTopK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantTopK)
			}
		})
	}
}

func TestMatchQuery_Validate(t *testing.T) {
	q := &MatchQuery{DocumentID: "cv_1", SourceCollection: "cv_embeddings", TargetCollection: "job_embeddings"}
	if err := q.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if q.TopK != DefaultTopK {
		t.Errorf("TopK = %d", q.TopK)
	}
	if q.ScoreThreshold == nil || *q.ScoreThreshold != DefaultMatchThreshold {
		t.Errorf("ScoreThreshold = %v", q.ScoreThreshold)
	}

	if err := (&MatchQuery{SourceCollection: "a", TargetCollection: "b"}).Validate(); err == nil {
		t.Error("expected error for missing document_id")
	}
	if err := (&MatchQuery{DocumentID: "d", SourceCollection: "a"}).Validate(); err == nil {
		t.Error("expected error for missing target collection")
	}
}
