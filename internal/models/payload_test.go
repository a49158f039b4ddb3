package models

import (
	"testing"
	"time"
)

func TestPayload_FieldsPrecedence(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p := Payload{
		DocumentID: "doc1",
		Text:       "Python developer",
		ChunkIndex: 2,
		NumTokens:  3,
		CreatedAt:  created,
		UserID:     "owner-A",
		Extra: map[string]interface{}{
			"document_id": "hijacked",
			"text":        "hijacked",
			"chunk_index": 99,
			"num_tokens":  42,
			"created_at":  "2020-01-01T00:00:00Z",
			"user_id":     "owner-B",
			"Category":    "Data Science",
		},
	}
	f := p.Fields()

	if f[FieldDocumentID] != "doc1" || f[FieldText] != "Python developer" || f[FieldChunkIndex] != 2 {
		t.Errorf("protected fields were overridden: %v", f)
	}
	if f[FieldNumTokens] != 42 {
		t.Errorf("num_tokens should be overridable by metadata, got %v", f[FieldNumTokens])
	}
	if f[FieldCreatedAt] != "2020-01-01T00:00:00Z" {
		t.Errorf("created_at should be overridable by metadata, got %v", f[FieldCreatedAt])
	}
	if f[FieldUserID] != "owner-A" {
		t.Errorf("owner id should win over metadata user_id, got %v", f[FieldUserID])
	}
	if f["Category"] != "Data Science" {
		t.Errorf("extra metadata missing: %v", f)
	}
}

func TestPayload_FieldsWithoutOwner(t *testing.T) {
	p := Payload{DocumentID: "d", Extra: map[string]interface{}{"user_id": "from-metadata"}}
	if got := p.Fields()[FieldUserID]; got != "from-metadata" {
		t.Errorf("metadata user_id should survive when no owner is given, got %v", got)
	}
	p = Payload{DocumentID: "d"}
	if _, ok := p.Fields()[FieldUserID]; ok {
		t.Error("user_id should be absent without owner or metadata")
	}
}

func TestPayloadFromFields(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	in := Payload{
		DocumentID: "doc1",
		Text:       "hello",
		ChunkIndex: 1,
		NumTokens:  5,
		CreatedAt:  created,
		UserID:     "u1",
		Extra:      map[string]interface{}{"source": "csv"},
	}
	// JSON and protobuf decoders hand numbers back as float64 or int64.
	fields := in.Fields()
	fields[FieldChunkIndex] = float64(1)
	fields[FieldNumTokens] = int64(5)

	out := PayloadFromFields(fields)
	if out.DocumentID != "doc1" || out.Text != "hello" || out.ChunkIndex != 1 || out.NumTokens != 5 || out.UserID != "u1" {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if !out.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", out.CreatedAt)
	}
	if out.Extra["source"] != "csv" {
		t.Errorf("Extra = %v", out.Extra)
	}
}

func TestValidateMetadata(t *testing.T) {
	ok := map[string]interface{}{"a": "x", "b": 1, "c": 2.5, "d": true, "e": int64(3)}
	if err := ValidateMetadata(ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateMetadata(map[string]interface{}{"nested": map[string]string{}}); err == nil {
		t.Error("expected error for nested map")
	}
	if err := ValidateMetadata(map[string]interface{}{"": "x"}); err == nil {
		t.Error("expected error for empty key")
	}
	if err := ValidateMetadata(nil); err != nil {
		t.Errorf("nil metadata should be valid: %v", err)
	}
}

func TestAsInt(t *testing.T) {
	if n, ok := AsInt(float64(3)); !ok || n != 3 {
		t.Errorf("AsInt(3.0) = %d, %v", n, ok)
	}
	if _, ok := AsInt(3.5); ok {
		t.Error("AsInt(3.5) should fail")
	}
	if _, ok := AsInt("3"); ok {
		t.Error("AsInt(string) should fail")
	}
}
