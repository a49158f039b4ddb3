package models

import (
	"fmt"
	"time"
)

// Payload field names written for every point.
const (
	FieldDocumentID = "document_id"
	FieldText       = "text"
	FieldChunkIndex = "chunk_index"
	FieldNumTokens  = "num_tokens"
	FieldCreatedAt  = "created_at"
	FieldUserID     = "user_id"
)

// Point is a stored (vector, payload) pair addressed by a generated UUID.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Payload is the metadata stored alongside a point. The fixed fields are
// always present; Extra carries flat caller metadata.
type Payload struct {
	DocumentID string
	Text       string
	ChunkIndex int
	NumTokens  int
	CreatedAt  time.Time
	UserID     string
	Extra      map[string]interface{}
}

// protected fields cannot be overridden by caller metadata.
var protected = map[string]bool{
	FieldDocumentID: true,
	FieldText:       true,
	FieldChunkIndex: true,
}

// Fields flattens the payload into the stored key/value form:
// fixed fields first, then Extra (which may override num_tokens and
// created_at but never document_id, text or chunk_index), then user_id
// when set.
func (p Payload) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(p.Extra)+6)
	out[FieldDocumentID] = p.DocumentID
	out[FieldText] = p.Text
	out[FieldChunkIndex] = p.ChunkIndex
	out[FieldNumTokens] = p.NumTokens
	out[FieldCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	for k, v := range p.Extra {
		if protected[k] {
			continue
		}
		out[k] = v
	}
	if p.UserID != "" {
		out[FieldUserID] = p.UserID
	}
	return out
}

// PayloadFromFields is the inverse of Fields. Unknown keys land in Extra.
func PayloadFromFields(fields map[string]interface{}) Payload {
	p := Payload{Extra: map[string]interface{}{}}
	for k, v := range fields {
		switch k {
		case FieldDocumentID:
			p.DocumentID, _ = v.(string)
		case FieldText:
			p.Text, _ = v.(string)
		case FieldChunkIndex:
			p.ChunkIndex, _ = AsInt(v)
		case FieldNumTokens:
			n, ok := AsInt(v)
			if ok {
				p.NumTokens = n
			} else {
				p.Extra[k] = v
			}
		case FieldCreatedAt:
			s, _ := v.(string)
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				p.CreatedAt = ts
			} else {
				p.Extra[k] = v
			}
		case FieldUserID:
			p.UserID, _ = v.(string)
		default:
			p.Extra[k] = v
		}
	}
	if len(p.Extra) == 0 {
		p.Extra = nil
	}
	return p
}

// ValidateMetadata checks that every metadata value is a flat scalar
// (string, bool, integer or float).
func ValidateMetadata(metadata map[string]interface{}) error {
	for k, v := range metadata {
		if k == "" {
			return fmt.Errorf("metadata key cannot be empty")
		}
		if !IsScalar(v) {
			return fmt.Errorf("metadata %q has non-scalar value of type %T", k, v)
		}
	}
	return nil
}

// IsScalar reports whether v is a payload-compatible scalar.
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// AsInt converts integer-valued numbers (including whole float64 values decoded from JSON) to int.
func AsInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		if float32(int(n)) == n {
			return int(n), true
		}
	case float64:
		if float64(int(n)) == n {
			return int(n), true
		}
	}
	return 0, false
}
