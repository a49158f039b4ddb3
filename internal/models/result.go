package models

// Match is one similarity search hit.
type Match struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
	Rank    int                    `json:"rank"`
}

// DocumentID returns the document_id stored in the hit's payload.
func (m *Match) DocumentID() string {
	s, _ := m.Payload[FieldDocumentID].(string)
	return s
}

// Text returns the chunk text stored in the hit's payload.
func (m *Match) Text() string {
	s, _ := m.Payload[FieldText].(string)
	return s
}

// SearchResponse is the response for a search or match request.
type SearchResponse struct {
	Matches    []*Match `json:"matches"`
	Total      int      `json:"total"`
	QueryTime  int64    `json:"query_time_ms"`
	Query      string   `json:"query"`
	Collection string   `json:"collection"`
}

// StoredChunk is a point read back from a collection, without its vector.
type StoredChunk struct {
	ID         string                 `json:"id"`
	ChunkIndex int                    `json:"chunk_index"`
	Text       string                 `json:"text"`
	Payload    map[string]interface{} `json:"payload"`
}
