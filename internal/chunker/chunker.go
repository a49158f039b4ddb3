// Package chunker splits text into overlapping, fixed-size token windows.
package chunker

import (
	"unicode/utf8"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/models"
)

// Chunker splits text into overlapping token windows of a fixed size.
type Chunker struct {
	tokenizer    Tokenizer
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in tokens).
func NewChunker(tokenizer Tokenizer, chunkSize, chunkOverlap int) (*Chunker, error) {
	if err := validate(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		tokenizer = WordTokenizer{}
	}
	return &Chunker{tokenizer: tokenizer, chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into windows. Empty text yields no chunks.
func (c *Chunker) Chunk(text string) []models.Chunk {
	return split(text, c.tokenizer.Tokenize(text), c.chunkSize, c.chunkOverlap)
}

// Tokenizer returns the tokenizer used by the chunker.
func (c *Chunker) Tokenizer() Tokenizer { return c.tokenizer }

// Chunk tokenizes text with tokenizer and splits it into windows of
// chunkSize tokens, consecutive windows sharing chunkOverlap tokens.
func Chunk(tokenizer Tokenizer, text string, chunkSize, chunkOverlap int) ([]models.Chunk, error) {
	c, err := NewChunker(tokenizer, chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text), nil
}

// Windows returns the [start, end) token ranges for a sequence of total
// tokens. Windows start at 0 and advance by size-overlap; iteration stops
// at the first window that reaches total, so the last window may be short.
func Windows(total, chunkSize, chunkOverlap int) [][2]int {
	if total <= 0 {
		return nil
	}
	step := chunkSize - chunkOverlap
	windows := make([][2]int, 0, total/step+1)
	for start := 0; start < total; start += step {
		end := start + chunkSize
		if end > total {
			end = total
		}
		windows = append(windows, [2]int{start, end})
		if end >= total {
			break
		}
	}
	return windows
}

func split(text string, spans []Span, chunkSize, chunkOverlap int) []models.Chunk {
	windows := Windows(len(spans), chunkSize, chunkOverlap)
	if len(windows) == 0 {
		return nil
	}
	chunks := make([]models.Chunk, 0, len(windows))
	for _, w := range windows {
		// BPE tokens can end inside a multi-byte rune; widen to rune boundaries.
		start, end := spans[w[0]].Start, spans[w[1]-1].End
		for start > 0 && !utf8.RuneStart(text[start]) {
			start--
		}
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
		chunks = append(chunks, models.Chunk{
			Text:       text[start:end],
			StartToken: w[0],
			EndToken:   w[1],
			NumTokens:  w[1] - w[0],
		})
	}
	return chunks
}

func validate(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return apperr.InvalidParameter("chunk_size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return apperr.InvalidParameter("chunk_overlap cannot be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return apperr.InvalidParameter("chunk_overlap (%d) must be smaller than chunk_size (%d)", chunkOverlap, chunkSize)
	}
	return nil
}
