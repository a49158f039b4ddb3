package chunker

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Span is the byte range [Start, End) of one token in the source text.
type Span struct {
	Start int
	End   int
}

// Tokenizer splits text into token spans. Implementations must be
// deterministic and the spans must be ordered and non-overlapping.
type Tokenizer interface {
	Name() string
	Tokenize(text string) []Span
}

// WordTokenizer emits one token per run of letters/digits and one token per
// other non-space rune. Whitespace is never a token.
type WordTokenizer struct{}

// Name returns "word".
func (WordTokenizer) Name() string { return "word" }

// Tokenize splits text into word and punctuation spans.
func (WordTokenizer) Tokenize(text string) []Span {
	var spans []Span
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			spans = append(spans, Span{Start: start, End: i})
			start = -1
		}
		if !unicode.IsSpace(r) {
			spans = append(spans, Span{Start: i, End: i + utf8.RuneLen(r)})
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

var loaderOnce sync.Once

// TiktokenTokenizer is a byte-level BPE tokenizer backed by tiktoken-go.
// Encoding tables are loaded from the embedded offline loader, so no
// network access is needed.
type TiktokenTokenizer struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the named encoding (e.g. "cl100k_base").
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{name: encoding, enc: enc}, nil
}

// Name returns the encoding name.
func (t *TiktokenTokenizer) Name() string { return t.name }

// Tokenize encodes text and maps each token back to its byte range.
// Byte-level BPE tokens concatenate to the exact input bytes, so the
// decoded length of each token is its width in the source.
func (t *TiktokenTokenizer) Tokenize(text string) []Span {
	if text == "" {
		return nil
	}
	ids := t.enc.Encode(text, nil, nil)
	spans := make([]Span, 0, len(ids))
	pos := 0
	for _, id := range ids {
		n := len(t.enc.Decode([]int{id}))
		end := pos + n
		if end > len(text) {
			end = len(text)
		}
		spans = append(spans, Span{Start: pos, End: end})
		pos = end
	}
	if len(spans) > 0 {
		spans[len(spans)-1].End = len(text)
	}
	return spans
}

// NewTokenizer returns the tokenizer registered under name. An empty name
// or "word" selects WordTokenizer; any other name is treated as a tiktoken
// encoding.
func NewTokenizer(name string) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "word":
		return WordTokenizer{}, nil
	default:
		return NewTiktokenTokenizer(name)
	}
}
