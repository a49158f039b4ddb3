package chunker

import (
	"strings"
	"testing"
)

func TestWordTokenizer(t *testing.T) {
	text := "Go, SQL & ML — 5yrs."
	spans := WordTokenizer{}.Tokenize(text)
	var got []string
	for _, s := range spans {
		got = append(got, text[s.Start:s.End])
	}
	want := []string{"Go", ",", "SQL", "&", "ML", "—", "5yrs", "."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("tokens = %q, want %q", got, want)
	}
}

func TestWordTokenizer_Unicode(t *testing.T) {
	text := "Ingeniería de datos"
	spans := WordTokenizer{}.Tokenize(text)
	if len(spans) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(spans))
	}
	if text[spans[0].Start:spans[0].End] != "Ingeniería" {
		t.Errorf("first token = %q", text[spans[0].Start:spans[0].End])
	}
}

func TestWordTokenizer_Deterministic(t *testing.T) {
	text := "a b c d e"
	a := WordTokenizer{}.Tokenize(text)
	b := WordTokenizer{}.Tokenize(text)
	if len(a) != len(b) {
		t.Fatal("tokenizer must be deterministic")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("tokenizer must be deterministic")
		}
	}
}

func TestNewTokenizer(t *testing.T) {
	for _, name := range []string{"", "word", "WORD"} {
		tok, err := NewTokenizer(name)
		if err != nil {
			t.Fatalf("NewTokenizer(%q): %v", name, err)
		}
		if tok.Name() != "word" {
			t.Errorf("NewTokenizer(%q).Name() = %s", name, tok.Name())
		}
	}
	if _, err := NewTokenizer("no_such_encoding"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestTiktokenTokenizer(t *testing.T) {
	tok, err := NewTiktokenTokenizer("cl100k_base")
	if err != nil {
		t.Fatalf("NewTiktokenTokenizer: %v", err)
	}
	spans := tok.Tokenize("hello world")
	if len(spans) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(spans))
	}

	text := "Senior Data Engineer — Python, Spark, señor café. 🚀"
	spans = tok.Tokenize(text)
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.Start != pos {
			t.Fatalf("span %+v does not start at %d", s, pos)
		}
		b.WriteString(text[s.Start:s.End])
		pos = s.End
	}
	if b.String() != text {
		t.Errorf("spans do not reconstruct input: %q", b.String())
	}

	chunks, err := Chunk(tok, text, 4, 1)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Errorf("expected several chunks, got %d", len(chunks))
	}
	if chunks[len(chunks)-1].EndToken != len(spans) {
		t.Error("last chunk must reach the final token")
	}
}
