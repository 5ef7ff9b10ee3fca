package chunking

import (
	"fmt"
	"strings"
	"testing"
)

func numberedTokens(n int) []string {
	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tokens = append(tokens, fmt.Sprintf("term%03d", i))
	}
	return tokens
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(512, 50)
	if chunks := s.Split(""); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(512, 50)
	chunks := s.Split("hello world")
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Fatalf("chunks = %v, want single hello world", chunks)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := NewSplitter(100, 20)
	text := strings.Join(numberedTokens(60), " ")

	for _, chunk := range s.Split(text) {
		if n := len([]rune(chunk)); n > 100 {
			t.Fatalf("chunk holds %d runes, max 100: %q", n, chunk)
		}
	}
}

func TestSplitKeepsWordsIntact(t *testing.T) {
	tokens := numberedTokens(60)
	valid := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		valid[tok] = true
	}

	s := NewSplitter(100, 20)
	for _, chunk := range s.Split(strings.Join(tokens, " ")) {
		for _, field := range strings.Fields(chunk) {
			if !valid[field] {
				t.Fatalf("chunk split a token: %q in %q", field, chunk)
			}
		}
	}
}

func TestSplitCoversEveryToken(t *testing.T) {
	tokens := numberedTokens(60)
	s := NewSplitter(100, 20)
	chunks := s.Split(strings.Join(tokens, " "))

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		for _, field := range strings.Fields(chunk) {
			seen[field] = true
		}
	}
	for _, tok := range tokens {
		if !seen[tok] {
			t.Fatalf("token %q missing from every chunk", tok)
		}
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split(strings.Join(numberedTokens(60), " "))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := make(map[string]bool)
		for _, field := range strings.Fields(chunks[i-1]) {
			prev[field] = true
		}
		shared := false
		for _, field := range strings.Fields(chunks[i]) {
			if prev[field] {
				shared = true
				break
			}
		}
		if !shared {
			t.Fatalf("chunks %d and %d share no tokens", i-1, i)
		}
	}
}

func TestSplitHardCutsUnbrokenRuns(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split(strings.Repeat("x", 300))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if joined := strings.Join(chunks, ""); len(joined) != 300 {
		t.Fatalf("joined length = %d, want 300", len(joined))
	}
}
