package chunking

import (
	"strings"
	"unicode"
)

// snapWindow bounds how far Split walks back looking for whitespace
// before giving up and cutting mid-word.
const snapWindow = 64

// Splitter produces overlapping rune windows. Window edges snap to
// whitespace when one is close enough, so chunks hold whole words.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapBack(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = start + 1
		}
		start = snapForward(runes, next, end)
	}
	return out
}

// snapBack moves the window end to the nearest preceding whitespace,
// unless none exists within snapWindow runes.
func snapBack(runes []rune, start, end int) int {
	if end-start <= snapWindow {
		return end
	}
	for i := end; i > end-snapWindow; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// snapForward advances a mid-word start to the next word beginning, up to
// the previous window end. Overlap shrinks instead of splitting a token.
func snapForward(runes []rune, next, end int) int {
	for next < end && next > 0 && !unicode.IsSpace(runes[next-1]) {
		next++
	}
	return next
}
