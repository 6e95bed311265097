// Package ingest turns dining documents (notices, policies, nutrition
// guides) into embedded passages in the vector store.
package ingest

import "strings"

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 80
)

// Chunk splits text into overlapping windows of at most size runes, stepping
// by size-overlap. Window edges prefer the last sentence or line break inside
// the window so passages stay readable. Empty windows are dropped.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := size - overlap

	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		} else if cut := breakPoint(runes[start:end]); cut > 0 {
			end = start + cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// breakPoint returns the index just past the last sentence or line break in
// the window, or 0 when no break lands in its second half. Breaks in the
// first half would make the chunk too small to be useful.
func breakPoint(window []rune) int {
	for i := len(window) - 1; i >= len(window)/2; i-- {
		switch window[i] {
		case '\n', '.', '!', '?', '。':
			return i + 1
		}
	}
	return 0
}
