package ingest

import "strings"

// Default chunking parameters, in characters (runes).
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
)

// Chunk splits text into overlapping windows of at most size runes, stepping
// by size-overlap each time. Blank windows are dropped. An overlap at or
// above size is clamped so the walk always advances.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
