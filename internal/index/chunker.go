package index

import "strings"

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how many characters consecutive chunks share.
	DefaultChunkOverlap = 200
)

// Chunker splits extracted document text into overlapping pieces sized
// for embedding. Split points prefer paragraph breaks, then line breaks,
// then word boundaries, so chunks tend to end at natural seams.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given size and overlap. Out of
// range values fall back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into chunks. Whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			piece := strings.TrimSpace(text[start:])
			if piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		cut := c.findSplit(text, start, end)
		piece := strings.TrimSpace(text[start:cut])
		if piece != "" {
			chunks = append(chunks, piece)
		}

		next := cut - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// findSplit picks the best cut point in text[start:end], searching the
// trailing half of the window so chunks stay close to the target size.
func (c *Chunker) findSplit(text string, start, end int) int {
	window := text[start:end]
	floor := len(window) / 2

	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := strings.LastIndex(window, sep); idx > floor {
			return start + idx + len(sep)
		}
	}
	return end
}
