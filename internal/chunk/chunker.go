// Package chunk splits extracted text into ordered spans for
// embedding and retrieval.
package chunk

import (
	"strings"

	"docpipe/internal/pkg/tokens"
)

const (
	// Name and Version identify the chunk sets this chunker produces.
	// Bump Version whenever the splitting rules change: chunk IDs are
	// derived from it, so a bump yields a disjoint, rebuildable set.
	Name    = "rune-window"
	Version = 1

	defaultSize    = 512
	defaultOverlap = 64
)

// Piece is one chunk of text before persistence.
type Piece struct {
	Ordinal    int
	Text       string
	TokenCount int
}

// Chunker splits text into overlapping rune windows with
// deterministic 0-based ordinals. Ordinals depend only on the input
// text and the window parameters, never on timing or retries.
type Chunker struct {
	size    int
	overlap int
	counter tokens.Counter
}

func NewChunker(size, overlap int, counter tokens.Counter) *Chunker {
	if size <= 0 {
		size = defaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}
	if counter == nil {
		counter = tokens.HeuristicCounter{}
	}
	return &Chunker{size: size, overlap: overlap, counter: counter}
}

// Split produces the chunk sequence for text. Whitespace-only windows
// are skipped but do not disturb the ordinals of later chunks.
func (c *Chunker) Split(text string) []Piece {
	runes := []rune(text)
	var pieces []Piece
	ordinal := 0
	for i := 0; i < len(runes); {
		end := i + c.size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[i:end])
		if strings.TrimSpace(window) != "" {
			pieces = append(pieces, Piece{
				Ordinal:    ordinal,
				Text:       window,
				TokenCount: c.counter.Count(window),
			})
		}
		ordinal++
		i += c.size - c.overlap
		if end == len(runes) {
			break
		}
	}
	return pieces
}
