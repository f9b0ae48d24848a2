// Package chunk splits extracted document text into overlapping fixed-size
// passages with stable identifiers. Chunks are the atomic unit of retrieval:
// every vector in the index corresponds to exactly one chunk produced here.
package chunk

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/passagehq/passage/pkg/rag"
)

// maxLookback caps the derived boundary search window for large chunk sizes.
const maxLookback = 100

// Config holds chunker settings. All counts are runes. A zero BoundaryWindow
// derives the look-back window from Size (a quarter, capped at maxLookback).
type Config struct {
	Size           uint
	Overlap        uint
	BoundaryWindow uint
}

// Chunker splits text into chunks of at most Size runes, with consecutive
// chunks overlapping by Overlap runes. Splits prefer sentence and word
// boundaries within a small look-back window before hard-cutting.
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

// NewChunker validates the configuration and returns a Chunker.
// Overlap must be strictly smaller than Size.
func NewChunker(cfg Config) (*Chunker, error) {
	if cfg.Size == 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", rag.ErrConfiguration)
	}
	if cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be smaller than chunk size (%d)",
			rag.ErrConfiguration, cfg.Overlap, cfg.Size)
	}

	lookback := int(cfg.BoundaryWindow)
	if lookback == 0 {
		lookback = int(cfg.Size) / 4
		if lookback > maxLookback {
			lookback = maxLookback
		}
	}

	return &Chunker{
		size:     int(cfg.Size),
		overlap:  int(cfg.Overlap),
		lookback: lookback,
	}, nil
}

// Split chunks a document's text. Empty or whitespace-only input yields an
// empty sequence, not an error.
//
// Spans are rune offsets into text. Each chunk's Text equals the original
// text sliced at [Start, End). Without a boundary shift, each chunk starts
// exactly size-overlap runes after its predecessor; a preferred boundary
// inside the look-back window moves the cut, and the following start, earlier.
func (c *Chunker) Split(documentID, text string) []rag.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []rag.Chunk
	start := 0
	index := 0
	prevEnd := 0

	for start < n {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.cutAt(runes, start, end)
		}

		segment := string(runes[start:end])
		if strings.TrimSpace(segment) != "" {
			chunks = append(chunks, rag.Chunk{
				ID:         rag.ChunkID(documentID, index),
				DocumentID: documentID,
				Index:      index,
				Text:       segment,
				Start:      start,
				End:        end,
			})
			index++
		}

		if end >= n {
			break
		}

		next := end - c.overlap
		if next < prevEnd {
			// A boundary shift pulled the cut close enough to the
			// previous chunk that stepping back the full overlap would
			// reach into it. Clamp so a chunk only ever overlaps its
			// immediate neighbor.
			next = prevEnd
		}
		if next <= start {
			// Boundary shifts can pull the cut inside the overlap
			// region; force forward progress.
			next = start + 1
		}
		prevEnd = end
		start = next
	}

	return chunks
}

// cutAt returns the end offset for a chunk starting at start with a hard
// limit of hardEnd. It prefers, in order: a sentence break, then any
// whitespace, searching backward through the look-back window. If neither
// appears in the window it hard-cuts at hardEnd.
func (c *Chunker) cutAt(runes []rune, start, hardEnd int) int {
	windowStart := hardEnd - c.lookback
	if windowStart <= start {
		windowStart = start + 1
	}

	// Sentence breaks: terminator followed by whitespace, or a newline.
	for i := hardEnd - 1; i >= windowStart; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
		if isSentenceEnd(runes[i]) && i+1 < hardEnd && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}

	// Word breaks: cut just after the last whitespace in the window.
	for i := hardEnd - 1; i >= windowStart; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	return hardEnd
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
