package chunker

import (
	"strings"
)

const (
	// DefaultMaxCharacters is the default character window size.
	DefaultMaxCharacters = 1500
	// DefaultOverlapCharacters is the default overlap between adjacent windows.
	DefaultOverlapCharacters = 200
)

// Chunk is one indexable slice of a source text. Chunks from one source are
// contiguous, cover the source (allowing configured overlap), and carry a
// strictly increasing Index. A chunk is immutable once created; when the
// source changes its chunks are superseded, never mutated.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int

	// Set only by the token-aligned chunker.
	StartLine   int
	EndLine     int
	TokenOffset int
}

// ChunkOptions control character-window chunking. Zero values select the
// defaults. MaxChunks is an optional ceiling on the number of chunks; 0 means
// unlimited.
type ChunkOptions struct {
	MaxCharacters     int
	OverlapCharacters int
	MaxChunks         int
}

// ChunkText splits text into character windows of at most MaxCharacters,
// adjacent windows overlapping by OverlapCharacters. Window boundaries are
// pulled back to the nearest preceding newline or sentence end when that cut
// lies past half the window. If MaxChunks > 0 and the naive chunk count would
// exceed it, the window is widened (never the overlap) until the text fits.
// Empty or whitespace-only input yields no chunks.
func ChunkText(text string, opts ChunkOptions) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	window := opts.MaxCharacters
	if window <= 0 {
		window = DefaultMaxCharacters
	}
	overlap := opts.OverlapCharacters
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= window {
		overlap = window / 4
	}

	runes := []rune(text)
	length := len(runes)

	if opts.MaxChunks > 0 && length > window {
		stride := window - overlap
		if stride < 1 {
			stride = 1
		}
		naive := (length-window+stride-1)/stride + 1
		if naive > opts.MaxChunks {
			// Smallest window covering the text in MaxChunks overlapping
			// windows: count*window - (count-1)*overlap >= length.
			window = ceilDiv(length+(opts.MaxChunks-1)*overlap, opts.MaxChunks)
			// The widened window may have shrunk below the configured
			// overlap; clamp the overlap again to keep stride positive.
			if overlap >= window {
				overlap = window / 4
			}
		}
	}

	var chunks []Chunk
	start := 0
	for start < length {
		end := start + window
		if end > length {
			end = length
		}

		if opts.MaxChunks > 0 && len(chunks) == opts.MaxChunks-1 {
			// Last permitted chunk runs to the end of the text.
			end = length
		} else if end < length {
			if cut := lastBoundary(runes[start:end]); cut >= 0 && cut+1 > window/2 {
				end = start + cut + 1
			}
		}

		piece := runes[start:end]
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       string(piece),
			TokenCount: estimateTokens(len(piece)),
		})

		if end >= length {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// lastBoundary returns the index of the rightmost newline or sentence
// terminator (". ") in the window, or -1 if there is none.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			return i
		}
		if window[i] == '.' && i+1 < len(window) && window[i+1] == ' ' {
			return i
		}
	}
	return -1
}

// estimateTokens approximates the token count of a character chunk as one
// token per four characters, rounded.
func estimateTokens(chars int) int {
	return (chars + 2) / 4
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
