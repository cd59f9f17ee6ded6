package chunker

import (
	"fmt"
	"sort"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultWindowTokens is the default micro-chunk window size.
	DefaultWindowTokens = 16
	// DefaultStrideTokens is the default micro-chunk stride.
	DefaultStrideTokens = 8

	encodingName = "cl100k_base"
)

// Tokenizer converts text to and from token IDs. Decode of any Encode prefix
// must reproduce the corresponding byte prefix of the input, which the token
// chunker relies on to map token offsets back to character offsets.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TokenChunker produces token-aligned micro-chunks with line-level
// provenance. It is the default source of retrieval units; the
// character-window chunker is retained for coarse summarization paths.
type TokenChunker struct {
	enc Tokenizer
}

// TokenChunkOptions control token-aligned chunking. Zero values select the
// defaults.
type TokenChunkOptions struct {
	WindowTokens int
	StrideTokens int
}

// NewTokenChunker creates a TokenChunker backed by the cl100k_base encoding.
func NewTokenChunker() (*TokenChunker, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	return &TokenChunker{enc: tiktokenTokenizer{tke: enc}}, nil
}

// NewTokenChunkerWithTokenizer creates a TokenChunker using the given
// tokenizer.
func NewTokenChunkerWithTokenizer(enc Tokenizer) *TokenChunker {
	return &TokenChunker{enc: enc}
}

// ChunkByTokens tokenizes text once, then slides a window of WindowTokens
// across the token sequence at StrideTokens. The last window may be shorter.
// Each chunk carries exact token counts, its token offset, and 1-based start
// and end lines derived from the decoded character offsets. Empty input
// yields no chunks.
func (c *TokenChunker) ChunkByTokens(text string, opts TokenChunkOptions) []Chunk {
	if text == "" {
		return nil
	}

	window := opts.WindowTokens
	if window <= 0 {
		window = DefaultWindowTokens
	}
	stride := opts.StrideTokens
	if stride <= 0 {
		stride = DefaultStrideTokens
	}
	if stride > window {
		stride = window
	}

	tokens := c.enc.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	// Cumulative byte offset of each token boundary, so any token range maps
	// back to its exact span of the original text.
	offsets := make([]int, len(tokens)+1)
	for i := range tokens {
		offsets[i+1] = offsets[i] + len(c.enc.Decode(tokens[i:i+1]))
	}

	lineStarts := lineStartOffsets(text)

	var chunks []Chunk
	for start := 0; start < len(tokens); start += stride {
		end := start + window
		if end > len(tokens) {
			end = len(tokens)
		}

		startOffset := offsets[start]
		endOffset := offsets[end]
		lastOffset := endOffset
		if lastOffset > startOffset {
			lastOffset--
		}

		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Text:        text[startOffset:endOffset],
			TokenCount:  end - start,
			StartLine:   lineForOffset(lineStarts, startOffset),
			EndLine:     lineForOffset(lineStarts, lastOffset),
			TokenOffset: start,
		})

		if end >= len(tokens) {
			break
		}
	}

	return chunks
}

// lineStartOffsets returns the sorted byte offsets at which each line of text
// begins. The first line starts at 0.
func lineStartOffsets(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineForOffset returns the 1-based line number containing the byte offset:
// the largest line start that is <= offset.
func lineForOffset(lineStarts []int, offset int) int {
	idx := sort.Search(len(lineStarts), func(i int) bool {
		return lineStarts[i] > offset
	})
	return idx
}

// tiktokenTokenizer adapts a tiktoken encoding to the Tokenizer interface.
type tiktokenTokenizer struct {
	tke *tiktoken.Tiktoken
}

func (t tiktokenTokenizer) Encode(text string) []int {
	return t.tke.Encode(text, nil, nil)
}

func (t tiktokenTokenizer) Decode(tokens []int) string {
	return t.tke.Decode(tokens)
}
