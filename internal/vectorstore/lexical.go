package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/qdrant/go-client/qdrant"

	"docdex/internal/contextutil"
)

const (
	// lexicalScanFloor bounds how few candidates a lexical query scores.
	// Scroll order is unrelated to relevance, so small k values would
	// otherwise starve recall.
	lexicalScanFloor  = 256
	lexicalScanPerHit = 16

	titleMatchBonus = float32(0.1)
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// QueryLexical matches query terms against chunk text and returns the top k
// hits ranked by term frequency. Qdrant narrows the candidate set with its
// full-text index; scoring happens client side because text match conditions
// do not rank. A query with no usable terms returns an empty result.
func (s *QdrantStore) QueryLexical(ctx context.Context, collection, query string, k int, folderIDs []string) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	terms := filterStopwords(tokenize(query))
	if len(terms) == 0 {
		return nil, nil
	}

	should := make([]*qdrant.Condition, 0, len(terms))
	for _, term := range terms {
		should = append(should, qdrant.NewMatchText("text", term))
	}
	filter := &qdrant.Filter{Should: should}
	if ff := folderFilter(folderIDs); ff != nil {
		filter.Must = ff.Must
	}

	limit := uint32(k * lexicalScanPerHit)
	if limit < lexicalScanFloor {
		limit = lexicalScanFloor
	}
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to scroll points", "collection", collection, "error", err)
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		meta := convertPayloadToMap(point.Payload)
		text, _ := meta["text"].(string)
		title, _ := meta["title"].(string)

		score := lexicalScore(terms, text, title)
		if score <= 0 {
			continue
		}

		pointID := ""
		if point.Id != nil {
			pointID = point.Id.GetUuid()
		}
		results = append(results, SearchResult{
			PointID: pointID,
			Score:   score,
			Meta:    meta,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	logger.DebugContext(ctx, "lexical query completed", "collection", collection, "terms", len(terms), "results", len(results))
	return results, nil
}

// lexicalScore computes a term frequency score for a chunk relative to the
// query terms. The score is normalized by chunk length so long chunks do not
// dominate, with a small bonus per query term found in the title.
func lexicalScore(terms []string, chunkText, title string) float32 {
	chunkTokens := tokenize(chunkText)
	if len(chunkTokens) == 0 {
		return 0
	}

	chunkFreq := make(map[string]int, len(chunkTokens))
	for _, token := range chunkTokens {
		chunkFreq[token]++
	}

	var rawMatches int
	for _, term := range terms {
		rawMatches += chunkFreq[term]
	}

	score := float32(rawMatches) / (1 + float32(len(chunkTokens)))

	if title != "" {
		titleTokens := tokenize(title)
		if len(titleTokens) > 0 {
			titleSet := make(map[string]struct{}, len(titleTokens))
			for _, token := range titleTokens {
				titleSet[token] = struct{}{}
			}
			for _, term := range terms {
				if _, ok := titleSet[term]; ok {
					score += titleMatchBonus
				}
			}
		}
	}

	return score
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	clean := builder.String()
	tokens := strings.Fields(clean)
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
