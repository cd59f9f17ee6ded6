package search

import (
	"sort"

	"docdex/internal/vectorstore"
)

// DefaultFusionK dampens the influence of top ranks in reciprocal rank
// fusion; rank 0 contributes 1/(k+1) rather than 1.
const DefaultFusionK = 30

// FusionOptions tunes reciprocal rank fusion.
type FusionOptions struct {
	// K is the rank dampening constant. Defaults to DefaultFusionK.
	K int
	// DenseWeight and LexicalWeight scale each list's contribution. When
	// both are zero they default to 1 each.
	DenseWeight   float64
	LexicalWeight float64
}

func (o FusionOptions) withDefaults() FusionOptions {
	if o.K <= 0 {
		o.K = DefaultFusionK
	}
	if o.DenseWeight == 0 && o.LexicalWeight == 0 {
		o.DenseWeight = 1
		o.LexicalWeight = 1
	}
	return o
}

// FusedHit is one candidate after rank fusion. DenseRank and LexicalRank
// record the zero-based position the hit held in each source list, -1 when
// it was absent from that list.
type FusedHit struct {
	Hit         vectorstore.SearchResult
	Score       float64
	DenseRank   int
	LexicalRank int
}

// FuseRanked merges a dense and a lexical candidate list with reciprocal
// rank fusion: every id scores sum(weight / (k + rank + 1)) over the lists
// it appears in, so ids confirmed by both retrieval modes outrank ids seen
// by only one. Raw scores never enter the formula; dense cosine and lexical
// term frequency are not on a comparable scale, ranks are.
//
// The output is ordered by fused score. Ties break by better dense rank,
// then better lexical rank, then first appearance, so a fixed input pair
// always fuses identically.
func FuseRanked(dense, lexical []vectorstore.SearchResult, opts FusionOptions) []FusedHit {
	opts = opts.withDefaults()

	byID := make(map[string]*FusedHit, len(dense)+len(lexical))
	order := make([]string, 0, len(dense)+len(lexical))

	score := func(rank int, weight float64) float64 {
		return weight / float64(opts.K+rank+1)
	}

	for rank, result := range dense {
		fused, ok := byID[result.PointID]
		if !ok {
			fused = &FusedHit{Hit: result, DenseRank: -1, LexicalRank: -1}
			byID[result.PointID] = fused
			order = append(order, result.PointID)
		}
		fused.DenseRank = rank
		fused.Score += score(rank, opts.DenseWeight)
	}

	for rank, result := range lexical {
		fused, ok := byID[result.PointID]
		if !ok {
			fused = &FusedHit{Hit: result, DenseRank: -1, LexicalRank: -1}
			byID[result.PointID] = fused
			order = append(order, result.PointID)
		}
		// The dense entry carries the vector; keep it when both lists
		// returned the id.
		if fused.Hit.Vec == nil && result.Vec != nil {
			fused.Hit = result
		}
		fused.LexicalRank = rank
		fused.Score += score(rank, opts.LexicalWeight)
	}

	arrival := make(map[string]int, len(order))
	for i, id := range order {
		arrival[id] = i
	}

	hits := make([]FusedHit, 0, len(order))
	for _, id := range order {
		hits = append(hits, *byID[id])
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if c := compareRank(hits[i].DenseRank, hits[j].DenseRank); c != 0 {
			return c < 0
		}
		if c := compareRank(hits[i].LexicalRank, hits[j].LexicalRank); c != 0 {
			return c < 0
		}
		return arrival[hits[i].Hit.PointID] < arrival[hits[j].Hit.PointID]
	})

	return hits
}

// compareRank orders present ranks ascending with absent (-1) last.
func compareRank(a, b int) int {
	switch {
	case a == b:
		return 0
	case a == -1:
		return 1
	case b == -1:
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}
