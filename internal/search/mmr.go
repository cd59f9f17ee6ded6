package search

import "math"

// DefaultMMRLambda favors diversity; raise it toward 1 to favor relevance.
const DefaultMMRLambda = 0.3

// Diversify applies maximal marginal relevance over a fused, relevance-
// ordered candidate list: the first selection is the most relevant hit, and
// each following selection maximizes
//
//	lambda*score - (1-lambda)*maxSim
//
// where maxSim is the highest cosine similarity between the candidate and
// anything already selected. Candidates without an embedding take maxSim 0,
// so they are neither penalized nor boosted. The result preserves selection
// order and holds at most topK hits; empty input yields an empty result.
func Diversify(hits []FusedHit, lambda float64, topK int) []FusedHit {
	if len(hits) == 0 || topK <= 0 {
		return nil
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}

	remaining := make([]FusedHit, len(hits))
	copy(remaining, hits)

	selected := make([]FusedHit, 0, min(topK, len(hits)))
	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)

		for i, cand := range remaining {
			maxSim := 0.0
			if cand.Hit.Vec != nil {
				for _, sel := range selected {
					if sel.Hit.Vec == nil {
						continue
					}
					if sim := cosineSimilarity(cand.Hit.Vec, sel.Hit.Vec); sim > maxSim {
						maxSim = sim
					}
				}
			}

			score := lambda*cand.Score - (1-lambda)*maxSim
			// Strict comparison keeps the earlier (more relevant)
			// candidate on ties.
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
