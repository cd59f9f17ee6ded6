package search

import (
	"math"
	"testing"

	"docdex/internal/vectorstore"
)

func denseResult(id string, vec []float32) vectorstore.SearchResult {
	return vectorstore.SearchResult{PointID: id, Vec: vec, Meta: map[string]any{"rel_path": id + ".md"}}
}

func lexicalResult(id string) vectorstore.SearchResult {
	return vectorstore.SearchResult{PointID: id, Meta: map[string]any{"rel_path": id + ".md"}}
}

func scoresByID(hits []FusedHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		out[h.Hit.PointID] = h.Score
	}
	return out
}

func TestFuseRanked_Empty(t *testing.T) {
	if hits := FuseRanked(nil, nil, FusionOptions{}); len(hits) != 0 {
		t.Errorf("FuseRanked(nil, nil) = %d hits, want 0", len(hits))
	}
}

func TestFuseRanked_SingleListStillScores(t *testing.T) {
	dense := []vectorstore.SearchResult{denseResult("a", nil), denseResult("b", nil)}

	hits := FuseRanked(dense, nil, FusionOptions{})
	if len(hits) != 2 {
		t.Fatalf("FuseRanked() = %d hits, want 2", len(hits))
	}

	// rank 0 -> 1/(30+0+1), rank 1 -> 1/(30+1+1)
	if got, want := hits[0].Score, 1.0/31.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("rank 0 score = %v, want %v", got, want)
	}
	if got, want := hits[1].Score, 1.0/32.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("rank 1 score = %v, want %v", got, want)
	}
	if hits[0].DenseRank != 0 || hits[0].LexicalRank != -1 {
		t.Errorf("ranks = (%d, %d), want (0, -1)", hits[0].DenseRank, hits[0].LexicalRank)
	}
}

func TestFuseRanked_BothListsBoost(t *testing.T) {
	// "both" holds dense rank 0 and lexical rank 1; "single" holds lexical
	// rank 0. Appearing in both lists must outscore the better single-list
	// rank.
	dense := []vectorstore.SearchResult{denseResult("both", nil)}
	lexical := []vectorstore.SearchResult{lexicalResult("single"), lexicalResult("both")}

	hits := FuseRanked(dense, lexical, FusionOptions{})
	if len(hits) != 2 {
		t.Fatalf("FuseRanked() = %d hits, want 2", len(hits))
	}

	scores := scoresByID(hits)
	if scores["both"] <= scores["single"] {
		t.Errorf("cross-list id should outscore single-list id: both=%v single=%v", scores["both"], scores["single"])
	}
	if hits[0].Hit.PointID != "both" {
		t.Errorf("first hit = %s, want both", hits[0].Hit.PointID)
	}

	want := 1.0/31.0 + 1.0/32.0
	if math.Abs(scores["both"]-want) > 1e-12 {
		t.Errorf("both score = %v, want %v", scores["both"], want)
	}
}

func TestFuseRanked_SymmetricUnderListSwap(t *testing.T) {
	// Swapping which list is dense vs lexical (with weights swapped to
	// match) must produce identical combined scores.
	listA := []vectorstore.SearchResult{denseResult("x", nil), denseResult("y", nil), denseResult("z", nil)}
	listB := []vectorstore.SearchResult{lexicalResult("y"), lexicalResult("w")}

	opts := FusionOptions{K: 30, DenseWeight: 2, LexicalWeight: 3}
	swapped := FusionOptions{K: 30, DenseWeight: 3, LexicalWeight: 2}

	forward := scoresByID(FuseRanked(listA, listB, opts))
	reverse := scoresByID(FuseRanked(listB, listA, swapped))

	if len(forward) != len(reverse) {
		t.Fatalf("score maps differ in size: %d vs %d", len(forward), len(reverse))
	}
	for id, score := range forward {
		if math.Abs(score-reverse[id]) > 1e-12 {
			t.Errorf("score for %s differs after swap: %v vs %v", id, score, reverse[id])
		}
	}
}

func TestFuseRanked_TieBreaksByDenseRank(t *testing.T) {
	// a and b hold mirrored ranks, so their fused scores are equal; the
	// better dense rank must come first.
	dense := []vectorstore.SearchResult{denseResult("a", nil), denseResult("b", nil)}
	lexical := []vectorstore.SearchResult{lexicalResult("b"), lexicalResult("a")}

	hits := FuseRanked(dense, lexical, FusionOptions{})
	if len(hits) != 2 {
		t.Fatalf("FuseRanked() = %d hits, want 2", len(hits))
	}
	if hits[0].Score != hits[1].Score {
		t.Fatalf("expected a tie, got %v and %v", hits[0].Score, hits[1].Score)
	}
	if hits[0].Hit.PointID != "a" {
		t.Errorf("tie should break toward better dense rank, got %s first", hits[0].Hit.PointID)
	}
}

func TestFuseRanked_TieBreaksDensePresenceOverLexical(t *testing.T) {
	// Equal scores, one id dense-only and one lexical-only: the id present
	// in the dense list wins.
	dense := []vectorstore.SearchResult{denseResult("d", nil)}
	lexical := []vectorstore.SearchResult{lexicalResult("l")}

	hits := FuseRanked(dense, lexical, FusionOptions{})
	if len(hits) != 2 {
		t.Fatalf("FuseRanked() = %d hits, want 2", len(hits))
	}
	if hits[0].Score != hits[1].Score {
		t.Fatalf("expected a tie, got %v and %v", hits[0].Score, hits[1].Score)
	}
	if hits[0].Hit.PointID != "d" {
		t.Errorf("tie should break toward dense presence, got %s first", hits[0].Hit.PointID)
	}
}

func TestFuseRanked_WeightsScaleContributions(t *testing.T) {
	dense := []vectorstore.SearchResult{denseResult("d", nil)}
	lexical := []vectorstore.SearchResult{lexicalResult("l")}

	hits := FuseRanked(dense, lexical, FusionOptions{DenseWeight: 2, LexicalWeight: 1})
	scores := scoresByID(hits)

	if got, want := scores["d"], 2.0/31.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("dense score = %v, want %v", got, want)
	}
	if got, want := scores["l"], 1.0/31.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("lexical score = %v, want %v", got, want)
	}
	if hits[0].Hit.PointID != "d" {
		t.Errorf("weighted dense hit should rank first, got %s", hits[0].Hit.PointID)
	}
}

func TestFuseRanked_KeepsDenseEntryForSharedIDs(t *testing.T) {
	vec := []float32{0.1, 0.2}
	dense := []vectorstore.SearchResult{denseResult("shared", vec)}
	lexical := []vectorstore.SearchResult{lexicalResult("shared")}

	hits := FuseRanked(dense, lexical, FusionOptions{})
	if len(hits) != 1 {
		t.Fatalf("FuseRanked() = %d hits, want 1", len(hits))
	}
	if hits[0].Hit.Vec == nil {
		t.Error("fused hit should keep the dense entry's vector")
	}
	if hits[0].DenseRank != 0 || hits[0].LexicalRank != 0 {
		t.Errorf("ranks = (%d, %d), want (0, 0)", hits[0].DenseRank, hits[0].LexicalRank)
	}
}

func TestCompareRank(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{0, 0, 0},
		{-1, -1, 0},
		{0, 1, -1},
		{2, 1, 1},
		{-1, 5, 1},  // absent sorts after any present rank
		{3, -1, -1}, // present sorts before absent
	}
	for _, tt := range tests {
		if got := compareRank(tt.a, tt.b); got != tt.want {
			t.Errorf("compareRank(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
