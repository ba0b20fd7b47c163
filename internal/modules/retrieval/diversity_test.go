package retrieval

import (
	"math"
	"testing"
)

func scored(id, cat string, sim float64) CandidateScore {
	return CandidateScore{ProductID: id, DatapointID: id, Category: cat, Similarity: sim, Score: sim, Distance: 1 - sim}
}

func TestApplyDiversityPenalizesRepeats(t *testing.T) {
	in := []CandidateScore{
		scored("a", "shoes", 0.90),
		scored("b", "shoes", 0.89),
		scored("c", "shoes", 0.88),
		scored("d", "hats", 0.87),
	}
	got := ApplyDiversity(in, 1, 10)
	order := []string{got[0].ProductID, got[1].ProductID, got[2].ProductID, got[3].ProductID}
	want := []string{"a", "d", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: want=%v got=%v", want, order)
		}
	}
	for _, sc := range got {
		if sc.ProductID == "c" && math.Abs(sc.Score-0.88*0.8) > 1e-9 {
			t.Fatalf("c adjusted: want=%v got=%v", 0.88*0.8, sc.Score)
		}
	}
	if in[1].Score != 0.89 {
		t.Fatalf("input mutated")
	}
}

func TestApplyDiversityPenaltyIsCapped(t *testing.T) {
	var in []CandidateScore
	for i := 0; i < 8; i++ {
		in = append(in, scored(string(rune('a'+i)), "x", 1))
	}
	got := ApplyDiversity(in, 1, 0)
	lowest := 1.0
	for _, sc := range got {
		if sc.Score < lowest {
			lowest = sc.Score
		}
	}
	if lowest != 0.5 {
		t.Fatalf("penalty cap: want min score=0.5 got=%v", lowest)
	}
}

func TestApplyDiversityZeroFactorAndUncategorized(t *testing.T) {
	in := []CandidateScore{scored("a", "x", 0.9), scored("b", "x", 0.8), scored("c", "", 0.7), scored("d", "", 0.6)}
	got := ApplyDiversity(in, 0, 2)
	if len(got) != 2 || got[0].Score != 0.9 || got[1].Score != 0.8 {
		t.Fatalf("factor 0: got=%+v", got)
	}
	got = ApplyDiversity(in, 1, 0)
	for _, sc := range got {
		if sc.Category == "" && sc.Score != sc.Similarity {
			t.Fatalf("uncategorized penalized: %+v", sc)
		}
	}
}
