package retrieval

import (
	"reflect"
	"testing"

	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/domain/search"
)

func rec(dpID, productID string, pos *int, vec []float32) *types.EmbeddingRecord {
	return &types.EmbeddingRecord{
		Scope:       search.ScopeImage,
		DatapointID: dpID,
		ProductID:   productID,
		Position:    pos,
		Source:      "https://cdn.test/" + dpID + ".png",
		Embedding:   search.EncodeVector(vec),
	}
}

func intPtr(v int) *int { return &v }

func TestRerankKeepsBestRecordPerProduct(t *testing.T) {
	query := []float32{1, 0}
	records := map[string][]*types.EmbeddingRecord{
		"A": {rec("A_0", "A", intPtr(0), []float32{0, 1}), rec("A_1", "A", intPtr(1), []float32{1, 0})},
		"B": {rec("B_0", "B", intPtr(0), []float32{1, 1})},
	}
	got := Rerank(query, []string{"A", "B"}, records, RerankOptions{TopK: 10})
	if len(got) != 2 {
		t.Fatalf("Rerank: want=2 got=%d", len(got))
	}
	if got[0].ProductID != "A" || got[0].DatapointID != "A_1" || got[0].Similarity != 1 || got[0].Distance != 0 {
		t.Fatalf("best record for A: got=%+v", got[0])
	}
	if got[1].ProductID != "B" {
		t.Fatalf("second: want=B got=%+v", got[1])
	}
}

func TestRerankIsDeterministicUnderTies(t *testing.T) {
	query := []float32{0.3, 0.7}
	same := []float32{0.5, 0.5}
	records := map[string][]*types.EmbeddingRecord{
		"beta":  {rec("beta_0", "beta", intPtr(0), same)},
		"alpha": {rec("alpha_0", "alpha", intPtr(0), same)},
	}
	first := Rerank(query, []string{"beta", "alpha"}, records, RerankOptions{})
	for i := 0; i < 20; i++ {
		again := Rerank(query, []string{"beta", "alpha"}, records, RerankOptions{})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: first=%+v again=%+v", i, first, again)
		}
	}
	if first[0].DatapointID != "alpha_0" || first[1].DatapointID != "beta_0" {
		t.Fatalf("tie order: want=[alpha_0 beta_0] got=[%s %s]", first[0].DatapointID, first[1].DatapointID)
	}
}

func TestRerankWithinProductTieUsesDatapointID(t *testing.T) {
	records := map[string][]*types.EmbeddingRecord{
		"A": {rec("A_2", "A", intPtr(2), []float32{1, 0}), rec("A_1", "A", intPtr(1), []float32{1, 0})},
	}
	got := Rerank([]float32{1, 0}, []string{"A"}, records, RerankOptions{})
	if got[0].DatapointID != "A_1" {
		t.Fatalf("within-product tie: want=A_1 got=%s", got[0].DatapointID)
	}
}

func TestRerankMinSimilarityAndTruncate(t *testing.T) {
	records := map[string][]*types.EmbeddingRecord{
		"near": {rec("near_0", "near", nil, []float32{1, 0})},
		"mid":  {rec("mid_0", "mid", nil, []float32{1, 1})},
		"far":  {rec("far_0", "far", nil, []float32{-1, 0})},
		"none": {},
	}
	got := Rerank([]float32{1, 0}, []string{"near", "mid", "far", "none"}, records, RerankOptions{MinSimilarity: 0.5})
	if len(got) != 2 {
		t.Fatalf("min similarity: want=2 got=%+v", got)
	}
	got = Rerank([]float32{1, 0}, []string{"near", "mid", "far"}, records, RerankOptions{TopK: 1})
	if len(got) != 1 || got[0].ProductID != "near" {
		t.Fatalf("truncate: want=[near] got=%+v", got)
	}
}
