package retrieval

import (
	types "github.com/yungbote/catalog-search-backend/internal/domain"
)

type RerankOptions struct {
	// TopK truncates the result; 0 keeps everything.
	TopK          int
	MinSimilarity float64
}

// Rerank scores each candidate by its best mirror record against query.
// records holds the per-product mirror rows, already ordered by position.
// Candidates without a usable record are dropped.
func Rerank(query []float32, candidates []string, records map[string][]*types.EmbeddingRecord, opts RerankOptions) []CandidateScore {
	out := make([]CandidateScore, 0, len(candidates))
	for _, pid := range candidates {
		var best *CandidateScore
		for _, rec := range records[pid] {
			if rec == nil {
				continue
			}
			vec := rec.Vector()
			if len(vec) == 0 {
				continue
			}
			cos := Cosine(query, vec)
			sim := RemapSimilarity(cos)
			cand := CandidateScore{
				ProductID:     pid,
				Similarity:    sim,
				Score:         sim,
				Distance:      1 - cos,
				DatapointID:   rec.DatapointID,
				MatchedSource: rec.Source,
				Position:      rec.Position,
			}
			if best == nil || better(cand, *best) {
				best = &cand
			}
		}
		if best == nil || best.Similarity < opts.MinSimilarity {
			continue
		}
		out = append(out, *best)
	}
	sortScores(out)
	return truncate(out, opts.TopK)
}
