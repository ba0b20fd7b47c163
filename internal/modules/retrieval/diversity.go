package retrieval

const maxDiversityPenalty = 0.5

// ApplyDiversity penalizes repeated categories in one greedy pass over the
// ranked list, then re-sorts and truncates to topK. Uncategorized products
// are never penalized. factor is clamped to [0,1]; 0 leaves scores untouched.
func ApplyDiversity(scored []CandidateScore, factor float64, topK int) []CandidateScore {
	factor = clampFloat(factor, 0, 1)
	out := append([]CandidateScore(nil), scored...)
	seen := map[string]int{}
	for i := range out {
		cat := out[i].Category
		if cat == "" {
			out[i].Score = out[i].Similarity
			continue
		}
		penalty := factor * float64(seen[cat]) * 0.1
		if penalty > maxDiversityPenalty {
			penalty = maxDiversityPenalty
		}
		out[i].Score = out[i].Similarity * (1 - penalty)
		seen[cat]++
	}
	sortScores(out)
	return truncate(out, topK)
}
