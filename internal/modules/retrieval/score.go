package retrieval

import (
	"math"
	"sort"
)

const (
	StrategyPersonalized       = "personalized"
	StrategyPopularityFallback = "popularity_fallback"
	StrategyContentBased       = "content_based"
	StrategySearch             = "search"
)

// CandidateScore is one ranked product. Score is the ranking key: the similarity,
// or the diversity-adjusted similarity on the personalized path.
type CandidateScore struct {
	ProductID     string  `json:"product_id"`
	Similarity    float64 `json:"similarity"`
	Score         float64 `json:"score"`
	Distance      float64 `json:"distance"`
	DatapointID   string  `json:"datapoint_id"`
	MatchedSource string  `json:"matched_source,omitempty"`
	Position      *int    `json:"position,omitempty"`
	Category      string  `json:"category,omitempty"`
}

// Cosine returns dot(a,b)/(|a||b|), or 0 when either norm is zero or the
// dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push |c| a hair past 1
	if c > 1 {
		return 1
	}
	if c < -1 {
		return -1
	}
	return c
}

// RemapSimilarity maps cosine [-1,1] onto [0,1].
func RemapSimilarity(cos float64) float64 {
	return (cos + 1) / 2
}

// better reports whether a outranks b: higher score, then lower distance,
// then the smaller datapoint id.
func better(a, b CandidateScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.DatapointID < b.DatapointID
}

func sortScores(scores []CandidateScore) {
	sort.SliceStable(scores, func(i, j int) bool { return better(scores[i], scores[j]) })
}

func truncate(scores []CandidateScore, topK int) []CandidateScore {
	if topK > 0 && len(scores) > topK {
		return scores[:topK]
	}
	return scores
}
