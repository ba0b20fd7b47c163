// Package retrieval turns approximate neighbor lists into exactly re-ranked,
// optionally personalized product results.
package retrieval

import (
	"time"

	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
)

const (
	DefaultTopK            = 10
	DefaultCandidateK      = 300
	MinCandidateK          = 50
	MaxCandidateK          = 1000
	DefaultPerEntityRerank = 8
	MaxPerEntityRerank     = 16
)

type Config struct {
	TopK            int `yaml:"top_k"`
	CandidateK      int `yaml:"candidate_k"`
	PerEntityRerank int `yaml:"per_entity_rerank"`

	// HistoryLimit bounds how many recent events feed a profile.
	HistoryLimit int `yaml:"history_limit"`
	// ProfileProducts is how many weighted products are considered; CompositeTexts
	// of them are joined into the query text.
	ProfileProducts int                `yaml:"profile_products"`
	CompositeTexts  int                `yaml:"composite_texts"`
	TypeWeights     map[string]float64 `yaml:"type_weights"`
	DecayDays       float64            `yaml:"decay_days"`
	DecayFloor      float64            `yaml:"decay_floor"`

	DiversityFactor float64 `yaml:"diversity_factor"`

	PopularityWindowDays int           `yaml:"popularity_window_days"`
	PopularityCacheTTL   time.Duration `yaml:"popularity_cache_ttl"`
}

func DefaultTypeWeights() map[string]float64 {
	return map[string]float64{
		"purchase": 3.0,
		"wishlist": 2.0,
		"cart":     1.5,
		"view":     1.0,
	}
}

func DefaultConfig() Config {
	return Config{
		TopK:               DefaultTopK,
		CandidateK:         DefaultCandidateK,
		PerEntityRerank:    DefaultPerEntityRerank,
		HistoryLimit:       50,
		ProfileProducts:    10,
		CompositeTexts:     5,
		TypeWeights:        DefaultTypeWeights(),
		DecayDays:          365,
		DecayFloor:         0.5,
		DiversityFactor:    0.3,
		PopularityCacheTTL: 5 * time.Minute,
	}
}

func ConfigFromEnv() Config {
	d := DefaultConfig()
	return Config{
		TopK:                 envutil.Int("RETRIEVAL_TOP_K", d.TopK),
		CandidateK:           envutil.Int("RETRIEVAL_CANDIDATE_K", d.CandidateK),
		PerEntityRerank:      envutil.Int("RETRIEVAL_PER_ENTITY_RERANK", d.PerEntityRerank),
		HistoryLimit:         envutil.Int("RETRIEVAL_HISTORY_LIMIT", d.HistoryLimit),
		ProfileProducts:      envutil.Int("RETRIEVAL_PROFILE_PRODUCTS", d.ProfileProducts),
		CompositeTexts:       envutil.Int("RETRIEVAL_COMPOSITE_TEXTS", d.CompositeTexts),
		TypeWeights:          d.TypeWeights,
		DecayDays:            envutil.Float("RETRIEVAL_DECAY_DAYS", d.DecayDays),
		DecayFloor:           envutil.Float("RETRIEVAL_DECAY_FLOOR", d.DecayFloor),
		DiversityFactor:      envutil.Float("RETRIEVAL_DIVERSITY_FACTOR", d.DiversityFactor),
		PopularityWindowDays: envutil.Int("RETRIEVAL_POPULARITY_WINDOW_DAYS", 0),
		PopularityCacheTTL:   envutil.Duration("RETRIEVAL_POPULARITY_CACHE_TTL", d.PopularityCacheTTL),
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.CandidateK <= 0 {
		c.CandidateK = d.CandidateK
	}
	if c.PerEntityRerank <= 0 {
		c.PerEntityRerank = d.PerEntityRerank
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.ProfileProducts <= 0 {
		c.ProfileProducts = d.ProfileProducts
	}
	if c.CompositeTexts <= 0 {
		c.CompositeTexts = d.CompositeTexts
	}
	if len(c.TypeWeights) == 0 {
		c.TypeWeights = d.TypeWeights
	}
	if c.DecayDays <= 0 {
		c.DecayDays = d.DecayDays
	}
	if c.DecayFloor <= 0 || c.DecayFloor > 1 {
		c.DecayFloor = d.DecayFloor
	}
	c.DiversityFactor = clampFloat(c.DiversityFactor, 0, 1)
	if c.PopularityWindowDays < 0 {
		c.PopularityWindowDays = 0
	}
	return c
}

// ClampCandidateK bounds the raw neighbor count to [MinCandidateK, MaxCandidateK]
// and never below topK.
func ClampCandidateK(requested, topK int) int {
	k := requested
	if k <= 0 {
		k = DefaultCandidateK
	}
	k = clampInt(k, MinCandidateK, MaxCandidateK)
	if k < topK {
		k = topK
	}
	return k
}

func ClampPerEntityRerank(n int) int {
	if n <= 0 {
		return DefaultPerEntityRerank
	}
	return clampInt(n, 1, MaxPerEntityRerank)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
