package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	domainevents "github.com/yungbote/catalog-search-backend/internal/domain/events"
	"github.com/yungbote/catalog-search-backend/internal/platform/apierr"
)

type RecommendRequest struct {
	UserID string
	TopK   int
	// Diversity overrides the configured factor when set; 0 disables the penalty.
	Diversity    *float64
	EventTypes   []string
	HistoryLimit int
}

type RecommendedItem struct {
	ProductID     string  `json:"product_id"`
	Score         float64 `json:"score"`
	Similarity    float64 `json:"similarity,omitempty"`
	Distance      float64 `json:"distance,omitempty"`
	DatapointID   string  `json:"datapoint_id,omitempty"`
	MatchedSource string  `json:"matched_source,omitempty"`
	Category      string  `json:"category,omitempty"`
	Count         int64   `json:"count,omitempty"`
}

type Recommendation struct {
	UserID         string            `json:"user_id,omitempty"`
	ProductID      string            `json:"product_id,omitempty"`
	Strategy       string            `json:"strategy"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	Items          []RecommendedItem `json:"items"`
}

func itemsFromScores(scores []CandidateScore) []RecommendedItem {
	out := make([]RecommendedItem, 0, len(scores))
	for _, sc := range scores {
		out = append(out, RecommendedItem{
			ProductID:     sc.ProductID,
			Score:         sc.Score,
			Similarity:    sc.Similarity,
			Distance:      sc.Distance,
			DatapointID:   sc.DatapointID,
			MatchedSource: sc.MatchedSource,
			Category:      sc.Category,
		})
	}
	return out
}

// Recommend personalizes from the user's history and falls back to popularity
// when there is no usable profile. Products the user interacted with are
// excluded from personalized results.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (rec Recommendation, err error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return rec, apierr.BadRequest("user_id_required", "user id is required")
	}
	eventTypes, err := normalizeEventTypes(req.EventTypes)
	if err != nil {
		return rec, err
	}
	topK := s.topK(req.TopK)
	start := time.Now()
	defer func() {
		s.metrics.ObserveRetrieval(string(datapoint.KindText), rec.Strategy, err, time.Since(start), len(rec.Items))
	}()

	profile, err := s.profiles.Build(ctx, ProfileRequest{UserID: userID, EventTypes: eventTypes, Limit: req.HistoryLimit})
	if err != nil {
		return rec, err
	}
	if profile.Vector == nil {
		return s.popularityFallback(ctx, userID, profile.FallbackReason, eventTypes, topK)
	}

	exclude := make([]string, 0, len(profile.Interacted))
	for pid := range profile.Interacted {
		exclude = append(exclude, pid)
	}
	ranked, err := s.rank(ctx, SearchRequest{
		Kind:              datapoint.KindText,
		Vector:            profile.Vector,
		SearchOptions:     SearchOptions{TopK: topK},
		ExcludeProductIDs: exclude,
	})
	if err != nil {
		return rec, err
	}
	factor := s.cfg.DiversityFactor
	if req.Diversity != nil {
		factor = *req.Diversity
	}
	selected := ApplyDiversity(ranked, factor, topK)
	return Recommendation{
		UserID:   userID,
		Strategy: StrategyPersonalized,
		Items:    itemsFromScores(selected),
	}, nil
}

// normalizeEventTypes lowercases the filter the way events are stored and
// rejects unknown types, which would otherwise match no history.
func normalizeEventTypes(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if !domainevents.IsValidType(t) {
			return nil, apierr.BadRequest("invalid_event_type", "event type %q must be one of %s", t, strings.Join(domainevents.ValidTypes, ", "))
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Service) popularityFallback(ctx context.Context, userID, reason string, eventTypes []string, topK int) (Recommendation, error) {
	popular, err := s.popularity.Top(ctx, PopularityQuery{
		Limit:      topK,
		EventTypes: eventTypes,
		WindowDays: s.cfg.PopularityWindowDays,
	})
	if err != nil {
		return Recommendation{}, err
	}
	items := make([]RecommendedItem, 0, len(popular))
	for _, p := range popular {
		items = append(items, RecommendedItem{ProductID: p.ProductID, Score: float64(p.Count), Count: p.Count})
	}
	s.log.Info("recommendation fell back to popularity", "user_id", userID, "reason", reason, "items", len(items))
	return Recommendation{
		UserID:         userID,
		Strategy:       StrategyPopularityFallback,
		FallbackReason: reason,
		Items:          items,
	}, nil
}

// RecommendForProduct is content-based: the product's text neighbors.
func (s *Service) RecommendForProduct(ctx context.Context, productID string, topK int, includeSelf bool) (rec Recommendation, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRetrieval(string(datapoint.KindText), StrategyContentBased, err, time.Since(start), len(rec.Items))
	}()
	vec, err := s.productVector(ctx, productID)
	if err != nil {
		return rec, err
	}
	productID = strings.TrimSpace(productID)
	req := SearchRequest{Kind: datapoint.KindText, Vector: vec, SearchOptions: SearchOptions{TopK: topK}}
	if !includeSelf {
		req.ExcludeProductIDs = []string{productID}
	}
	ranked, err := s.rank(ctx, req)
	if err != nil {
		return rec, err
	}
	return Recommendation{
		ProductID: productID,
		Strategy:  StrategyContentBased,
		Items:     itemsFromScores(truncate(ranked, s.topK(topK))),
	}, nil
}
