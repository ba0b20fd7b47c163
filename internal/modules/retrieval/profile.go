package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

const compositeSeparator = " | "

type WeightedProduct struct {
	ProductID string  `json:"product_id"`
	Weight    float64 `json:"weight"`
}

// UserProfile is built per request. Vector is nil when the user has no usable
// history or the composite embedding failed; FallbackReason says which.
type UserProfile struct {
	UserID         string            `json:"user_id"`
	Products       []WeightedProduct `json:"products"`
	Interacted     map[string]bool   `json:"-"`
	CompositeText  string            `json:"composite_text,omitempty"`
	Vector         []float32         `json:"-"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
}

const (
	FallbackNoHistory   = "no_history"
	FallbackNoText      = "no_text"
	FallbackEmbedFailed = "embed_failed"
)

type ProfileRequest struct {
	UserID     string
	EventTypes []string
	Limit      int
}

type ProfileBuilder struct {
	log      *logger.Logger
	events   repos.InteractionEventRepo
	products repos.ProductRepo
	text     embedding.TextEmbedder
	cfg      Config
	now      func() time.Time
}

func NewProfileBuilder(log *logger.Logger, events repos.InteractionEventRepo, products repos.ProductRepo, text embedding.TextEmbedder, cfg Config) *ProfileBuilder {
	return &ProfileBuilder{
		log:      log.With("service", "ProfileBuilder"),
		events:   events,
		products: products,
		text:     text,
		cfg:      cfg.normalized(),
		now:      time.Now,
	}
}

// EventWeight is typeWeight × max(floor, 1 − days_old/decayDays). Unknown
// types weigh 1.0; events dated in the future count as brand new.
func EventWeight(weights map[string]float64, eventType string, ts, now time.Time, decayDays, floor float64) float64 {
	w, ok := weights[strings.ToLower(strings.TrimSpace(eventType))]
	if !ok {
		w = 1.0
	}
	days := now.Sub(ts).Hours() / 24
	if days < 0 {
		days = 0
	}
	decay := 1 - days/decayDays
	if decay < floor {
		decay = floor
	}
	return w * decay
}

func (b *ProfileBuilder) Build(ctx context.Context, req ProfileRequest) (*UserProfile, error) {
	userID := strings.TrimSpace(req.UserID)
	profile := &UserProfile{UserID: userID, Interacted: map[string]bool{}}
	limit := req.Limit
	if limit <= 0 {
		limit = b.cfg.HistoryLimit
	}
	dbc := dbctx.Context{Ctx: ctx}

	events, err := b.events.ListByUser(dbc, userID, req.EventTypes, limit)
	if err != nil {
		return nil, fmt.Errorf("load user events: %w", err)
	}
	if len(events) == 0 {
		profile.FallbackReason = FallbackNoHistory
		return profile, nil
	}

	now := b.now()
	weights := map[string]float64{}
	for _, ev := range events {
		if ev == nil || strings.TrimSpace(ev.ProductID) == "" {
			continue
		}
		weights[ev.ProductID] += EventWeight(b.cfg.TypeWeights, ev.Type, ev.Timestamp, now, b.cfg.DecayDays, b.cfg.DecayFloor)
		profile.Interacted[ev.ProductID] = true
	}
	for pid, w := range weights {
		profile.Products = append(profile.Products, WeightedProduct{ProductID: pid, Weight: w})
	}
	sort.Slice(profile.Products, func(i, j int) bool {
		if profile.Products[i].Weight != profile.Products[j].Weight {
			return profile.Products[i].Weight > profile.Products[j].Weight
		}
		return profile.Products[i].ProductID < profile.Products[j].ProductID
	})
	if len(profile.Products) > b.cfg.ProfileProducts {
		profile.Products = profile.Products[:b.cfg.ProfileProducts]
	}
	if len(profile.Products) == 0 {
		profile.FallbackReason = FallbackNoHistory
		return profile, nil
	}

	ids := make([]string, len(profile.Products))
	for i, wp := range profile.Products {
		ids[i] = wp.ProductID
	}
	rows, err := b.products.GetByIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("load profile products: %w", err)
	}
	textByID := make(map[string]string, len(rows))
	for _, p := range rows {
		if t := strings.TrimSpace(p.IndexText()); strings.Trim(t, ". ") != "" {
			textByID[p.ID] = t
		}
	}
	texts := make([]string, 0, b.cfg.CompositeTexts)
	for _, wp := range profile.Products {
		if t, ok := textByID[wp.ProductID]; ok {
			texts = append(texts, t)
			if len(texts) == b.cfg.CompositeTexts {
				break
			}
		}
	}
	if len(texts) == 0 {
		profile.FallbackReason = FallbackNoText
		return profile, nil
	}
	profile.CompositeText = strings.Join(texts, compositeSeparator)

	if b.text == nil {
		profile.FallbackReason = FallbackEmbedFailed
		return profile, nil
	}
	vec, err := b.text.EmbedText(ctx, profile.CompositeText, embedding.TaskRetrievalQuery)
	if err != nil || len(vec) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b.log.Warn("profile embedding failed; falling back to popularity", "user_id", userID, "error", err)
		profile.FallbackReason = FallbackEmbedFailed
		return profile, nil
	}
	profile.Vector = vec
	return profile, nil
}
