package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

// JSONCache is satisfied by *rediscache.Cache. A nil cache disables caching.
type JSONCache interface {
	Key(parts ...string) string
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

type PopularityQuery struct {
	Limit      int
	EventTypes []string
	// WindowDays limits counting to recent events; 0 counts all history.
	WindowDays int
}

type PopularProduct struct {
	ProductID string `json:"product_id"`
	Count     int64  `json:"count"`
}

type PopularityRanker struct {
	log    *logger.Logger
	events repos.InteractionEventRepo
	cache  JSONCache
	ttl    time.Duration
	now    func() time.Time
}

func NewPopularityRanker(log *logger.Logger, events repos.InteractionEventRepo, cache JSONCache, ttl time.Duration) *PopularityRanker {
	return &PopularityRanker{
		log:    log.With("service", "PopularityRanker"),
		events: events,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *PopularityRanker) cacheKey(q PopularityQuery) string {
	typesPart := "all"
	if len(q.EventTypes) > 0 {
		ts := append([]string(nil), q.EventTypes...)
		sort.Strings(ts)
		typesPart = strings.Join(ts, ",")
	}
	return r.cache.Key("popular", typesPart, "w"+strconv.Itoa(q.WindowDays), "n"+strconv.Itoa(q.Limit))
}

// Top ranks products by event count, ties by product id.
func (r *PopularityRanker) Top(ctx context.Context, q PopularityQuery) ([]PopularProduct, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultTopK
	}
	useCache := r.cache != nil && r.ttl > 0
	var key string
	if useCache {
		key = r.cacheKey(q)
		var cached []PopularProduct
		hit, err := r.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			r.log.Warn("popularity cache read failed", "key", key, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	pq := repos.PopularQuery{Types: q.EventTypes, Limit: q.Limit}
	if q.WindowDays > 0 {
		since := r.now().Add(-time.Duration(q.WindowDays) * 24 * time.Hour)
		pq.Since = &since
	}
	rows, err := r.events.PopularProducts(dbctx.Context{Ctx: ctx}, pq)
	if err != nil {
		return nil, fmt.Errorf("popular products: %w", err)
	}
	out := make([]PopularProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, PopularProduct{ProductID: row.ProductID, Count: row.Count})
	}

	if useCache {
		if err := r.cache.SetJSON(ctx, key, out, r.ttl); err != nil {
			r.log.Warn("popularity cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}
