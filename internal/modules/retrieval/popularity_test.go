package retrieval

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/data/repos/testutil"
	types "github.com/yungbote/catalog-search-backend/internal/domain"
)

type mapCache struct {
	data map[string][]byte
	sets int
}

func (m *mapCache) Key(parts ...string) string { return "test:" + strings.Join(parts, ":") }

func (m *mapCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *mapCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.sets++
	return nil
}

func TestPopularityRankerWindowTypesAndCache(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	r := repos.New(db, testutil.Logger(t))
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	testutil.SeedEvent(t, ctx, db, "u1", "old", types.EventPurchase, now.AddDate(0, 0, -40))
	testutil.SeedEvent(t, ctx, db, "u2", "old", types.EventPurchase, now.AddDate(0, 0, -41))
	testutil.SeedEvent(t, ctx, db, "u1", "new", types.EventView, now.AddDate(0, 0, -1))
	testutil.SeedEvent(t, ctx, db, "u3", "cart", types.EventCart, now.AddDate(0, 0, -2))

	cache := &mapCache{data: map[string][]byte{}}
	ranker := NewPopularityRanker(testutil.Logger(t), r.Events, cache, time.Minute)
	ranker.now = func() time.Time { return now }

	all, err := ranker.Top(ctx, PopularityQuery{Limit: 5})
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(all) != 3 || all[0].ProductID != "old" || all[0].Count != 2 || all[1].ProductID != "cart" {
		t.Fatalf("all history: got=%+v", all)
	}

	recent, err := ranker.Top(ctx, PopularityQuery{Limit: 5, WindowDays: 30})
	if err != nil {
		t.Fatalf("Top window: %v", err)
	}
	if len(recent) != 2 || recent[0].ProductID != "cart" || recent[1].ProductID != "new" {
		t.Fatalf("30-day window: got=%+v", recent)
	}

	views, err := ranker.Top(ctx, PopularityQuery{Limit: 5, EventTypes: []string{types.EventView}})
	if err != nil {
		t.Fatalf("Top types: %v", err)
	}
	if len(views) != 1 || views[0].ProductID != "new" {
		t.Fatalf("view filter: got=%+v", views)
	}

	// cached results survive new events until the ttl expires
	testutil.SeedEvent(t, ctx, db, "u4", "new", types.EventView, now)
	testutil.SeedEvent(t, ctx, db, "u5", "new", types.EventView, now)
	testutil.SeedEvent(t, ctx, db, "u6", "new", types.EventView, now)
	again, err := ranker.Top(ctx, PopularityQuery{Limit: 5})
	if err != nil {
		t.Fatalf("Top cached: %v", err)
	}
	if again[0].ProductID != "old" || cache.sets != 3 {
		t.Fatalf("cache: want stale hit got=%+v sets=%d", again, cache.sets)
	}
}
