package events

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/data/repos/testutil"
	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
)

func TestInteractionEventRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewInteractionEventRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	testutil.SeedEvent(t, ctx, db, "u1", "p1", types.EventView, now.Add(-3*time.Hour))
	testutil.SeedEvent(t, ctx, db, "u1", "p2", types.EventPurchase, now.Add(-1*time.Hour))
	testutil.SeedEvent(t, ctx, db, "u1", "p1", types.EventCart, now.Add(-2*time.Hour))
	testutil.SeedEvent(t, ctx, db, "u2", "p3", types.EventView, now.Add(-40*24*time.Hour))
	testutil.SeedEvent(t, ctx, db, "u2", "p2", types.EventView, now)

	history, err := repo.ListByUser(dbc, "u1", nil, 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(history) != 2 || history[0].ProductID != "p2" || history[1].Type != types.EventCart {
		t.Fatalf("ListByUser: unexpected order %+v", history)
	}

	views, err := repo.ListByUser(dbc, "u1", []string{types.EventView}, 0)
	if err != nil || len(views) != 1 {
		t.Fatalf("ListByUser types: want=1 got=%d err=%v", len(views), err)
	}

	popular, err := repo.PopularProducts(dbc, PopularQuery{Limit: 10})
	if err != nil {
		t.Fatalf("PopularProducts: %v", err)
	}
	if len(popular) != 3 || popular[0].ProductID != "p1" || popular[0].Count != 2 || popular[1].ProductID != "p2" {
		t.Fatalf("PopularProducts: unexpected %+v", popular)
	}

	since := now.Add(-7 * 24 * time.Hour)
	recent, err := repo.PopularProducts(dbc, PopularQuery{Since: &since, Limit: 10})
	if err != nil {
		t.Fatalf("PopularProducts since: %v", err)
	}
	for _, pc := range recent {
		if pc.ProductID == "p3" {
			t.Fatalf("PopularProducts since: p3 is outside the window")
		}
	}

	stats, err := repo.UserStats(dbc, "u1")
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if stats.Total != 3 || stats.UniqueProducts != 2 || stats.ByType[types.EventPurchase] != 1 {
		t.Fatalf("UserStats: unexpected %+v", stats)
	}
}
