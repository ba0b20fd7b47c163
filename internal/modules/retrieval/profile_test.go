package retrieval

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/data/repos/testutil"
	types "github.com/yungbote/catalog-search-backend/internal/domain"
)

func TestEventWeightDecayHasFloor(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	w := DefaultTypeWeights()

	fresh := EventWeight(w, "purchase", now, now, 365, 0.5)
	if fresh != 3.0 {
		t.Fatalf("fresh purchase: want=3 got=%v", fresh)
	}
	old := EventWeight(w, "purchase", now.AddDate(-10, 0, 0), now, 365, 0.5)
	if old < 0.5*3.0 {
		t.Fatalf("10-year-old purchase: want>=1.5 got=%v", old)
	}
	half := EventWeight(w, "view", now.Add(-time.Duration(365*12)*time.Hour), now, 365, 0.5)
	if math.Abs(half-0.5) > 1e-9 {
		t.Fatalf("half-year view: want=0.5 got=%v", half)
	}
	if got := EventWeight(w, "share", now, now, 365, 0.5); got != 1.0 {
		t.Fatalf("unknown type: want=1 got=%v", got)
	}
	if got := EventWeight(w, "CART", now.Add(time.Hour), now, 365, 0.5); got != 1.5 {
		t.Fatalf("future cart: want=1.5 got=%v", got)
	}
}

func TestProfileBuilderComposite(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	r := repos.New(db, testutil.Logger(t))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		testutil.SeedProduct(t, ctx, db, id, "Item "+id, "")
	}
	testutil.SeedEvent(t, ctx, db, "u", "a", types.EventView, now)
	testutil.SeedEvent(t, ctx, db, "u", "b", types.EventPurchase, now)
	testutil.SeedEvent(t, ctx, db, "u", "c", types.EventCart, now)
	testutil.SeedEvent(t, ctx, db, "u", "d", types.EventWishlist, now)
	testutil.SeedEvent(t, ctx, db, "u", "e", types.EventView, now)
	testutil.SeedEvent(t, ctx, db, "u", "f", types.EventView, now)
	testutil.SeedEvent(t, ctx, db, "u", "a", types.EventView, now.Add(-time.Hour))

	text := &keywordText{}
	b := NewProfileBuilder(testutil.Logger(t), r.Events, r.Products, text, DefaultConfig())
	b.now = func() time.Time { return now }

	p, err := b.Build(ctx, ProfileRequest{UserID: "u"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	order := make([]string, len(p.Products))
	for i, wp := range p.Products {
		order[i] = wp.ProductID
	}
	// b=3, d=2, a≈2 (two views, one an hour old), c=1.5, then e and f by id
	want := []string{"b", "d", "a", "c", "e", "f"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("weighted order: want=%v got=%v", want, order)
	}
	parts := strings.Split(p.CompositeText, " | ")
	if len(parts) != 5 || !strings.HasPrefix(parts[0], "Item b") {
		t.Fatalf("composite: want 5 texts led by b got=%q", p.CompositeText)
	}
	if p.Vector == nil || len(text.calls) != 1 {
		t.Fatalf("composite should be embedded once: vector=%v calls=%d", p.Vector, len(text.calls))
	}
	if !p.Interacted["f"] {
		t.Fatalf("interacted set missing f")
	}
}

func TestProfileBuilderNoHistory(t *testing.T) {
	db := testutil.DB(t)
	r := repos.New(db, testutil.Logger(t))
	b := NewProfileBuilder(testutil.Logger(t), r.Events, r.Products, &keywordText{}, DefaultConfig())
	p, err := b.Build(context.Background(), ProfileRequest{UserID: "nobody"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Vector != nil || p.FallbackReason != FallbackNoHistory {
		t.Fatalf("no history: got=%+v", p)
	}
}
