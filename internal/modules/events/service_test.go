package events

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/data/repos/testutil"
	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/platform/apierr"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
)

func newService(t *testing.T) (*Service, repos.Repos) {
	t.Helper()
	r := repos.New(testutil.DB(t), testutil.Logger(t))
	return NewService(testutil.Logger(t), r.Events), r
}

func TestTrackValidates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	ev, err := svc.Track(ctx, EventInput{UserID: "u", ProductID: "p", Type: " Purchase ", Metadata: map[string]any{"qty": 2}})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if ev.Type != types.EventPurchase || len(ev.Metadata) == 0 {
		t.Fatalf("Track: got=%+v", ev)
	}

	_, err = svc.Track(ctx, EventInput{UserID: "u", ProductID: "p", Type: "share"})
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusBadRequest || ae.Code != "invalid_event_type" {
		t.Fatalf("invalid type: want=400 invalid_event_type got=%v", err)
	}
	if _, err := svc.Track(ctx, EventInput{UserID: "u", Type: "view"}); apierr.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("missing product: want=400 got=%v", err)
	}
}

func TestTrackBatchReportsPerEventErrors(t *testing.T) {
	svc, r := newService(t)
	ctx := context.Background()
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	res := svc.TrackBatch(ctx, []EventInput{
		{UserID: "u", ProductID: "p1", Type: "view", Timestamp: &ts},
		{UserID: "u", ProductID: "", Type: "view"},
		{UserID: "u", ProductID: "p2", Type: "teleport"},
		{UserID: "u", ProductID: "p3", Type: "cart"},
	})
	if res.Tracked != 2 || res.Failed != 2 {
		t.Fatalf("TrackBatch: want tracked=2 failed=2 got=%+v", res)
	}
	if res.Errors[0].Index != 1 || res.Errors[1].Index != 2 {
		t.Fatalf("error indexes: got=%+v", res.Errors)
	}

	history, err := r.Events.ListByUser(dbctx.Context{Ctx: ctx}, "u", nil, 10)
	if err != nil || len(history) != 2 {
		t.Fatalf("stored events: want=2 got=%d err=%v", len(history), err)
	}
	for _, ev := range history {
		if ev.ProductID == "p1" && !ev.Timestamp.Equal(ts) {
			t.Fatalf("explicit timestamp: want=%v got=%v", ts, ev.Timestamp)
		}
	}

	if empty := svc.TrackBatch(ctx, nil); empty.Tracked != 0 || empty.Failed != 0 {
		t.Fatalf("empty batch: got=%+v", empty)
	}
}

func TestStatsHistoryAndPopular(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.TrackBatch(ctx, []EventInput{
		{UserID: "u", ProductID: "p1", Type: "view"},
		{UserID: "u", ProductID: "p1", Type: "cart"},
		{UserID: "u", ProductID: "p2", Type: "view"},
		{UserID: "v", ProductID: "p2", Type: "purchase"},
	})
	old := now.AddDate(0, -3, 0)
	if _, err := svc.Track(ctx, EventInput{UserID: "v", ProductID: "p3", Type: "view", Timestamp: &old}); err != nil {
		t.Fatalf("Track old: %v", err)
	}

	stats, err := svc.UserStats(ctx, "u")
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if stats.Total != 3 || stats.UniqueProducts != 2 || stats.ByType[types.EventView] != 2 {
		t.Fatalf("UserStats: got=%+v", stats)
	}

	history, err := svc.History(ctx, "u", []string{types.EventCart}, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("History: want=1 got=%d err=%v", len(history), err)
	}

	popular, err := svc.Popular(ctx, 10, nil, 30)
	if err != nil {
		t.Fatalf("Popular: %v", err)
	}
	if len(popular) != 2 || popular[0].ProductID != "p1" || popular[1].ProductID != "p2" {
		t.Fatalf("Popular window: got=%+v", popular)
	}
	if _, err := svc.UserStats(ctx, " "); apierr.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("blank user: want=400 got=%v", err)
	}
}
