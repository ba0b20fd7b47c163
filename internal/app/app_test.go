package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/data/repos/testutil"
	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	"github.com/yungbote/catalog-search-backend/internal/modules/indexing"
	"github.com/yungbote/catalog-search-backend/internal/modules/retrieval"
	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

type constText struct{}

func (constText) EmbedText(ctx context.Context, text string, task embedding.TaskType) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (constText) EmbedTexts(ctx context.Context, texts []string, task embedding.TaskType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	cfg := Config{Indexing: indexing.DefaultConfig(), Retrieval: retrieval.DefaultConfig()}
	return &App{Log: log, Cfg: cfg, DB: gdb, Repos: repos.New(gdb, log)}
}

func TestWireServicesRebuildsAndSearches(t *testing.T) {
	a := newTestApp(t)
	a.Index = vectorindex.NewMemory()
	a.Clients.Text = constText{}
	if err := a.wireServices(); err != nil {
		t.Fatalf("wireServices: %v", err)
	}
	ctx := context.Background()
	testutil.SeedProduct(t, ctx, a.DB, "p1", "Trail shoe", "shoes")

	res, err := a.Builder.Rebuild(ctx, indexing.Scope{Kind: datapoint.KindText})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.Upserted != 1 {
		t.Fatalf("upserted: want=1 got=%d", res.Upserted)
	}
	hits, err := a.Retrieval.SearchText(ctx, "shoe", retrieval.SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ProductID != "p1" {
		t.Fatalf("hits: got=%+v", hits)
	}
}

func TestWireServicesWithoutIndexFailsTyped(t *testing.T) {
	a := newTestApp(t)
	a.Clients.Text = constText{}
	if err := a.wireServices(); err != nil {
		t.Fatalf("wireServices: %v", err)
	}
	_, err := a.Builder.Rebuild(context.Background(), indexing.Scope{Kind: datapoint.KindText})
	if !errors.Is(err, indexing.ErrIndexNotConfigured) {
		t.Fatalf("rebuild: want ErrIndexNotConfigured got=%v", err)
	}
	if a.Events == nil {
		t.Fatalf("events service not wired")
	}
}
