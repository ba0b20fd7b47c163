package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) *Index {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	host := strings.TrimPrefix(srv.URL, "http://")
	cfg := Config{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		IndexHost:       host,
		NamespacePrefix: "catalog",
		Scheme:          "http",
	}
	log := logger.Nop()
	pc, err := New(log, cfg, srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	idx, err := NewIndex(context.Background(), log, pc, cfg)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func TestQueryMapsScoresToDistance(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Fatalf("path: want=/query got=%s", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "test-key" {
			t.Fatalf("missing api key header")
		}
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Namespace != "catalog:text" || req.TopK != 2 {
			t.Fatalf("request: got ns=%q topK=%d", req.Namespace, req.TopK)
		}
		_, _ = w.Write([]byte(`{"matches":[{"id":"b","score":0.4},{"id":"a","score":0.9},{"id":"","score":1}]}`))
	})

	got, err := idx.Query(context.Background(), "text", []float32{1, 2}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("order: got=%+v", got)
	}
	if d := got[0].Distance; d < 0.0999 || d > 0.1001 {
		t.Fatalf("distance: want=0.1 got=%v", d)
	}
}

func TestUpsertAndDeleteShapes(t *testing.T) {
	var upserted []Vector
	var deleted []string
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vectors/upsert":
			var req UpsertRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Namespace != "catalog:images" {
				t.Fatalf("namespace: got=%q", req.Namespace)
			}
			upserted = append(upserted, req.Vectors...)
			_, _ = w.Write([]byte(`{"upsertedCount":1}`))
		case "/vectors/delete":
			var req DeleteRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			deleted = append(deleted, req.IDs...)
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()
	if err := idx.Upsert(ctx, "images", []vectorindex.Datapoint{{ID: "p1_0", Values: []float32{1}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.Delete(ctx, "images", []string{"p1_0"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(upserted) != 1 || upserted[0].ID != "p1_0" {
		t.Fatalf("upserted: got=%+v", upserted)
	}
	if len(deleted) != 1 || deleted[0] != "p1_0" {
		t.Fatalf("deleted: got=%v", deleted)
	}
}

func TestRateLimitSurfacesAsQuota(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	})
	_, err := idx.Query(context.Background(), "text", []float32{1}, 1)
	if !embedding.IsQuotaExhausted(err) {
		t.Fatalf("want quota error got %v", err)
	}
}
