package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

func newTestClient(t *testing.T, mutate func(*Config), handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{
		Project:              "proj",
		Location:             "us-central1",
		BaseURL:              srv.URL,
		TextModel:            "text-embedding-005",
		ImageModel:           "multimodalembedding@001",
		ImageDimension:       1408,
		TextIndex:            "projects/proj/locations/us-central1/indexes/111",
		ImageIndex:           "projects/proj/locations/us-central1/indexes/222",
		IndexEndpoint:        "projects/proj/locations/us-central1/indexEndpoints/333",
		TextDeployedIndexID:  "text_deployed",
		ImageDeployedIndexID: "image_deployed",
		PublicEndpointDomain: srv.URL,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(context.Background(), logger.Nop(), cfg, srv.Client(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestEmbedTextsBatchesAndPreservesOrder(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(cfg *Config) { cfg.TextModel = "gemini-embedding-001" }, func(w http.ResponseWriter, r *http.Request) {
		calls++
		want := "/v1/projects/proj/locations/us-central1/publishers/google/models/gemini-embedding-001:predict"
		if r.URL.Path != want {
			t.Fatalf("path: want=%q got=%q", want, r.URL.Path)
		}
		var req textPredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(req.Instances) != 1 {
			t.Fatalf("gemini models take one instance, got %d", len(req.Instances))
		}
		if req.Instances[0].TaskType != "RETRIEVAL_DOCUMENT" {
			t.Fatalf("task_type: got=%q", req.Instances[0].TaskType)
		}
		v := float32(len(req.Instances[0].Content))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"predictions": []any{map[string]any{"embeddings": map[string]any{"values": []float32{v}}}},
		})
	})
	out, err := NewTextEmbedder(c).EmbedTexts(context.Background(), []string{"a", "bb", "ccc"}, embedding.TaskRetrievalDocument)
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
	for i, want := range []float32{1, 2, 3} {
		if out[i][0] != want {
			t.Fatalf("out[%d]: want=%v got=%v", i, want, out[i][0])
		}
	}
}

func TestEmbedTextQuotaError(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	})
	_, err := NewTextEmbedder(c).EmbedText(context.Background(), "q", embedding.TaskRetrievalQuery)
	if !embedding.IsQuotaExhausted(err) {
		t.Fatalf("want quota error got %v", err)
	}
}

func TestEmbedImageSendsBytesAndContext(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		var req imagePredictRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		inst := req.Instances[0]
		if inst.Image.BytesBase64Encoded != "aGVsbG8=" || inst.Image.GCSURI != "" {
			t.Fatalf("image payload: got=%+v", inst.Image)
		}
		if inst.Text != "Red Shoe" || req.Parameters.Dimension != 1408 {
			t.Fatalf("text/dimension: got=%q/%d", inst.Text, req.Parameters.Dimension)
		}
		_, _ = w.Write([]byte(`{"predictions":[{"imageEmbedding":[0.5,0.25]}]}`))
	})
	vec, err := NewImageEmbedder(c).EmbedImage(context.Background(), embedding.ImageInput{Bytes: []byte("hello"), ContextText: " Red Shoe "})
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Fatalf("vec: got=%v", vec)
	}
}

func TestEmbedImageUsesGCSURI(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		var req imagePredictRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Instances[0].Image.GCSURI != "gs://b/k.jpg" {
			t.Fatalf("gcsUri: got=%q", req.Instances[0].Image.GCSURI)
		}
		_, _ = w.Write([]byte(`{"predictions":[{"imageEmbedding":[1]}]}`))
	})
	if _, err := NewImageEmbedder(c).EmbedImage(context.Background(), embedding.ImageInput{URI: "gs://b/k.jpg"}); err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	if _, err := NewImageEmbedder(c).EmbedImage(context.Background(), embedding.ImageInput{URI: "https://x/y.jpg"}); err == nil {
		t.Fatalf("https uri without bytes: expected error")
	}
}

func TestIndexUpsertRemoveAndQuery(t *testing.T) {
	var paths []string
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, ":findNeighbors"):
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["deployedIndexId"] != "image_deployed" {
				t.Fatalf("deployedIndexId: got=%v", req["deployedIndexId"])
			}
			_, _ = w.Write([]byte(`{"nearestNeighbors":[{"neighbors":[
				{"datapoint":{"datapointId":"p2_0"},"distance":0.4},
				{"datapoint":{"datapointId":"p1_0"},"distance":0.4},
				{"datapoint":{"datapointId":"p3_1"},"distance":0.1}]}]}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})
	idx, err := NewIndex(c)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	ctx := context.Background()
	if err := idx.Upsert(ctx, "images", []vectorindex.Datapoint{{ID: "p1_0", Values: []float32{1}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.Delete(ctx, "images", []string{"p1_0"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := idx.Query(ctx, "images", []float32{1}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	wantIDs := []string{"p3_1", "p1_0", "p2_0"}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("order[%d]: want=%s got=%s", i, id, got[i].ID)
		}
	}
	wantPaths := []string{
		"/v1/projects/proj/locations/us-central1/indexes/222:upsertDatapoints",
		"/v1/projects/proj/locations/us-central1/indexes/222:removeDatapoints",
		"/v1/projects/proj/locations/us-central1/indexEndpoints/333:findNeighbors",
	}
	for i, p := range wantPaths {
		if paths[i] != p {
			t.Fatalf("path[%d]: want=%q got=%q", i, p, paths[i])
		}
	}
}

func TestIndexDistanceIsSimilarity(t *testing.T) {
	c := newTestClient(t, func(cfg *Config) { cfg.DistanceIsSimilarity = true }, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nearestNeighbors":[{"neighbors":[
			{"datapoint":{"datapointId":"low"},"distance":0.2},
			{"datapoint":{"datapointId":"high"},"distance":0.9}]}]}`))
	})
	idx, _ := NewIndex(c)
	got, err := idx.Query(context.Background(), "text", []float32{1}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got[0].ID != "high" {
		t.Fatalf("similarity scores should invert: got=%+v", got)
	}
}

func TestIndexUnconfiguredNamespace(t *testing.T) {
	c := newTestClient(t, func(cfg *Config) { cfg.ImageIndex = "" }, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request")
	})
	idx, _ := NewIndex(c)
	err := idx.Upsert(context.Background(), "images", []vectorindex.Datapoint{{ID: "p_0"}})
	if !errors.Is(err, vectorindex.ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured got %v", err)
	}
}
