package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

func TestIndexUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut {
			t.Fatalf("method: want=%s got=%s", http.MethodPut, r.Method)
		}
		if r.URL.Path != "/collections/catalog_images/points" {
			t.Fatalf("path: want=%q got=%q", "/collections/catalog_images/points", r.URL.Path)
		}
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	err := s.Upsert(context.Background(), "images", []vectorindex.Datapoint{
		{ID: "p1_0", Values: []float32{1, 2, 3}},
		{ID: "p1_999", Values: []float32{4, 5, 6}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	points, ok := captured["points"].([]any)
	if !ok || len(points) != 2 {
		t.Fatalf("points: got=%v", captured["points"])
	}
	first := points[0].(map[string]any)
	if first["id"] != pointID("images", "p1_0") {
		t.Fatalf("point id mismatch: got=%v", first["id"])
	}
	payload := first["payload"].(map[string]any)
	if payload[payloadDatapointIDKey] != "p1_0" {
		t.Fatalf("payload datapoint id: want=%q got=%v", "p1_0", payload[payloadDatapointIDKey])
	}
}

func TestIndexUpsertRejectsDimensionMismatch(t *testing.T) {
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request %s", r.URL.Path)
		return nil, nil
	})
	err := s.Upsert(context.Background(), "text", []vectorindex.Datapoint{{ID: "p1", Values: []float32{1}}})
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != OperationErrorValidation {
		t.Fatalf("want validation error got %v", err)
	}
}

func TestIndexQueryMapsScoresToDistance(t *testing.T) {
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/catalog_text/points/search" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		return okResponse(t, []map[string]any{
			{"id": "x", "score": 0.2, "payload": map[string]any{payloadDatapointIDKey: "p2"}},
			{"id": "y", "score": 0.9, "payload": map[string]any{payloadDatapointIDKey: "p1"}},
		}), nil
	})
	got, err := s.Query(context.Background(), "text", []float32{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "p2" {
		t.Fatalf("order: got=%+v", got)
	}
	if d := got[0].Distance; d < 0.0999 || d > 0.1001 {
		t.Fatalf("distance: want=0.1 got=%v", d)
	}
}

func TestIndexQueryEuclidScoresAreDistances(t *testing.T) {
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return okResponse(t, []map[string]any{
			{"id": "x", "score": 2.5, "payload": map[string]any{payloadDatapointIDKey: "far"}},
			{"id": "y", "score": 0.5, "payload": map[string]any{payloadDatapointIDKey: "near"}},
		}), nil
	})
	s.distances["text"] = "Euclid"
	got, err := s.Query(context.Background(), "text", []float32{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got[0].ID != "near" || got[0].Distance != 0.5 {
		t.Fatalf("euclid: got=%+v", got)
	}
}

func TestIndexDeleteDedupesPointIDs(t *testing.T) {
	var captured map[string]any
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/catalog_text/points/delete" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})
	if err := s.Delete(context.Background(), "text", []string{"p1", "p1", " ", "p2"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if pts := captured["points"].([]any); len(pts) != 2 {
		t.Fatalf("points: want=2 got=%d", len(pts))
	}
}

func TestIndexRateLimitIsQuota(t *testing.T) {
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"status":{"error":"rate limited"}}`))),
		}, nil
	})
	_, err := s.Query(context.Background(), "text", []float32{1, 2, 3}, 1)
	if !embedding.IsQuotaExhausted(err) {
		t.Fatalf("want quota error got %v", err)
	}
}

func TestClassifyHTTPCallErrorTransport(t *testing.T) {
	err := classifyHTTPCallError("query", "transport", fmt.Errorf("boom"))
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorTransportFailed {
		t.Fatalf("error code: want=%q got=%q", OperationErrorTransportFailed, opErr.Code)
	}
}

func TestClassifyHTTPCallErrorTimeout(t *testing.T) {
	err := classifyHTTPCallError("query", "timeout", context.DeadlineExceeded)
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != OperationErrorTimeout {
		t.Fatalf("want timeout code got %v", err)
	}
}

func newTestIndex(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *Index {
	t.Helper()
	return &Index{
		log:       logger.Nop(),
		cfg:       Config{Collection: "catalog", Dims: map[string]int{"text": 3, "images": 3}},
		baseURL:   "http://qdrant.local",
		http:      &http.Client{Transport: roundTripFunc(roundTrip)},
		distances: map[string]string{"text": "Cosine", "images": "Cosine"},
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"result": result,
		"status": "ok",
		"time":   0.001,
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
