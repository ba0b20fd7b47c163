package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

func TestEmbedTextsPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path: want=/v1/embeddings got=%s", r.URL.Path)
		}
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) != 2 || req.Input[1] != " " {
			t.Errorf("input: unexpected %v", req.Input)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	e, err := NewEmbedder(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	out, err := e.EmbedTexts(context.Background(), []string{"red shirt", ""}, embedding.TaskRetrievalDocument)
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if len(out) != 2 || out[0][0] != 1 || out[1][1] != 1 {
		t.Fatalf("EmbedTexts: unexpected order %v", out)
	}
}

func TestEmbedTextsQuotaClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	e, err := NewEmbedder(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	_, err = e.EmbedText(context.Background(), "x", embedding.TaskRetrievalQuery)
	if !errors.Is(err, embedding.ErrQuotaExhausted) {
		t.Fatalf("EmbedText: want quota error got=%v", err)
	}
}
