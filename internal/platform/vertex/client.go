// Package vertex talks to Vertex AI over REST: publisher-model predictions
// for embeddings and Vector Search for datapoint storage and retrieval.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	htransport "google.golang.org/api/transport/http"

	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/gcp"
	"github.com/yungbote/catalog-search-backend/internal/platform/httpx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type Client struct {
	log     *logger.Logger
	cfg     Config
	http    *http.Client
	metrics *observability.Metrics
}

// New builds a client. A nil httpClient is replaced by an OAuth2 client
// using credentials from the environment.
func New(ctx context.Context, log *logger.Logger, cfg Config, httpClient *http.Client, metrics *observability.Metrics) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := cfg.ValidateEmbedding(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		opts := gcp.ClientOptions(cloudPlatformScope)
		hc, _, err := htransport.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("vertex http client: %w", err)
		}
		if cfg.Timeout > 0 {
			hc.Timeout = cfg.Timeout
		}
		httpClient = hc
	}
	return &Client{
		log:     log.With("client", "VertexClient"),
		cfg:     cfg,
		http:    httpClient,
		metrics: metrics,
	}, nil
}

func (c *Client) Config() Config { return c.cfg }

func doJSON[T any](c *Client, ctx context.Context, url string, body any) (*T, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpx.NewStatusError("vertex", resp, raw)
	}
	var out T
	if len(bytes.TrimSpace(raw)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("vertex decode error: %w", err)
	}
	return &out, nil
}
