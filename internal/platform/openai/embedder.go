package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:     envutil.String("OPENAI_API_KEY", ""),
		BaseURL:    envutil.String("OPENAI_BASE_URL", ""),
		Model:      envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		Dimensions: envutil.Int("OPENAI_EMBED_DIMENSIONS", 0),
		Timeout:    envutil.Duration("OPENAI_TIMEOUT_SECONDS", 30*time.Second),
	}
}

// Embedder is a text-only provider. OpenAI has no task types, so the task hint is ignored.
type Embedder struct {
	log    *logger.Logger
	client *goopenai.Client
	cfg    Config
}

var _ embedding.TextEmbedder = (*Embedder)(nil)

func NewEmbedder(log *logger.Logger, cfg Config) (*Embedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		oc.BaseURL = base
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Embedder{
		log:    log.With("client", "OpenAIEmbedder", "model", cfg.Model),
		client: goopenai.NewClientWithConfig(oc),
		cfg:    cfg,
	}, nil
}

func (e *Embedder) EmbedText(ctx context.Context, text string, task embedding.TaskType) ([]float32, error) {
	out, err := e.EmbedTexts(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string, _ embedding.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		clean[i] = t
	}
	req := goopenai.EmbeddingRequest{
		Input: clean,
		Model: goopenai.EmbeddingModel(e.cfg.Model),
	}
	if e.cfg.Dimensions > 0 {
		req.Dimensions = e.cfg.Dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}
	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("openai embeddings: missing vector for input %d of %d", i, len(out))
		}
	}
	return out, nil
}

func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", embedding.ErrQuotaExhausted, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", embedding.ErrQuotaExhausted, err)
	}
	return fmt.Errorf("openai embeddings: %w", err)
}
