package app

import (
	"context"
	"fmt"

	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/openai"
	"github.com/yungbote/catalog-search-backend/internal/platform/rediscache"
	"github.com/yungbote/catalog-search-backend/internal/platform/vertex"
)

var (
	newVertexClient = func(ctx context.Context, log *logger.Logger, cfg vertex.Config, metrics *observability.Metrics) (*vertex.Client, error) {
		return vertex.New(ctx, log, cfg, nil, metrics)
	}
	newOpenAIEmbedder = openai.NewEmbedder
)

type Clients struct {
	Vertex *vertex.Client
	Text   embedding.TextEmbedder
	Image  embedding.ImageEmbedder
	Cache  *rediscache.Cache
}

// wireClients creates the embedding providers and the optional Redis cache.
// Missing provider config leaves that modality nil; operations that need it
// then fail with a typed config error instead of at startup.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	vcfg := vertex.ConfigFromEnv()
	if err := vcfg.ValidateEmbedding(); err != nil {
		log.Warn("Vertex AI not configured; vertex embeddings and index disabled", "error", err)
	} else {
		vc, err := newVertexClient(ctx, log, vcfg, metrics)
		if err != nil {
			return Clients{}, fmt.Errorf("init vertex client: %w", err)
		}
		out.Vertex = vc
		out.Image = vertex.NewImageEmbedder(vc)
	}

	switch cfg.TextEmbeddingProvider {
	case EmbeddingProviderOpenAI:
		oe, err := newOpenAIEmbedder(log, openai.ConfigFromEnv())
		if err != nil {
			return Clients{}, fmt.Errorf("init openai embedder: %w", err)
		}
		out.Text = oe
	case EmbeddingProviderVertex, "":
		if out.Vertex != nil {
			out.Text = vertex.NewTextEmbedder(out.Vertex)
		}
	default:
		return Clients{}, fmt.Errorf("unsupported TEXT_EMBEDDING_PROVIDER %q", cfg.TextEmbeddingProvider)
	}

	rcfg := rediscache.ConfigFromEnv()
	if rcfg.Addr != "" {
		cache, err := rediscache.New(ctx, log, rcfg)
		if err != nil {
			if envutil.Bool("REDIS_REQUIRED", false) {
				return Clients{}, fmt.Errorf("init redis cache: %w", err)
			}
			log.Warn("Redis unavailable; popularity cache disabled", "error", err)
		} else {
			out.Cache = cache
		}
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}
