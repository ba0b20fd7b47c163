package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/apierr"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/imagefetch"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

// ImageFetcher is satisfied by *imagefetch.Fetcher.
type ImageFetcher interface {
	Fetch(ctx context.Context, uri string) (*imagefetch.Image, error)
}

type ServiceDeps struct {
	Log        *logger.Logger
	Products   repos.ProductRepo
	Embeddings repos.EmbeddingRecordRepo
	Events     repos.InteractionEventRepo
	Index      vectorindex.Index
	Text       embedding.TextEmbedder
	Image      embedding.ImageEmbedder
	// Fetcher loads http(s)/s3 query images; gs:// URIs go to the embedder as is.
	Fetcher ImageFetcher
	// Cache backs the popularity ranker; nil disables caching.
	Cache   JSONCache
	Metrics *observability.Metrics
}

type Service struct {
	log        *logger.Logger
	products   repos.ProductRepo
	embeddings repos.EmbeddingRecordRepo
	index      vectorindex.Index
	text       embedding.TextEmbedder
	image      embedding.ImageEmbedder
	fetcher    ImageFetcher
	profiles   *ProfileBuilder
	popularity *PopularityRanker
	metrics    *observability.Metrics
	cfg        Config
}

func NewService(deps ServiceDeps, cfg Config) (*Service, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("retrieval: logger required")
	}
	if deps.Products == nil || deps.Embeddings == nil || deps.Events == nil {
		return nil, fmt.Errorf("retrieval: repos required")
	}
	cfg = cfg.normalized()
	return &Service{
		log:        deps.Log.With("service", "RetrievalService"),
		products:   deps.Products,
		embeddings: deps.Embeddings,
		index:      deps.Index,
		text:       deps.Text,
		image:      deps.Image,
		fetcher:    deps.Fetcher,
		profiles:   NewProfileBuilder(deps.Log, deps.Events, deps.Products, deps.Text, cfg),
		popularity: NewPopularityRanker(deps.Log, deps.Events, deps.Cache, cfg.PopularityCacheTTL),
		metrics:    deps.Metrics,
		cfg:        cfg,
	}, nil
}

type SearchOptions struct {
	TopK            int     `json:"top_k,omitempty"`
	CandidateK      int     `json:"candidate_k,omitempty"`
	PerEntityRerank int     `json:"per_entity_rerank,omitempty"`
	MinSimilarity   float64 `json:"min_similarity,omitempty"`
}

type SearchRequest struct {
	Kind   datapoint.Kind
	Vector []float32
	SearchOptions
	ExcludeProductIDs []string
}

type ImageQuery struct {
	Bytes       []byte
	URI         string
	ContextText string
}

func (s *Service) topK(n int) int {
	if n <= 0 {
		return s.cfg.TopK
	}
	return n
}

// Search ranks products for a query vector already in the scope's embedding space.
func (s *Service) Search(ctx context.Context, req SearchRequest) (out []CandidateScore, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRetrieval(string(req.Kind), StrategySearch, err, time.Since(start), len(out)) }()

	ranked, err := s.rank(ctx, req)
	if err != nil {
		return nil, err
	}
	return truncate(ranked, s.topK(req.TopK)), nil
}

func (s *Service) SearchText(ctx context.Context, query string, opts SearchOptions) ([]CandidateScore, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierr.BadRequest("query_required", "query is required")
	}
	if s.text == nil {
		return nil, fmt.Errorf("retrieval: %w", errTextEmbedderMissing)
	}
	vec, err := s.text.EmbedText(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, apierr.Upstream("query_embedding_failed", err)
	}
	return s.Search(ctx, SearchRequest{Kind: datapoint.KindText, Vector: vec, SearchOptions: opts})
}

// SearchImage embeds the query image and ranks products by their closest image.
func (s *Service) SearchImage(ctx context.Context, q ImageQuery, opts SearchOptions) ([]CandidateScore, error) {
	if s.image == nil {
		return nil, fmt.Errorf("retrieval: %w", errImageEmbedderMissing)
	}
	in := embedding.ImageInput{Bytes: q.Bytes, ContextText: strings.TrimSpace(q.ContextText)}
	uri := strings.TrimSpace(q.URI)
	switch {
	case len(q.Bytes) > 0:
	case strings.HasPrefix(strings.ToLower(uri), "gs://"):
		in.URI = uri
	case uri != "":
		if s.fetcher == nil {
			return nil, apierr.BadRequest("unsupported_image_uri", "image uri %q cannot be fetched", uri)
		}
		img, err := s.fetcher.Fetch(ctx, uri)
		if err != nil {
			if errors.Is(err, imagefetch.ErrUnsupportedSource) || errors.Is(err, imagefetch.ErrTooLarge) || errors.Is(err, imagefetch.ErrNotImage) {
				return nil, apierr.BadRequest("invalid_image", "%v", err)
			}
			return nil, apierr.Upstream("image_fetch_failed", err)
		}
		in.Bytes = img.Bytes
	default:
		return nil, apierr.BadRequest("image_required", "image bytes or uri required")
	}
	vec, err := s.image.EmbedImage(ctx, in)
	if err != nil {
		return nil, apierr.Upstream("query_embedding_failed", err)
	}
	return s.Search(ctx, SearchRequest{Kind: datapoint.KindImage, Vector: vec, SearchOptions: opts})
}

// Similar ranks products by text similarity to productID, excluding it.
func (s *Service) Similar(ctx context.Context, productID string, opts SearchOptions) ([]CandidateScore, error) {
	vec, err := s.productVector(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, SearchRequest{
		Kind:              datapoint.KindText,
		Vector:            vec,
		SearchOptions:     opts,
		ExcludeProductIDs: []string{strings.TrimSpace(productID)},
	})
}

// productVector prefers the mirrored text vector and embeds the product text otherwise.
func (s *Service) productVector(ctx context.Context, productID string) ([]float32, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, apierr.BadRequest("product_id_required", "product id is required")
	}
	dbc := dbctx.Context{Ctx: ctx}
	rec, err := s.embeddings.GetByDatapointID(dbc, string(datapoint.KindText), datapoint.EncodeText(productID))
	if err != nil {
		return nil, fmt.Errorf("load mirror vector: %w", err)
	}
	if rec != nil {
		if vec := rec.Vector(); len(vec) > 0 {
			return vec, nil
		}
	}
	rows, err := s.products.GetByIDs(dbc, []string{productID})
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if len(rows) == 0 {
		return nil, apierr.NotFound("product_not_found", "product %s not found", productID)
	}
	if s.text == nil {
		return nil, fmt.Errorf("retrieval: %w", errTextEmbedderMissing)
	}
	vec, err := s.text.EmbedText(ctx, rows[0].IndexText(), embedding.TaskRetrievalDocument)
	if err != nil {
		return nil, apierr.Upstream("product_embedding_failed", err)
	}
	return vec, nil
}

// rank runs query → aggregate → rerank and returns every surviving candidate
// with its category, sorted but not truncated.
func (s *Service) rank(ctx context.Context, req SearchRequest) (out []CandidateScore, err error) {
	if !req.Kind.Valid() {
		return nil, apierr.BadRequest("invalid_kind", "unknown search kind %q", req.Kind)
	}
	if len(req.Vector) == 0 {
		return nil, apierr.BadRequest("vector_required", "query vector is required")
	}
	if req.MinSimilarity < 0 || req.MinSimilarity > 1 {
		return nil, apierr.BadRequest("invalid_min_similarity", "min_similarity must be within [0,1]")
	}
	if s.index == nil {
		return nil, vectorindex.ErrNotConfigured
	}
	ctx, span := observability.StartSpan(ctx, "retrieval.rank",
		attribute.String("kind", string(req.Kind)),
	)
	defer func() { observability.EndSpan(span, err) }()

	topK := s.topK(req.TopK)
	candidateK := req.CandidateK
	if candidateK <= 0 {
		candidateK = s.cfg.CandidateK
	}
	candidateK = ClampCandidateK(candidateK, topK+len(req.ExcludeProductIDs))
	perEntity := req.PerEntityRerank
	if perEntity <= 0 {
		perEntity = s.cfg.PerEntityRerank
	}
	perEntity = ClampPerEntityRerank(perEntity)

	neighbors, err := s.index.Query(ctx, req.Kind.Namespace(), req.Vector, candidateK)
	if err != nil {
		return nil, apierr.Upstream("vector_index_query_failed", err)
	}
	candidates := AggregateCandidates(neighbors, req.Kind, candidateK)
	if len(req.ExcludeProductIDs) > 0 {
		excluded := make(map[string]bool, len(req.ExcludeProductIDs))
		for _, id := range req.ExcludeProductIDs {
			excluded[strings.TrimSpace(id)] = true
		}
		kept := candidates[:0]
		for _, pid := range candidates {
			if !excluded[pid] {
				kept = append(kept, pid)
			}
		}
		candidates = kept
	}
	span.SetAttributes(attribute.Int("neighbors", len(neighbors)), attribute.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		return []CandidateScore{}, nil
	}

	dbc := dbctx.Context{Ctx: ctx}
	records, err := s.embeddings.ListByProductIDs(dbc, string(req.Kind), candidates, perEntity)
	if err != nil {
		return nil, fmt.Errorf("load candidate embeddings: %w", err)
	}
	scored := Rerank(req.Vector, candidates, records, RerankOptions{MinSimilarity: req.MinSimilarity})
	scored, err = s.attachCategories(dbc, scored)
	if err != nil {
		return nil, err
	}
	s.log.Debug("ranked candidates",
		"kind", string(req.Kind),
		"neighbors", len(neighbors),
		"candidates", len(candidates),
		"reranked", len(scored),
		"candidate_k", candidateK,
		"per_entity_rerank", perEntity,
	)
	return scored, nil
}

// attachCategories fills Category and drops products no longer in the catalog.
func (s *Service) attachCategories(dbc dbctx.Context, scored []CandidateScore) ([]CandidateScore, error) {
	if len(scored) == 0 {
		return scored, nil
	}
	ids := make([]string, len(scored))
	for i, sc := range scored {
		ids[i] = sc.ProductID
	}
	rows, err := s.products.GetByIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate products: %w", err)
	}
	cats := make(map[string]string, len(rows))
	for _, p := range rows {
		cats[p.ID] = p.CategoryKey()
	}
	out := scored[:0]
	for _, sc := range scored {
		cat, ok := cats[sc.ProductID]
		if !ok {
			continue
		}
		sc.Category = cat
		out = append(out, sc)
	}
	return out, nil
}

var (
	errTextEmbedderMissing  = errors.New("text embedder not configured")
	errImageEmbedderMissing = errors.New("image embedder not configured")
)
