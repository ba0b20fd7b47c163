package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/pinecone"
	"github.com/yungbote/catalog-search-backend/internal/platform/qdrant"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
	"github.com/yungbote/catalog-search-backend/internal/platform/vertex"
)

var (
	newPineconeIndex = func(ctx context.Context, log *logger.Logger, cfg pinecone.Config) (vectorindex.Index, error) {
		pc, err := pinecone.New(log, cfg, nil)
		if err != nil {
			return nil, err
		}
		return pinecone.NewIndex(ctx, log, pc, cfg)
	}
	newQdrantIndex = func(ctx context.Context, log *logger.Logger, cfg qdrant.Config) (vectorindex.Index, error) {
		return qdrant.NewIndex(ctx, log, cfg, nil)
	}
	newVertexIndex = func(c *vertex.Client) (vectorindex.Index, error) {
		return vertex.NewIndex(c)
	}
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider      VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorInvalidStorageMode   VectorProviderBootstrapErrorCode = "invalid_storage_mode"
	VectorProviderBootstrapErrorMissingQdrantURL     VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL     VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl    VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector  VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorQdrantConfigFailed   VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorMissingVertexClient  VectorProviderBootstrapErrorCode = "missing_vertex_client"
	VectorProviderBootstrapErrorConnectFailed        VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed   VectorProviderBootstrapErrorCode = "provider_init_failed"
	VectorProviderBootstrapCodeDisabledMissingAPIKey VectorProviderBootstrapErrorCode = "disabled_missing_api_key"
)

type VectorProviderBootstrapError struct {
	Code              VectorProviderBootstrapErrorCode
	Provider          string
	ObjectStorageMode string
	Cause             error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf(
		"vector provider bootstrap failed (code=%s provider=%q object_storage_mode=%q): %v",
		e.Code,
		e.Provider,
		e.ObjectStorageMode,
		e.Cause,
	)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type vectorBootstrap struct {
	Selection   VectorProviderSelection
	StorageMode string
	Vertex      *vertex.Client
	Pinecone    pinecone.Config
	// Qdrant is resolved lazily so a bad QDRANT_* env only matters when qdrant is selected.
	Qdrant func() (qdrant.Config, error)
}

// resolveVectorIndex builds the selected provider and wraps it with metrics
// and a circuit breaker. A nil index with a nil error means vector search is
// disabled; rebuilds then fail with indexing.ErrIndexNotConfigured.
func resolveVectorIndex(ctx context.Context, log *logger.Logger, b vectorBootstrap, metrics *observability.Metrics) (vectorindex.Index, error) {
	provider := string(b.Selection.Provider)
	mode := b.StorageMode
	metrics.SetVectorIndexProviderActive(provider)
	log.Info(
		"Selecting vector index provider",
		"provider", provider,
		"object_storage_mode", mode,
		"provider_mode_source", b.Selection.ModeSource,
	)

	fail := func(err error) (vectorindex.Index, error) {
		classified := classifyVectorProviderBootstrapError(provider, mode, err)
		code := vectorProviderBootstrapErrorCode(classified)
		metrics.ObserveVectorIndexBootstrap(provider, "error", string(code))
		log.Error(
			"Vector index provider bootstrap failed",
			"provider", provider,
			"object_storage_mode", mode,
			"error_code", code,
			"error", classified,
		)
		return nil, classified
	}

	var (
		idx vectorindex.Index
		err error
	)
	switch b.Selection.Provider {
	case VectorProviderDisabled:
		log.Warn("VECTOR_PROVIDER=none; vector search disabled")
		metrics.ObserveVectorIndexBootstrap(provider, "degraded", "disabled")
		return nil, nil
	case VectorProviderMemory:
		log.Warn("Using in-process vector index; contents are lost on restart")
		idx = vectorindex.NewMemory()
	case VectorProviderVertex:
		if b.Vertex == nil {
			return fail(&VectorProviderBootstrapError{
				Code:     VectorProviderBootstrapErrorMissingVertexClient,
				Provider: provider,
				Cause:    errors.New("vertex client not configured"),
			})
		}
		idx, err = newVertexIndex(b.Vertex)
	case VectorProviderPinecone:
		if strings.TrimSpace(b.Pinecone.APIKey) == "" {
			log.Warn("PINECONE_API_KEY not set; vector search disabled")
			metrics.SetVectorIndexProviderActive("disabled")
			metrics.ObserveVectorIndexBootstrap(provider, "degraded", string(VectorProviderBootstrapCodeDisabledMissingAPIKey))
			return nil, nil
		}
		idx, err = newPineconeIndex(ctx, log, b.Pinecone)
	case VectorProviderQdrant:
		if b.Qdrant == nil {
			b.Qdrant = qdrant.ResolveConfigFromEnv
		}
		qcfg, cerr := b.Qdrant()
		if cerr != nil {
			return fail(cerr)
		}
		idx, err = newQdrantIndex(ctx, log, qcfg)
	default:
		return fail(&VectorProviderBootstrapError{
			Code:              VectorProviderBootstrapErrorInvalidProvider,
			Provider:          provider,
			ObjectStorageMode: mode,
			Cause:             fmt.Errorf("unsupported vector provider %q", provider),
		})
	}
	if err != nil {
		return fail(err)
	}
	metrics.ObserveVectorIndexBootstrap(provider, "success", "none")
	idx = vectorindex.Instrument(provider, idx, metrics)
	return vectorindex.WithBreaker(idx, vectorindex.DefaultBreakerConfig("vector_index_"+provider), log, metrics), nil
}

func classifyVectorProviderBootstrapError(provider, objectStorageMode string, err error) error {
	var already *VectorProviderBootstrapError
	if errors.As(err, &already) {
		return err
	}
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{
			Code:              code,
			Provider:          provider,
			ObjectStorageMode: objectStorageMode,
			Cause:             err,
		}
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingCollection:
			return wrap(VectorProviderBootstrapErrorMissingQdrantColl)
		case qdrant.ConfigErrorInvalidVectorDim:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantVector)
		default:
			return wrap(VectorProviderBootstrapErrorQdrantConfigFailed)
		}
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return VectorProviderBootstrapErrorConnectFailed
}
