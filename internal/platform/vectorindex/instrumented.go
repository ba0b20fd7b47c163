package vectorindex

import (
	"context"
	"strings"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/observability"
)

type instrumented struct {
	provider string
	inner    Index
	metrics  *observability.Metrics
}

// Instrument records per-operation latency and status for inner. It returns
// inner unchanged when metrics are disabled.
func Instrument(provider string, inner Index, metrics *observability.Metrics) Index {
	if inner == nil || metrics == nil {
		return inner
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		provider = "unknown"
	}
	return &instrumented{provider: provider, inner: inner, metrics: metrics}
}

func (s *instrumented) Upsert(ctx context.Context, namespace string, points []Datapoint) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, namespace, points)
	s.metrics.ObserveVectorIndexOperation(s.provider, "upsert", err, time.Since(start))
	return err
}

func (s *instrumented) Delete(ctx context.Context, namespace string, ids []string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, namespace, ids)
	s.metrics.ObserveVectorIndexOperation(s.provider, "delete", err, time.Since(start))
	return err
}

func (s *instrumented) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Neighbor, error) {
	start := time.Now()
	out, err := s.inner.Query(ctx, namespace, vector, k)
	s.metrics.ObserveVectorIndexOperation(s.provider, "query", err, time.Since(start))
	return out, err
}
