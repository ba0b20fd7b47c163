package pinecone

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

const upsertChunkSize = 100

// Index adapts a Pinecone index to vectorindex.Index. Pinecone returns
// similarity scores, which are mapped to distance = 1 - score.
type Index struct {
	log       *logger.Logger
	pc        Client
	indexHost string
	nsPrefix  string
}

var _ vectorindex.Index = (*Index)(nil)

func NewIndex(ctx context.Context, log *logger.Logger, pc Client, cfg Config) (*Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}
	indexName := strings.TrimSpace(cfg.IndexName)
	host := strings.TrimSpace(cfg.IndexHost)
	if indexName == "" && host == "" {
		return nil, fmt.Errorf("missing PINECONE_INDEX_NAME")
	}
	nsPrefix := strings.TrimSpace(cfg.NamespacePrefix)
	if nsPrefix == "" {
		nsPrefix = "catalog"
	}

	// Resolving the host via describe_index costs a control-plane call on startup.
	if host == "" {
		desc, err := pc.DescribeIndex(ctx, indexName)
		if err != nil {
			return nil, fmt.Errorf("pinecone describe_index failed: %w", err)
		}
		host = strings.TrimSpace(desc.Host)
		log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index",
			"index_name", indexName,
			"index_host", host,
		)
	}

	return &Index{
		log:       log.With("service", "PineconeIndex"),
		pc:        pc,
		indexHost: host,
		nsPrefix:  nsPrefix,
	}, nil
}

func (s *Index) Upsert(ctx context.Context, namespace string, points []vectorindex.Datapoint) error {
	ns := s.qualifyNamespace(namespace)
	for _, chunk := range vectorindex.Chunk(points, upsertChunkSize) {
		vectors := make([]Vector, 0, len(chunk))
		for _, p := range chunk {
			vectors = append(vectors, Vector{ID: p.ID, Values: p.Values})
		}
		if _, err := s.pc.UpsertVectors(ctx, s.indexHost, UpsertRequest{Namespace: ns, Vectors: vectors}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ns := s.qualifyNamespace(namespace)
	for start := 0; start < len(ids); start += 1000 {
		end := start + 1000
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.pc.DeleteVectors(ctx, s.indexHost, DeleteRequest{Namespace: ns, IDs: ids[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) Query(ctx context.Context, namespace string, vector []float32, k int) ([]vectorindex.Neighbor, error) {
	if k <= 0 {
		return []vectorindex.Neighbor{}, nil
	}
	resp, err := s.pc.Query(ctx, s.indexHost, QueryRequest{
		Namespace: s.qualifyNamespace(namespace),
		Vector:    vector,
		TopK:      k,
	})
	if err != nil {
		return nil, err
	}
	out := make([]vectorindex.Neighbor, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		out = append(out, vectorindex.Neighbor{ID: m.ID, Distance: vectorindex.DistanceFromSimilarity(m.Score)})
	}
	vectorindex.SortNeighbors(out)
	return out, nil
}

func (s *Index) qualifyNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return s.nsPrefix
	}
	return s.nsPrefix + ":" + ns
}
