package vertex

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

const upsertChunkSize = 500

// Index stores text and image datapoints in two Vector Search indexes that
// share one deployed endpoint.
type Index struct {
	c *Client
}

var _ vectorindex.Index = (*Index)(nil)

func NewIndex(c *Client) (*Index, error) {
	if c == nil {
		return nil, fmt.Errorf("vertex client required")
	}
	if err := c.cfg.ValidateIndex(); err != nil {
		return nil, err
	}
	return &Index{c: c}, nil
}

type target struct {
	index    string
	deployed string
}

func (x *Index) target(namespace string) (target, error) {
	var t target
	switch namespace {
	case "text":
		t = target{index: x.c.cfg.TextIndex, deployed: x.c.cfg.TextDeployedIndexID}
	case "images":
		t = target{index: x.c.cfg.ImageIndex, deployed: x.c.cfg.ImageDeployedIndexID}
	default:
		return t, fmt.Errorf("vertex index: unknown namespace %q", namespace)
	}
	if strings.TrimSpace(t.index) == "" {
		return t, fmt.Errorf("vertex index: no index configured for %q: %w", namespace, vectorindex.ErrNotConfigured)
	}
	return t, nil
}

type indexDatapoint struct {
	DatapointID   string    `json:"datapointId"`
	FeatureVector []float32 `json:"featureVector"`
}

func (x *Index) Upsert(ctx context.Context, namespace string, points []vectorindex.Datapoint) error {
	t, err := x.target(namespace)
	if err != nil {
		return err
	}
	url := x.c.cfg.apiBase() + "/v1/" + t.index + ":upsertDatapoints"
	for _, chunk := range vectorindex.Chunk(points, upsertChunkSize) {
		req := struct {
			Datapoints []indexDatapoint `json:"datapoints"`
		}{Datapoints: make([]indexDatapoint, 0, len(chunk))}
		for _, p := range chunk {
			req.Datapoints = append(req.Datapoints, indexDatapoint{DatapointID: p.ID, FeatureVector: p.Values})
		}
		if _, err := doJSON[struct{}](x.c, ctx, url, req); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	t, err := x.target(namespace)
	if err != nil {
		return err
	}
	url := x.c.cfg.apiBase() + "/v1/" + t.index + ":removeDatapoints"
	req := struct {
		DatapointIDs []string `json:"datapointIds"`
	}{DatapointIDs: ids}
	_, err = doJSON[struct{}](x.c, ctx, url, req)
	return err
}

type findNeighborsResponse struct {
	NearestNeighbors []struct {
		Neighbors []struct {
			Datapoint struct {
				DatapointID string `json:"datapointId"`
			} `json:"datapoint"`
			Distance float64 `json:"distance"`
		} `json:"neighbors"`
	} `json:"nearestNeighbors"`
}

func (x *Index) Query(ctx context.Context, namespace string, vector []float32, k int) ([]vectorindex.Neighbor, error) {
	if k <= 0 {
		return []vectorindex.Neighbor{}, nil
	}
	t, err := x.target(namespace)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.deployed) == "" {
		return nil, fmt.Errorf("vertex index: no deployed index id for %q: %w", namespace, vectorindex.ErrNotConfigured)
	}
	type query struct {
		Datapoint struct {
			FeatureVector []float32 `json:"featureVector"`
		} `json:"datapoint"`
		NeighborCount int `json:"neighborCount"`
	}
	q := query{NeighborCount: k}
	q.Datapoint.FeatureVector = vector
	req := struct {
		DeployedIndexID string  `json:"deployedIndexId"`
		Queries         []query `json:"queries"`
	}{DeployedIndexID: t.deployed, Queries: []query{q}}

	url := x.c.cfg.neighborsBase() + "/v1/" + x.c.cfg.IndexEndpoint + ":findNeighbors"
	resp, err := doJSON[findNeighborsResponse](x.c, ctx, url, req)
	if err != nil {
		return nil, err
	}
	out := []vectorindex.Neighbor{}
	if len(resp.NearestNeighbors) == 0 {
		return out, nil
	}
	for _, n := range resp.NearestNeighbors[0].Neighbors {
		id := strings.TrimSpace(n.Datapoint.DatapointID)
		if id == "" {
			continue
		}
		d := n.Distance
		if x.c.cfg.DistanceIsSimilarity {
			d = vectorindex.DistanceFromSimilarity(d)
		}
		out = append(out, vectorindex.Neighbor{ID: id, Distance: d})
	}
	vectorindex.SortNeighbors(out)
	return out, nil
}
