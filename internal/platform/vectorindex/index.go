// Package vectorindex defines the approximate-nearest-neighbor contract the
// indexing and retrieval modules share, plus provider-neutral decorators.
package vectorindex

import (
	"context"
	"errors"
	"sort"
)

var ErrNotConfigured = errors.New("vector index not configured")

type Datapoint struct {
	ID     string
	Values []float32
}

// Neighbor is one match. Distance is smaller-is-closer regardless of the
// backing provider's native score.
type Neighbor struct {
	ID       string
	Distance float64
}

type Index interface {
	Upsert(ctx context.Context, namespace string, points []Datapoint) error
	Delete(ctx context.Context, namespace string, ids []string) error
	// Query returns at most k neighbors ordered by ascending distance.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Neighbor, error)
}

// SortNeighbors orders by (distance asc, id asc).
func SortNeighbors(ns []Neighbor) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].ID < ns[j].ID
	})
}

// DistanceFromSimilarity maps a cosine-style similarity score onto a distance.
func DistanceFromSimilarity(score float64) float64 {
	return 1 - score
}

// Chunk splits points into slices of at most size elements.
func Chunk(points []Datapoint, size int) [][]Datapoint {
	if size <= 0 || len(points) <= size {
		if len(points) == 0 {
			return nil
		}
		return [][]Datapoint{points}
	}
	out := make([][]Datapoint, 0, (len(points)+size-1)/size)
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		out = append(out, points[start:end])
	}
	return out
}
