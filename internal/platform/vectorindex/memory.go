package vectorindex

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
)

// Memory is a brute-force cosine index for local development and tests.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]map[string][]float32
}

func NewMemory() *Memory {
	return &Memory{namespaces: map[string]map[string][]float32{}}
}

func (m *Memory) Upsert(ctx context.Context, namespace string, points []Datapoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return fmt.Errorf("memory upsert: namespace required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.namespaces[namespace]
	if ns == nil {
		ns = map[string][]float32{}
		m.namespaces[namespace] = ns
	}
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("memory upsert: datapoint id required")
		}
		vec := make([]float32, len(p.Values))
		copy(vec, p.Values)
		ns[id] = vec
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, namespace string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.namespaces[strings.TrimSpace(namespace)]
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}
	m.mu.RLock()
	ns := m.namespaces[strings.TrimSpace(namespace)]
	out := make([]Neighbor, 0, len(ns))
	for id, vec := range ns {
		out = append(out, Neighbor{ID: id, Distance: 1 - cosine(vector, vec)})
	}
	m.mu.RUnlock()

	SortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Len reports how many datapoints a namespace holds.
func (m *Memory) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

// Has reports whether id is present in namespace.
func (m *Memory) Has(namespace, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.namespaces[namespace][id]
	return ok
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
