package retrieval

import (
	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

// AggregateCandidates collapses neighbors to unique product ids, nearest first.
// Input beyond candidateK is ignored and undecodable ids are dropped.
func AggregateCandidates(neighbors []vectorindex.Neighbor, kind datapoint.Kind, candidateK int) []string {
	if candidateK > 0 && len(neighbors) > candidateK {
		neighbors = neighbors[:candidateK]
	}
	ordered := append([]vectorindex.Neighbor(nil), neighbors...)
	vectorindex.SortNeighbors(ordered)

	seen := make(map[string]struct{}, len(ordered))
	out := make([]string, 0, len(ordered))
	for _, n := range ordered {
		pid, ok := datapoint.DecodeFor(kind, n.ID)
		if !ok {
			continue
		}
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		out = append(out, pid)
	}
	return out
}
