package indexing

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/domain/search"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

type embeddedItem struct {
	DatapointID string
	ProductID   string
	ProductName string
	Source      string
	Position    *int
	Vector      []float32
}

func errVectorCount(want, got int) error {
	return fmt.Errorf("embedding count mismatch: want %d got %d", want, got)
}

// persist writes the mirror rows unordered, then upserts the rows that landed.
// An upsert failure leaves those rows in the mirror only until the next rebuild.
func (b *Builder) persist(ctx context.Context, log *logger.Logger, kind datapoint.Kind, items []embeddedItem) []ItemOutcome {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*types.EmbeddingRecord, 0, len(items))
	for _, it := range items {
		rows = append(rows, &types.EmbeddingRecord{
			Scope:       string(kind),
			DatapointID: it.DatapointID,
			ProductID:   it.ProductID,
			Position:    it.Position,
			Source:      it.Source,
			ProductName: it.ProductName,
			Embedding:   search.EncodeVector(it.Vector),
			CreatedAt:   now,
		})
	}
	_, failures := b.embeddings.InsertUnordered(dbctx.Context{Ctx: ctx}, rows)
	// Rows are inserted in order, so for a repeated id the trailing occurrences are the failures.
	failed := make(map[string][]string, len(failures))
	for _, f := range failures {
		reason := ReasonMirrorFailed
		if f.Duplicate {
			reason = ReasonDuplicate
		}
		failed[f.DatapointID] = append(failed[f.DatapointID], reason)
		log.Warn("mirror insert failed", "datapoint_id", f.DatapointID, "reason", reason, "error", f.Err)
	}
	remaining := make(map[string]int, len(items))
	for _, it := range items {
		remaining[it.DatapointID]++
	}

	outcomes := make([]ItemOutcome, 0, len(items))
	points := make([]vectorindex.Datapoint, 0, len(items))
	written := make([]int, 0, len(items))
	for _, it := range items {
		left := remaining[it.DatapointID]
		remaining[it.DatapointID] = left - 1
		if reasons := failed[it.DatapointID]; left <= len(reasons) {
			outcomes = append(outcomes, ItemOutcome{DatapointID: it.DatapointID, ProductID: it.ProductID, Status: StatusFailed, Reason: reasons[len(reasons)-left]})
			continue
		}
		written = append(written, len(outcomes))
		outcomes = append(outcomes, ItemOutcome{DatapointID: it.DatapointID, ProductID: it.ProductID, Status: StatusUpserted})
		points = append(points, vectorindex.Datapoint{ID: it.DatapointID, Values: it.Vector})
	}
	if len(points) == 0 {
		return outcomes
	}
	if err := b.index.Upsert(ctx, kind.Namespace(), points); err != nil {
		log.Error("vector index upsert failed after mirror write", "count", len(points), "error", err)
		for _, i := range written {
			outcomes[i].Status = StatusFailed
			outcomes[i].Reason = ReasonUpsertFailed
		}
	}
	return outcomes
}
