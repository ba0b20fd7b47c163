// Package rebuild runs index rebuilds as Temporal workflows so scheduled full
// rebuilds and operator-triggered ones share one durable path.
package rebuild

import (
	"time"

	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	"github.com/yungbote/catalog-search-backend/internal/modules/indexing"
)

const (
	WorkflowName    = "catalog_index_rebuild"
	ActivityRebuild = "catalog_index_rebuild_scope"
)

type Input struct {
	Scope indexing.Scope `json:"scope"`
}

// Summary is the workflow result; per-item outcomes stay in the worker log.
type Summary struct {
	Scope             indexing.Scope `json:"scope"`
	Upserted          int            `json:"upserted"`
	Failed            int            `json:"failed"`
	Skipped           int            `json:"skipped"`
	StaleRemoved      int            `json:"stale_removed"`
	StaleRemoveFailed int            `json:"stale_remove_failed"`
	Batches           int            `json:"batches"`
	Duration          time.Duration  `json:"duration"`
}

func summarize(res indexing.RebuildResult, d time.Duration) Summary {
	return Summary{
		Scope:             res.Scope,
		Upserted:          res.Upserted,
		Failed:            res.Failed,
		Skipped:           res.Skipped,
		StaleRemoved:      res.StaleRemoved,
		StaleRemoveFailed: res.StaleRemoveFailed,
		Batches:           len(res.Batches),
		Duration:          d,
	}
}

// WorkflowID is shared by every rebuild of a scope, so Temporal keeps at most
// one in flight per scope.
func WorkflowID(kind datapoint.Kind) string {
	return "catalog-rebuild-" + string(kind)
}

func ScheduleID(kind datapoint.Kind) string {
	return "catalog-rebuild-schedule-" + string(kind)
}
