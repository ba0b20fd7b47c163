package indexing

import (
	"time"

	"github.com/yungbote/catalog-search-backend/internal/datapoint"
)

// Scope selects what a rebuild touches. Empty ProductIDs means the whole catalog.
type Scope struct {
	Kind       datapoint.Kind `json:"kind"`
	ProductIDs []string       `json:"product_ids,omitempty"`
}

func (s Scope) Incremental() bool { return len(s.ProductIDs) > 0 }

type ItemStatus string

const (
	StatusUpserted ItemStatus = "upserted"
	StatusFailed   ItemStatus = "failed"
	StatusSkipped  ItemStatus = "skipped"
)

const (
	ReasonEmptyText         = "empty_text"
	ReasonUnsupportedSource = "unsupported_source"
	ReasonFetchFailed       = "fetch_failed"
	ReasonQuotaExhausted    = "quota_exhausted"
	ReasonEmbedFailed       = "embed_failed"
	ReasonDuplicate         = "duplicate_datapoint"
	ReasonMirrorFailed      = "mirror_insert_failed"
	ReasonUpsertFailed      = "index_upsert_failed"
)

type ItemOutcome struct {
	DatapointID string     `json:"datapoint_id"`
	ProductID   string     `json:"product_id"`
	Status      ItemStatus `json:"status"`
	Reason      string     `json:"reason,omitempty"`
}

type BatchSummary struct {
	Index    int           `json:"index"`
	Size     int           `json:"size"`
	Upserted int           `json:"upserted"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Items    []ItemOutcome `json:"items"`
}

type RebuildResult struct {
	Scope             Scope          `json:"scope"`
	Upserted          int            `json:"upserted"`
	Failed            int            `json:"failed"`
	Skipped           int            `json:"skipped"`
	StaleRemoved      int            `json:"stale_removed"`
	StaleRemoveFailed int            `json:"stale_remove_failed"`
	Batches           []BatchSummary `json:"batches"`
}

func (r *RebuildResult) addBatch(b BatchSummary) {
	for _, it := range b.Items {
		switch it.Status {
		case StatusUpserted:
			b.Upserted++
		case StatusFailed:
			b.Failed++
		}
	}
	r.Upserted += b.Upserted
	r.Failed += b.Failed
	r.Batches = append(r.Batches, b)
}

// Outcomes flattens every batch's items.
func (r RebuildResult) Outcomes() []ItemOutcome {
	var out []ItemOutcome
	for _, b := range r.Batches {
		out = append(out, b.Items...)
	}
	return out
}
