package indexing

import (
	"context"
	"strings"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type textItem struct {
	DatapointID string
	Product     *types.Product
	Text        string
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func (b *Builder) textItems(products []*types.Product, res *RebuildResult) []textItem {
	items := make([]textItem, 0, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		id := datapoint.EncodeText(p.ID)
		text := TruncateRunes(strings.TrimSpace(p.IndexText()), b.cfg.MaxTextRunes)
		if id == "" || strings.Trim(text, ". ") == "" {
			res.Skipped++
			b.log.Debug("skipping product without indexable text", "product_id", p.ID, "reason", ReasonEmptyText)
			continue
		}
		items = append(items, textItem{DatapointID: id, Product: p, Text: text})
	}
	return items
}

func (b *Builder) rebuildText(ctx context.Context, log *logger.Logger, products []*types.Product, res *RebuildResult) error {
	items := b.textItems(products, res)
	limiter := b.newTextLimiter()
	embedder := &embedding.RetryingText{Inner: b.text, Policy: b.retry, Log: log}

	for batchIdx, start := 0, 0; start < len(items); batchIdx, start = batchIdx+1, start+b.cfg.TextBatchSize {
		end := start + b.cfg.TextBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		began := time.Now()

		texts := make([]string, len(batch))
		for i, it := range batch {
			texts[i] = it.Text
		}
		vecs, err := embedder.EmbedTexts(ctx, texts, embedding.TaskRetrievalDocument)
		if err == nil && len(vecs) != len(batch) {
			err = errVectorCount(len(batch), len(vecs))
		}
		if err != nil {
			if isCtxErr(err) {
				return err
			}
			reason := failureReason(err)
			log.Warn("text batch embedding failed; skipping batch", "batch", batchIdx, "size", len(batch), "reason", reason, "error", err)
			summary := BatchSummary{Index: batchIdx, Size: len(batch), Duration: time.Since(began)}
			for _, it := range batch {
				summary.Items = append(summary.Items, ItemOutcome{DatapointID: it.DatapointID, ProductID: it.Product.ID, Status: StatusFailed, Reason: reason})
			}
			b.finishBatch(ctx, datapoint.KindText, res, summary)
			continue
		}

		embedded := make([]embeddedItem, len(batch))
		for i, it := range batch {
			embedded[i] = embeddedItem{
				DatapointID: it.DatapointID,
				ProductID:   it.Product.ID,
				ProductName: it.Product.Name,
				Source:      it.Text,
				Vector:      vecs[i],
			}
		}
		summary := BatchSummary{Index: batchIdx, Size: len(batch)}
		summary.Items = b.persist(ctx, log, datapoint.KindText, embedded)
		summary.Duration = time.Since(began)
		b.finishBatch(ctx, datapoint.KindText, res, summary)
	}
	return nil
}
