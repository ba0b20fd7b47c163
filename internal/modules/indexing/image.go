package indexing

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type imageItem struct {
	DatapointID string
	Product     *types.Product
	URL         string
	Position    *int
}

// SupportedImageSource reports whether the fetcher can load uri.
func SupportedImageSource(uri string) bool {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "gs", "s3":
		return true
	default:
		return false
	}
}

// imageItems lists the fetchable images. Images sharing a datapoint id (for
// example several without a position) keep only the first in list order, so
// the rest never reach fetch, admission or the embedder.
func (b *Builder) imageItems(products []*types.Product, res *RebuildResult) []imageItem {
	var items []imageItem
	seen := make(map[string]bool)
	for _, p := range products {
		if p == nil {
			continue
		}
		for i := range p.Images {
			img := &p.Images[i]
			u := strings.TrimSpace(img.URL)
			if u == "" || !SupportedImageSource(u) {
				res.Skipped++
				b.log.Debug("skipping image source", "product_id", p.ID, "url", u, "reason", ReasonUnsupportedSource)
				continue
			}
			id := datapoint.EncodeImage(p.ID, img.Position)
			if seen[id] {
				res.Skipped++
				b.log.Warn("skipping image with duplicate datapoint id", "product_id", p.ID, "datapoint_id", id, "url", u, "reason", ReasonDuplicate)
				continue
			}
			seen[id] = true
			items = append(items, imageItem{
				DatapointID: id,
				Product:     p,
				URL:         u,
				Position:    img.Position,
			})
		}
	}
	return items
}

func (b *Builder) rebuildImages(ctx context.Context, log *logger.Logger, products []*types.Product, res *RebuildResult) error {
	items := b.imageItems(products, res)
	embedder := &embedding.RetryingImage{Inner: b.image, Policy: b.retry, Log: log, Admit: b.admit}

	for batchIdx, start := 0, 0; start < len(items); batchIdx, start = batchIdx+1, start+b.cfg.ImageBatchSize {
		end := start + b.cfg.ImageBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		began := time.Now()

		outcomes := make([]ItemOutcome, len(batch))
		embedded := make([]*embeddedItem, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.cfg.ImageConcurrency)
		for i := range batch {
			i, it := i, batch[i]
			g.Go(func() error {
				out, oc := b.embedImage(gctx, log, embedder, it)
				embedded[i], outcomes[i] = out, oc
				// Only cancellation aborts the batch; item errors are outcomes.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		summary := BatchSummary{Index: batchIdx, Size: len(batch)}
		ok := make([]embeddedItem, 0, len(batch))
		for i := range batch {
			if embedded[i] != nil {
				ok = append(ok, *embedded[i])
				continue
			}
			summary.Items = append(summary.Items, outcomes[i])
		}
		summary.Items = append(summary.Items, b.persist(ctx, log, datapoint.KindImage, ok)...)
		summary.Duration = time.Since(began)
		b.finishBatch(ctx, datapoint.KindImage, res, summary)
	}
	return nil
}

func (b *Builder) embedImage(ctx context.Context, log *logger.Logger, embedder embedding.ImageEmbedder, it imageItem) (*embeddedItem, ItemOutcome) {
	fail := func(reason string) (*embeddedItem, ItemOutcome) {
		return nil, ItemOutcome{DatapointID: it.DatapointID, ProductID: it.Product.ID, Status: StatusFailed, Reason: reason}
	}
	img, err := b.fetcher.Fetch(ctx, it.URL)
	if err != nil {
		log.Warn("image fetch failed", "datapoint_id", it.DatapointID, "url", it.URL, "error", err)
		return fail(ReasonFetchFailed)
	}
	in := embedding.ImageInput{Bytes: img.Bytes}
	if b.cfg.ImageContextText {
		in.ContextText = it.Product.Name
	}
	vec, err := embedder.EmbedImage(ctx, in)
	if err != nil {
		reason := failureReason(err)
		log.Warn("image embedding failed", "datapoint_id", it.DatapointID, "reason", reason, "error", err)
		return fail(reason)
	}
	return &embeddedItem{
		DatapointID: it.DatapointID,
		ProductID:   it.Product.ID,
		ProductName: it.Product.Name,
		Source:      it.URL,
		Position:    it.Position,
		Vector:      vec,
	}, ItemOutcome{}
}
