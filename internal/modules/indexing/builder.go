// Package indexing rebuilds the text and image vector indexes from the catalog
// while keeping the local embedding mirror in step with the vector index.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	"github.com/yungbote/catalog-search-backend/internal/modules/indexing/admission"
	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
	"github.com/yungbote/catalog-search-backend/internal/platform/imagefetch"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

// ImageFetcher is satisfied by *imagefetch.Fetcher.
type ImageFetcher interface {
	Fetch(ctx context.Context, uri string) (*imagefetch.Image, error)
}

type BuilderDeps struct {
	Log        *logger.Logger
	Products   repos.ProductRepo
	Embeddings repos.EmbeddingRecordRepo
	Index      vectorindex.Index
	Text       embedding.TextEmbedder
	Image      embedding.ImageEmbedder
	Fetcher    ImageFetcher
	// Admission gates image embedding calls. A controller sized from
	// Config.ImagesPerMinute is created when nil.
	Admission *admission.Controller
	Retry     embedding.RetryPolicy
	Metrics   *observability.Metrics
}

type Builder struct {
	log        *logger.Logger
	products   repos.ProductRepo
	embeddings repos.EmbeddingRecordRepo
	index      vectorindex.Index
	text       embedding.TextEmbedder
	image      embedding.ImageEmbedder
	fetcher    ImageFetcher
	admission  *admission.Controller
	retry      embedding.RetryPolicy
	metrics    *observability.Metrics
	cfg        Config
}

func NewBuilder(deps BuilderDeps, cfg Config) (*Builder, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("indexing: logger required")
	}
	if deps.Products == nil || deps.Embeddings == nil {
		return nil, &ConfigError{Code: ConfigErrorMissingRepo}
	}
	cfg = cfg.normalized()
	retry := deps.Retry
	if retry.Base == 0 && retry.MaxRetries == 0 {
		retry = embedding.DefaultRetryPolicy()
	}
	adm := deps.Admission
	if adm == nil {
		adm = admission.New(cfg.ImagesPerMinute, admission.WithWaitObserver(deps.Metrics.ObserveAdmissionWait))
	}
	return &Builder{
		log:        deps.Log.With("service", "IndexBuilder"),
		products:   deps.Products,
		embeddings: deps.Embeddings,
		index:      deps.Index,
		text:       deps.Text,
		image:      deps.Image,
		fetcher:    deps.Fetcher,
		admission:  adm,
		retry:      retry,
		metrics:    deps.Metrics,
		cfg:        cfg,
	}, nil
}

func (b *Builder) validate(scope Scope) error {
	if !scope.Kind.Valid() {
		return &ConfigError{Code: ConfigErrorInvalidScope, Detail: string(scope.Kind)}
	}
	if b.index == nil {
		return &ConfigError{Code: ConfigErrorMissingIndex}
	}
	switch scope.Kind {
	case datapoint.KindText:
		if b.text == nil {
			return &ConfigError{Code: ConfigErrorMissingEmbedder, Detail: "text"}
		}
	case datapoint.KindImage:
		if b.image == nil {
			return &ConfigError{Code: ConfigErrorMissingEmbedder, Detail: "image"}
		}
		if b.fetcher == nil {
			return &ConfigError{Code: ConfigErrorMissingEmbedder, Detail: "image fetcher"}
		}
	}
	return nil
}

// Rebuild re-embeds the scope. Partial failures are reported in the result;
// an error means the scope is misconfigured, the catalog or mirror could not
// be read, or ctx ended (the result then holds the work done so far).
func (b *Builder) Rebuild(ctx context.Context, scope Scope) (res RebuildResult, err error) {
	res = RebuildResult{Scope: scope}
	if err := b.validate(scope); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "indexing.Rebuild",
		attribute.String("scope", string(scope.Kind)),
		attribute.Int("product_ids", len(scope.ProductIDs)),
	)
	defer func() {
		observability.EndSpan(span, err)
		b.metrics.ObserveRebuild(string(scope.Kind), err, time.Since(start))
		b.metrics.AddRebuildItems(string(scope.Kind), string(StatusUpserted), res.Upserted)
		b.metrics.AddRebuildItems(string(scope.Kind), string(StatusFailed), res.Failed)
		b.metrics.AddRebuildItems(string(scope.Kind), string(StatusSkipped), res.Skipped)
	}()

	log := b.log.With("scope", string(scope.Kind), "incremental", scope.Incremental())
	dbc := dbctx.Context{Ctx: ctx}
	mirrorScope := string(scope.Kind)

	staleIDs, err := b.embeddings.ListDatapointIDs(dbc, mirrorScope, scope.ProductIDs)
	if err != nil {
		return res, fmt.Errorf("indexing: snapshot mirror ids: %w", err)
	}
	if _, err := b.embeddings.DeleteByScope(dbc, mirrorScope, scope.ProductIDs); err != nil {
		return res, fmt.Errorf("indexing: clear mirror: %w", err)
	}
	b.removeStale(ctx, log, scope, staleIDs, &res)

	products, err := b.products.ListForIndexing(dbc, b.cfg.Statuses, scope.ProductIDs)
	if err != nil {
		return res, fmt.Errorf("indexing: read catalog: %w", err)
	}

	switch scope.Kind {
	case datapoint.KindText:
		err = b.rebuildText(ctx, log, products, &res)
	case datapoint.KindImage:
		err = b.rebuildImages(ctx, log, products, &res)
	}
	log.Info("rebuild finished",
		"upserted", res.Upserted,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"stale_removed", res.StaleRemoved,
		"stale_remove_failed", res.StaleRemoveFailed,
		"batches", len(res.Batches),
		"duration", time.Since(start).String(),
	)
	return res, err
}

func (b *Builder) removeStale(ctx context.Context, log *logger.Logger, scope Scope, ids []string, res *RebuildResult) {
	if len(ids) == 0 {
		return
	}
	if err := b.index.Delete(ctx, scope.Kind.Namespace(), ids); err != nil {
		res.StaleRemoveFailed = len(ids)
		log.Warn("stale datapoint removal failed; continuing", "count", len(ids), "error", err)
		return
	}
	res.StaleRemoved = len(ids)
}

func (b *Builder) newTextLimiter() *rate.Limiter {
	if b.cfg.TextBatchesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(b.cfg.TextBatchesPerSecond), 1)
}

func failureReason(err error) string {
	if embedding.IsQuotaExhausted(err) {
		return ReasonQuotaExhausted
	}
	return ReasonEmbedFailed
}

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
