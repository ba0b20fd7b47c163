package indexing

import (
	"context"

	"github.com/yungbote/catalog-search-backend/internal/datapoint"
)

const (
	ProgressBatch    = "batch"
	ProgressAdmitted = "admitted"
)

// Progress is reported after every finished batch and every admitted image
// request. Counts are only filled for batch events.
type Progress struct {
	Kind     datapoint.Kind `json:"kind"`
	Event    string         `json:"event"`
	Batches  int            `json:"batches,omitempty"`
	Upserted int            `json:"upserted,omitempty"`
	Failed   int            `json:"failed,omitempty"`
}

type ProgressFunc func(Progress)

type progressKey struct{}

// WithProgress attaches fn to ctx; Rebuild calls it as work completes, possibly
// from several goroutines.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, fn)
}

// ProgressFrom returns the hook attached by WithProgress, or nil.
func ProgressFrom(ctx context.Context) ProgressFunc {
	fn, _ := ctx.Value(progressKey{}).(ProgressFunc)
	return fn
}

func report(ctx context.Context, p Progress) {
	if fn := ProgressFrom(ctx); fn != nil {
		fn(p)
	}
}

func (b *Builder) finishBatch(ctx context.Context, kind datapoint.Kind, res *RebuildResult, summary BatchSummary) {
	res.addBatch(summary)
	report(ctx, Progress{Kind: kind, Event: ProgressBatch, Batches: len(res.Batches), Upserted: res.Upserted, Failed: res.Failed})
}

// admit gates one image request and reports it, so waits for the window show
// up as progress once they end.
func (b *Builder) admit(ctx context.Context) error {
	if err := b.admission.Admit(ctx); err != nil {
		return err
	}
	report(ctx, Progress{Kind: datapoint.KindImage, Event: ProgressAdmitted})
	return nil
}
