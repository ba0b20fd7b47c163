package embedding

import (
	"context"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/platform/httpx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Jitter     time.Duration
	// Sleep is replaceable so tests do not wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		Base:       600 * time.Millisecond,
		Jitter:     250 * time.Millisecond,
		Sleep:      httpx.Sleep,
	}
}

// Do runs fn, retrying only quota-exhausted failures with exponential backoff
// and jitter. Any other error, or the last quota error, is returned as is.
func Do[T any](ctx context.Context, log *logger.Logger, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = httpx.Sleep
	}
	var zero T
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !IsQuotaExhausted(err) || attempt >= p.MaxRetries {
			return zero, err
		}
		d := httpx.ExpBackoff(p.Base, attempt, p.Jitter)
		if log != nil {
			log.Warn("provider quota exhausted; backing off", "op", op, "attempt", attempt+1, "sleep", d.String(), "error", err)
		}
		if err := sleep(ctx, d); err != nil {
			return zero, err
		}
	}
}

// RetryingText wraps a TextEmbedder with the quota retry policy.
type RetryingText struct {
	Inner  TextEmbedder
	Policy RetryPolicy
	Log    *logger.Logger
}

func (r *RetryingText) EmbedText(ctx context.Context, text string, task TaskType) ([]float32, error) {
	return Do(ctx, r.Log, r.Policy, "embed_text", func(ctx context.Context) ([]float32, error) {
		return r.Inner.EmbedText(ctx, text, task)
	})
}

func (r *RetryingText) EmbedTexts(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	return Do(ctx, r.Log, r.Policy, "embed_texts", func(ctx context.Context) ([][]float32, error) {
		return r.Inner.EmbedTexts(ctx, texts, task)
	})
}

// RetryingImage wraps an ImageEmbedder with the quota retry policy. Before each
// attempt, Admit (when set) is called so every provider request is admitted.
type RetryingImage struct {
	Inner  ImageEmbedder
	Policy RetryPolicy
	Log    *logger.Logger
	Admit  func(ctx context.Context) error
}

func (r *RetryingImage) EmbedImage(ctx context.Context, in ImageInput) ([]float32, error) {
	return Do(ctx, r.Log, r.Policy, "embed_image", func(ctx context.Context) ([]float32, error) {
		if r.Admit != nil {
			if err := r.Admit(ctx); err != nil {
				return nil, err
			}
		}
		return r.Inner.EmbedImage(ctx, in)
	})
}
