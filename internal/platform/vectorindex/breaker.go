package vectorindex

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

type breakerIndex struct {
	inner Index
	cb    *gobreaker.CircuitBreaker[[]Neighbor]
}

// WithBreaker guards inner with a circuit breaker. Caller cancellation does
// not count against the provider.
func WithBreaker(inner Index, cfg BreakerConfig, log *logger.Logger, metrics *observability.Metrics) Index {
	if inner == nil {
		return nil
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	threshold := cfg.ConsecutiveFailures
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("vector index circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			}
			metrics.SetCircuitBreakerState(name, stateValue(to))
		},
	}
	return &breakerIndex{inner: inner, cb: gobreaker.NewCircuitBreaker[[]Neighbor](settings)}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (b *breakerIndex) Upsert(ctx context.Context, namespace string, points []Datapoint) error {
	_, err := b.cb.Execute(func() ([]Neighbor, error) {
		return nil, b.inner.Upsert(ctx, namespace, points)
	})
	return err
}

func (b *breakerIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	_, err := b.cb.Execute(func() ([]Neighbor, error) {
		return nil, b.inner.Delete(ctx, namespace, ids)
	})
	return err
}

func (b *breakerIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Neighbor, error) {
	return b.cb.Execute(func() ([]Neighbor, error) {
		return b.inner.Query(ctx, namespace, vector, k)
	})
}
