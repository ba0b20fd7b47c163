package rebuild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/catalog-search-backend/internal/modules/indexing"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

// Rebuilder is satisfied by *indexing.Builder.
type Rebuilder interface {
	Rebuild(ctx context.Context, scope indexing.Scope) (indexing.RebuildResult, error)
}

type Activities struct {
	Log     *logger.Logger
	Builder Rebuilder
}

func (a *Activities) Rebuild(ctx context.Context, in Input) (Summary, error) {
	if a == nil || a.Builder == nil {
		return Summary{}, temporal.NewNonRetryableApplicationError("rebuild activity not configured", NonRetryableConfigError, nil)
	}
	activity.RecordHeartbeat(ctx, indexing.Progress{Kind: in.Scope.Kind, Event: "started"})
	// Heartbeats follow rebuild progress, so a stalled rebuild trips HeartbeatTimeout.
	rctx := indexing.WithProgress(ctx, func(p indexing.Progress) {
		activity.RecordHeartbeat(ctx, p)
	})

	start := time.Now()
	res, err := a.Builder.Rebuild(rctx, in.Scope)
	summary := summarize(res, time.Since(start))
	if err != nil {
		var ce *indexing.ConfigError
		if errors.As(err, &ce) {
			return summary, temporal.NewNonRetryableApplicationError(err.Error(), NonRetryableConfigError, err)
		}
		return summary, fmt.Errorf("rebuild %s: %w", in.Scope.Kind, err)
	}
	if a.Log != nil {
		a.Log.Info("rebuild activity finished",
			"scope", string(in.Scope.Kind),
			"upserted", summary.Upserted,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
			"stale_removed", summary.StaleRemoved,
		)
	}
	return summary, nil
}
