// Package temporalworker hosts the Temporal worker that executes index rebuilds.
package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/temporalx"
	"github.com/yungbote/catalog-search-backend/internal/temporalx/rebuild"
)

type Runner struct {
	log     *logger.Logger
	tc      temporalsdkclient.Client
	cfg     temporalx.Config
	builder rebuild.Rebuilder
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, builder rebuild.Rebuilder) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if log == nil || builder == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg, builder: builder}, nil
}

// Start polls the task queue until ctx ends. A worker that fails to start is
// retried until TEMPORAL_WORKER_START_MAX_WAIT elapses.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	maxWait := envutil.Duration("TEMPORAL_WORKER_START_MAX_WAIT", 60*time.Second)
	backoff := envutil.Duration("TEMPORAL_WORKER_START_BACKOFF", 250*time.Millisecond)
	backoffMax := envutil.Duration("TEMPORAL_WORKER_START_BACKOFF_MAX", 5*time.Second)
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNS := errors.As(startErr, &nfe)
		if missingNS && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if maxWait <= 0 || time.Now().After(deadline) {
			if missingNS {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(temporalx.ClampBackoff(backoff, backoffMax, attempt)):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	// one rebuild per scope runs at a time, so two activity slots cover text and image
	concurrency := envutil.Int("WORKER_CONCURRENCY", 2)
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	acts := &rebuild.Activities{Log: r.log, Builder: r.builder}
	w.RegisterWorkflowWithOptions(rebuild.Workflow, workflow.RegisterOptions{Name: rebuild.WorkflowName})
	w.RegisterActivityWithOptions(acts.Rebuild, activity.RegisterOptions{Name: rebuild.ActivityRebuild})
	return w
}
