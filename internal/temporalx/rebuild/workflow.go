package rebuild

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// NonRetryableConfigError is the application error type for misconfigured scopes.
const NonRetryableConfigError = "IndexingConfigError"

func Workflow(ctx workflow.Context, in Input) (Summary, error) {
	if !in.Scope.Kind.Valid() {
		return Summary{}, temporal.NewNonRetryableApplicationError(fmt.Sprintf("invalid scope %q", in.Scope.Kind), NonRetryableConfigError, nil)
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 12 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        30 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        10 * time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{NonRetryableConfigError},
		},
	})

	log := workflow.GetLogger(ctx)
	log.Info("index rebuild started", "scope", string(in.Scope.Kind), "product_ids", len(in.Scope.ProductIDs))

	var out Summary
	if err := workflow.ExecuteActivity(ctx, ActivityRebuild, in).Get(ctx, &out); err != nil {
		return Summary{}, err
	}
	log.Info("index rebuild finished", "scope", string(in.Scope.Kind), "upserted", out.Upserted, "failed", out.Failed)
	return out, nil
}
