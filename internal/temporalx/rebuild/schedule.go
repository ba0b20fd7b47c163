package rebuild

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	"github.com/yungbote/catalog-search-backend/internal/modules/indexing"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/temporalx"
)

func cronDisabled(expr string) bool {
	switch strings.ToLower(strings.TrimSpace(expr)) {
	case "", "off", "none", "disabled":
		return true
	}
	return false
}

// EnsureSchedules creates or updates the periodic full rebuild per scope.
// Overlapping runs are skipped so a slow image rebuild never stacks up.
func EnsureSchedules(ctx context.Context, c temporalsdkclient.Client, cfg temporalx.Config, log *logger.Logger) error {
	if c == nil {
		return nil
	}
	crons := []struct {
		kind datapoint.Kind
		expr string
	}{
		{datapoint.KindText, cfg.TextRebuildCron},
		{datapoint.KindImage, cfg.ImageRebuildCron},
	}
	for _, sc := range crons {
		id := ScheduleID(sc.kind)
		if cronDisabled(sc.expr) {
			log.Info("rebuild schedule disabled", "schedule_id", id)
			continue
		}
		spec := temporalsdkclient.ScheduleSpec{
			CronExpressions: []string{sc.expr},
			TimeZoneName:    cfg.ScheduleTimezone,
		}
		action := &temporalsdkclient.ScheduleWorkflowAction{
			ID:        WorkflowID(sc.kind),
			Workflow:  WorkflowName,
			Args:      []interface{}{Input{Scope: indexing.Scope{Kind: sc.kind}}},
			TaskQueue: cfg.TaskQueue,
		}
		handle := c.ScheduleClient().GetHandle(ctx, id)
		_, err := handle.Describe(ctx)
		if err == nil {
			err = handle.Update(ctx, temporalsdkclient.ScheduleUpdateOptions{
				DoUpdate: func(in temporalsdkclient.ScheduleUpdateInput) (*temporalsdkclient.ScheduleUpdate, error) {
					in.Description.Schedule.Spec = &spec
					in.Description.Schedule.Action = action
					return &temporalsdkclient.ScheduleUpdate{Schedule: &in.Description.Schedule}, nil
				},
			})
			if err != nil {
				return fmt.Errorf("update schedule %s: %w", id, err)
			}
			log.Info("rebuild schedule updated", "schedule_id", id, "cron", sc.expr)
			continue
		}
		var nf *serviceerror.NotFound
		if !errors.As(err, &nf) {
			return fmt.Errorf("describe schedule %s: %w", id, err)
		}
		_, err = c.ScheduleClient().Create(ctx, temporalsdkclient.ScheduleOptions{
			ID:      id,
			Spec:    spec,
			Action:  action,
			Overlap: enums.SCHEDULE_OVERLAP_POLICY_SKIP,
		})
		if err != nil {
			return fmt.Errorf("create schedule %s: %w", id, err)
		}
		log.Info("rebuild schedule created", "schedule_id", id, "cron", sc.expr)
	}
	return nil
}

// Start launches a rebuild workflow for scope. A rebuild already running for
// the same scope makes this fail with WorkflowExecutionAlreadyStarted.
func Start(ctx context.Context, c temporalsdkclient.Client, taskQueue string, scope indexing.Scope) (temporalsdkclient.WorkflowRun, error) {
	if c == nil {
		return nil, fmt.Errorf("temporal client not configured")
	}
	return c.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    WorkflowID(scope.Kind),
		TaskQueue:             taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,

		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, WorkflowName, Input{Scope: scope})
}
