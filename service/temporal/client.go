package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
)

// Client is a production implementation of Scheduler that also exposes
// synchronous workflow execution for the withdrawal request path.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// EnsureTaskSchedule creates or updates the schedule for a periodic task.
func (c *Client) EnsureTaskSchedule(ctx context.Context, task eventlog.TaskKind, interval time.Duration) error {
	id := taskScheduleID(task)
	workflowName := taskWorkflowName(task)
	if workflowName == "" {
		return fmt.Errorf("unknown task kind %q", task)
	}

	c.logger.Debug("ensuring task schedule",
		"task", task,
		"schedule_id", id,
		"interval", interval,
	)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	desc, err := handle.Describe(ctx)
	if err != nil {
		return c.createTaskSchedule(ctx, task, id, workflowName, interval)
	}

	c.logger.Debug("schedule exists, updating interval",
		"schedule_id", id,
		"old_interval", desc.Schedule.Spec.Intervals[0].Every,
		"new_interval", interval,
	)

	err = handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update task schedule", "schedule_id", id, "error", err)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("task schedule updated", "task", task, "schedule_id", id, "interval", interval)
	return nil
}

func (c *Client) createTaskSchedule(ctx context.Context, task eventlog.TaskKind, id, workflowName string, interval time.Duration) error {
	scheduleSpec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{
			{Every: interval},
		},
	}

	workflowAction := client.ScheduleWorkflowAction{
		ID:        fmt.Sprintf("%s-run", id),
		Workflow:  workflowName,
		TaskQueue: c.taskQueue,
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:     id,
		Spec:   scheduleSpec,
		Action: &workflowAction,
		Memo: map[string]interface{}{
			"task":       string(task),
			"created_by": "gsolbridge",
		},
	})
	if err != nil {
		c.logger.Error("failed to create task schedule", "task", task, "schedule_id", id, "error", err)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("task schedule created", "task", task, "schedule_id", id, "interval", interval)
	return nil
}

// DeleteTaskSchedule deletes the schedule for a periodic task.
func (c *Client) DeleteTaskSchedule(ctx context.Context, task eventlog.TaskKind) error {
	id := taskScheduleID(task)
	c.logger.Debug("deleting task schedule", "task", task, "schedule_id", id)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete task schedule", "task", task, "schedule_id", id, "error", err)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("task schedule deleted", "task", task, "schedule_id", id)
	return nil
}

// ExecuteWithdraw synchronously runs WithdrawWorkflow and waits for its
// result -- the Temporal-backed counterpart to an HTTP handler calling
// withdraw.Engine.Withdraw directly, used when the withdrawal request path
// is routed through a durable workflow instead of in-process.
func (c *Client) ExecuteWithdraw(ctx context.Context, input WithdrawInput) (*WithdrawResult, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("withdraw-%s-%d", input.Principal, time.Now().UnixNano()),
		TaskQueue: c.taskQueue,
	}, WithdrawWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start withdraw workflow: %w", err)
	}

	var result *WithdrawResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteGetCoupon synchronously runs GetCouponWorkflow and waits for its
// result.
func (c *Client) ExecuteGetCoupon(ctx context.Context, input GetCouponInput) (*GetCouponResult, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("get-coupon-%s-%d", input.Principal, input.BurnID),
		TaskQueue: c.taskQueue,
	}, GetCouponWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start get-coupon workflow: %w", err)
	}

	var result *GetCouponResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
