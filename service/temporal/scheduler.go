package temporal

import (
	"context"
	"time"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
)

// Scheduler manages the Temporal schedules that periodically trigger the
// bridge's four periodic tasks (§2, §4.C-4.F). There is at most one
// schedule per eventlog.TaskKind; bridgestate.Engine.TryAcquireTask is what
// actually prevents two overlapping firings from running concurrently, so
// the scheduler itself only owns the firing cadence.
type Scheduler interface {
	// EnsureTaskSchedule creates or updates the schedule for task at the
	// given interval.
	EnsureTaskSchedule(ctx context.Context, task eventlog.TaskKind, interval time.Duration) error

	// DeleteTaskSchedule removes the schedule for task, if any.
	DeleteTaskSchedule(ctx context.Context, task eventlog.TaskKind) error
}

// taskScheduleID returns the Temporal schedule ID for a periodic task.
func taskScheduleID(task eventlog.TaskKind) string {
	return "gsolbridge-task-" + string(task)
}

// taskWorkflowName returns the registered workflow name that implements a
// periodic task, matching the names RegisterWorkflow assigns in worker.go.
func taskWorkflowName(task eventlog.TaskKind) string {
	switch task {
	case eventlog.TaskGetLatestSignature:
		return "GetLatestSignatureWorkflow"
	case eventlog.TaskScrapSignatureRange:
		return "ScrapSignatureRangeWorkflow"
	case eventlog.TaskScrapSignatures:
		return "ScrapSignaturesWorkflow"
	case eventlog.TaskMintGSol:
		return "MintGSolWorkflow"
	default:
		return ""
	}
}
