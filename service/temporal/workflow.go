package temporal

import (
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"time"
)

var a *Activities // for type-safe activity invocation

// periodicActivityOptions bounds each periodic task to a single attempt per
// schedule firing: the activity's own bridgestate.Engine.TryAcquireTask gate
// already makes re-entry a no-op, and the schedule itself is the retry loop
// -- a failed run is picked up again at the next firing rather than via
// Temporal's automatic backoff.
var periodicActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 5 * time.Minute,
	RetryPolicy: &temporalsdk.RetryPolicy{
		MaximumAttempts: 1,
	},
}

// GetLatestSignatureWorkflow is the get-latest-signature periodic task
// (§4.C), run by a Temporal schedule at a short, fixed interval.
func GetLatestSignatureWorkflow(ctx workflow.Context) (*TaskResult, error) {
	ctx = workflow.WithActivityOptions(ctx, periodicActivityOptions)
	var result *TaskResult
	err := workflow.ExecuteActivity(ctx, a.DiscoverSignatures).Get(ctx, &result)
	return result, err
}

// ScrapSignatureRangeWorkflow is the scrap-signature-range periodic task
// (§4.D): it pages every pending range towards resolution or subdivision.
func ScrapSignatureRangeWorkflow(ctx workflow.Context) (*TaskResult, error) {
	ctx = workflow.WithActivityOptions(ctx, periodicActivityOptions)
	var result *TaskResult
	err := workflow.ExecuteActivity(ctx, a.ResolveRanges).Get(ctx, &result)
	return result, err
}

// ScrapSignaturesWorkflow is the scrap-signatures periodic task (§4.E): it
// fetches and classifies every pending signature.
func ScrapSignaturesWorkflow(ctx workflow.Context) (*TaskResult, error) {
	ctx = workflow.WithActivityOptions(ctx, periodicActivityOptions)
	var result *TaskResult
	err := workflow.ExecuteActivity(ctx, a.ClassifySignatures).Get(ctx, &result)
	return result, err
}

// MintGSolWorkflow is the mint-gsol periodic task (§4.F): it mints every
// accepted deposit it can fit in one batch.
func MintGSolWorkflow(ctx workflow.Context) (*TaskResult, error) {
	ctx = workflow.WithActivityOptions(ctx, periodicActivityOptions)
	var result *TaskResult
	err := workflow.ExecuteActivity(ctx, a.MintAccepted).Get(ctx, &result)
	return result, err
}

// WithdrawWorkflow runs the burn-then-sign sequence for a withdrawal
// request (§4.G). Its activity must not be retried automatically:
// ledger.Client.Burn is not memo-deduplicated the way Transfer is, so a
// Temporal-level retry after a successful burn (but before the activity's
// result is recorded) would burn twice. Recovery from that narrow window
// instead goes through GetCouponWorkflow, which re-derives the coupon from
// the durably-recorded burn rather than re-executing it.
func WithdrawWorkflow(ctx workflow.Context, input WithdrawInput) (*WithdrawResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporalsdk.RetryPolicy{MaximumAttempts: 1},
	})
	var result *WithdrawResult
	err := workflow.ExecuteActivity(ctx, a.Withdraw, input).Get(ctx, &result)
	return result, err
}

// GetCouponWorkflow looks up (or, after a crash between burn and
// redemption, re-signs) the coupon for a previously-requested withdrawal.
// Re-signing is safe to retry freely: signing is deterministic and carries
// no side effect on the destination ledger.
func GetCouponWorkflow(ctx workflow.Context, input GetCouponInput) (*GetCouponResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})
	var result *GetCouponResult
	err := workflow.ExecuteActivity(ctx, a.GetCoupon, input).Get(ctx, &result)
	return result, err
}
