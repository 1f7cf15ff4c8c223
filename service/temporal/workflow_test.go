package temporal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/gsolbridge/gsolbridge/service/signer"
)

func TestGetLatestSignatureWorkflow_Success(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.DiscoverSignatures)
	env.OnActivity(activities.DiscoverSignatures, mock.Anything).Return(&TaskResult{Ran: true}, nil)

	env.ExecuteWorkflow(GetLatestSignatureWorkflow)

	assert.NoError(t, env.GetWorkflowError())
	var result TaskResult
	assert.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Ran)
}

func TestGetLatestSignatureWorkflow_ActivityErrorIsNotRetried(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.DiscoverSignatures)

	callCount := 0
	env.OnActivity(activities.DiscoverSignatures, mock.Anything).Run(func(args mock.Arguments) {
		callCount++
	}).Return(nil, errors.New("rpc unavailable"))

	env.ExecuteWorkflow(GetLatestSignatureWorkflow)

	assert.Error(t, env.GetWorkflowError())
	// periodicActivityOptions caps at one attempt: a failed poll waits for
	// the next schedule firing rather than Temporal's own backoff.
	assert.Equal(t, 1, callCount)
}

func TestScrapSignaturesWorkflow_Success(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.ClassifySignatures)
	env.OnActivity(activities.ClassifySignatures, mock.Anything).Return(&TaskResult{Ran: true}, nil)

	env.ExecuteWorkflow(ScrapSignaturesWorkflow)

	assert.NoError(t, env.GetWorkflowError())
	var result TaskResult
	assert.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Ran)
}

func TestMintGSolWorkflow_Success(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.MintAccepted)
	env.OnActivity(activities.MintAccepted, mock.Anything).Return(&TaskResult{Ran: true}, nil)

	env.ExecuteWorkflow(MintGSolWorkflow)

	assert.NoError(t, env.GetWorkflowError())
	var result TaskResult
	assert.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Ran)
}

func TestWithdrawWorkflow_Success(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.Withdraw)

	input := WithdrawInput{
		Principal:        "alice",
		RecipientSolAddr: "Recipient11111111111111111111111111111111",
		Amount:           500_000,
	}
	expected := &WithdrawResult{Coupon: &signer.Coupon{BurnID: 1, RecipientSolAddr: input.RecipientSolAddr, Amount: input.Amount}}
	env.OnActivity(activities.Withdraw, mock.Anything, input).Return(expected, nil)

	env.ExecuteWorkflow(WithdrawWorkflow, input)

	assert.NoError(t, env.GetWorkflowError())
	var result WithdrawResult
	assert.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, expected.Coupon.Amount, result.Coupon.Amount)
}

func TestWithdrawWorkflow_BurnFailureIsNotRetried(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.Withdraw)

	input := WithdrawInput{Principal: "alice", RecipientSolAddr: "Recipient11111111111111111111111111111111", Amount: 500_000}

	callCount := 0
	env.OnActivity(activities.Withdraw, mock.Anything, input).Run(func(args mock.Arguments) {
		callCount++
	}).Return(nil, errors.New("ledger unavailable"))

	env.ExecuteWorkflow(WithdrawWorkflow, input)

	assert.Error(t, env.GetWorkflowError())
	// A retried burn is not safe: ledger.Client.Burn is not
	// memo-deduplicated like Transfer, so the activity must fail outright
	// rather than risk a double burn via automatic retry.
	assert.Equal(t, 1, callCount)
}

func TestGetCouponWorkflow_RetriesOnTransientFailure(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.GetCoupon)

	input := GetCouponInput{Principal: "alice", BurnID: 1}
	expected := &GetCouponResult{Coupon: &signer.Coupon{BurnID: 1}}

	callCount := 0
	env.OnActivity(activities.GetCoupon, mock.Anything, input).Run(func(args mock.Arguments) {
		callCount++
		if callCount < 2 {
			panic("transient lookup error")
		}
	}).Return(expected, nil)

	env.ExecuteWorkflow(GetCouponWorkflow, input)

	assert.NoError(t, env.GetWorkflowError())
	var result GetCouponResult
	assert.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, expected.Coupon.BurnID, result.Coupon.BurnID)
	assert.Equal(t, 2, callCount)
}
