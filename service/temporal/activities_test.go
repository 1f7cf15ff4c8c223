package temporal

import (
	"context"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/gsolbridge/gsolbridge/service/ledger"
	"github.com/gsolbridge/gsolbridge/service/signer"
	"github.com/gsolbridge/gsolbridge/service/solana"
	"github.com/gsolbridge/gsolbridge/service/withdraw"
)

func newTestWithdrawEngine(t *testing.T) (*withdraw.Engine, *bridgestate.Engine, *ledger.MemoryClient) {
	t.Helper()
	engine, _ := bridgestate.NewTestEngine(t)

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	provider := signer.NewLocalKeyProvider("test_key", priv)
	facade := signer.NewFacade(provider, "test_key")

	lc := ledger.NewMemoryClient()
	we := withdraw.NewEngine(engine, lc, facade, nil)
	return we, engine, lc
}

func TestActivities_MintAccepted_NoAcceptedDepositsIsNoop(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	lc := ledger.NewMemoryClient()
	minter := solana.NewMinter(lc, 10, nil, nil)

	a := NewActivities(engine, nil, nil, nil, minter, nil, nil, nil)
	result, err := a.MintAccepted(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Ran)
}

func TestActivities_Withdraw_SucceedsAndReturnsCoupon(t *testing.T) {
	we, _, lc := newTestWithdrawEngine(t)
	lc.Credit("alice", 1_000_000)

	a := NewActivities(nil, nil, nil, nil, nil, we, nil, nil)
	result, err := a.Withdraw(context.Background(), WithdrawInput{
		Principal:        "alice",
		RecipientSolAddr: "Recipient11111111111111111111111111111111",
		Amount:           500_000,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Coupon)
	assert.Equal(t, uint64(500_000), result.Coupon.Amount)
}

func TestActivities_Withdraw_BelowMinimumFails(t *testing.T) {
	we, _, lc := newTestWithdrawEngine(t)
	lc.Credit("alice", 1_000_000)

	a := NewActivities(nil, nil, nil, nil, nil, we, nil, nil)
	_, err := a.Withdraw(context.Background(), WithdrawInput{
		Principal:        "alice",
		RecipientSolAddr: "Recipient11111111111111111111111111111111",
		Amount:           1,
	})
	assert.ErrorIs(t, err, bridgestate.ErrBelowMinimum)
}

func TestActivities_GetCoupon_ReturnsStoredCouponAfterWithdraw(t *testing.T) {
	we, engine, lc := newTestWithdrawEngine(t)
	lc.Credit("alice", 1_000_000)

	a := NewActivities(nil, nil, nil, nil, nil, we, nil, nil)
	withdrawResult, err := a.Withdraw(context.Background(), WithdrawInput{
		Principal:        "alice",
		RecipientSolAddr: "Recipient11111111111111111111111111111111",
		Amount:           500_000,
	})
	require.NoError(t, err)

	var burnID uint64
	engine.Read(func(s *bridgestate.State) {
		for id := range s.WithdrawalRedeemedEvents {
			burnID = id
		}
	})

	result, err := a.GetCoupon(context.Background(), GetCouponInput{Principal: "alice", BurnID: burnID})
	require.NoError(t, err)
	assert.Equal(t, withdrawResult.Coupon.Signature, result.Coupon.Signature)
}

func TestActivities_GetCoupon_WrongPrincipalIsUnauthorized(t *testing.T) {
	we, engine, lc := newTestWithdrawEngine(t)
	lc.Credit("alice", 1_000_000)

	a := NewActivities(nil, nil, nil, nil, nil, we, nil, nil)
	_, err := a.Withdraw(context.Background(), WithdrawInput{
		Principal:        "alice",
		RecipientSolAddr: "Recipient11111111111111111111111111111111",
		Amount:           500_000,
	})
	require.NoError(t, err)

	var burnID uint64
	engine.Read(func(s *bridgestate.State) {
		for id := range s.WithdrawalRedeemedEvents {
			burnID = id
		}
	})

	_, err = a.GetCoupon(context.Background(), GetCouponInput{Principal: "mallory", BurnID: burnID})
	assert.ErrorIs(t, err, bridgestate.ErrUnauthorized)
}

func TestActivities_DiscoverSignatures_TaskAlreadyHeldIsNoop(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	// Hold the task lock so Run observes it already acquired and returns
	// before ever touching the (here nil) discoverer.
	require.True(t, engine.TryAcquireTask(context.Background(), eventlog.TaskGetLatestSignature))
	defer engine.ReleaseTask(eventlog.TaskGetLatestSignature)

	a := NewActivities(engine, nil, nil, nil, nil, nil, nil, nil)
	result, err := a.DiscoverSignatures(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Ran)
}
