package bridgestate

import (
	"context"
	"testing"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := TestConfig()
	assert.NoError(t, valid.Validate())

	missingKey := valid
	missingKey.EcdsaKeyName = "   "
	assert.Error(t, missingKey.Validate())

	zeroMin := valid
	zeroMin.MinimumWithdrawalAmount = 0
	assert.Error(t, zeroMin.Validate())
}

func TestEngine_MutateAppendsThenApplies(t *testing.T) {
	e, log := NewTestEngine(t)
	ctx := context.Background()

	_, err := e.RecordOrRetryPendingSignature(ctx, "sig1", 10)
	require.NoError(t, err)

	events := log.Events()
	require.Len(t, events, 1)
	assert.Equal(t, eventlog.KindDepositDiscovered, events[0].Kind)

	e.Read(func(s *State) {
		assert.Contains(t, s.PendingSignatures, "sig1")
	})
}

func TestEngine_Mutate_InvariantPanicBecomesError(t *testing.T) {
	e, _ := NewTestEngine(t)
	ctx := context.Background()

	_, err := e.RemoveSignatureRange(ctx, SignatureRange{Before: "b", Until: "u"}, nil)
	require.Error(t, err)
	var ie *InvariantError
	assert.ErrorAs(t, err, &ie)
}

func TestRestore_ReplaysEventsIntoFreshState(t *testing.T) {
	log := eventlog.NewMemoryLog()
	e1 := NewEngine(log, TestConfig())
	ctx := context.Background()

	_, err := e1.RecordOrRetryPendingSignature(ctx, "sig1", 10)
	require.NoError(t, err)
	depositID := e1.NextDepositID()
	_, err = e1.RecordOrRetryAcceptedDeposit(ctx, DepositEvent{Sig: "sig1", DepositID: depositID})
	require.NoError(t, err)
	_, err = e1.RecordMintedDeposit(ctx, depositID, 99)
	require.NoError(t, err)

	e2, err := Restore(ctx, log, TestConfig())
	require.NoError(t, err)

	e2.Read(func(s *State) {
		assert.Empty(t, s.PendingSignatures)
		assert.Empty(t, s.AcceptedEvents)
		require.Contains(t, s.MintedEvents, "sig1")
		assert.Equal(t, uint64(99), s.MintedEvents["sig1"].LedgerMintBlock)
	})
}

func TestEngine_TryAcquireTask_MutualExclusion(t *testing.T) {
	e, _ := NewTestEngine(t)

	assert.True(t, e.TryAcquireTask(context.Background(), eventlog.TaskMintGSol))
	assert.False(t, e.TryAcquireTask(context.Background(), eventlog.TaskMintGSol))

	e.ReleaseTask(eventlog.TaskMintGSol)
	assert.True(t, e.TryAcquireTask(context.Background(), eventlog.TaskMintGSol))
}

func TestEngine_WithdrawalSlot_AlreadyProcessing(t *testing.T) {
	e, _ := NewTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.TryAcquireWithdrawalSlot(ctx, "principal-1"))
	err := e.TryAcquireWithdrawalSlot(ctx, "principal-1")
	assert.ErrorIs(t, err, ErrAlreadyProcessing)

	e.ReleaseWithdrawalSlot("principal-1")
	assert.NoError(t, e.TryAcquireWithdrawalSlot(ctx, "principal-1"))
}

func TestEngine_NextIDs_AreMonotonicAndWrap(t *testing.T) {
	e, _ := NewTestEngine(t)

	first := e.NextDepositID()
	second := e.NextDepositID()
	assert.Equal(t, first+1, second)

	e.Read(func(s *State) {
		s.DepositIDCounter = ^uint64(0)
	})
	last := e.NextDepositID()
	wrapped := e.NextDepositID()
	assert.Equal(t, ^uint64(0), last)
	assert.Equal(t, uint64(0), wrapped)
}
