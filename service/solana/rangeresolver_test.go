package solana

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeResolver_ShortPageResolvesRange(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	ctx := context.Background()

	rg := bridgestate.SignatureRange{Before: sigC, Until: "genesis-sig"}
	_, err := engine.RecordSignatureRange(ctx, rg)
	require.NoError(t, err)

	mock := &mockRPCClient{sigPages: [][]*rpc.TransactionSignature{sigPage(sigB, sigA)}}
	r := NewRangeResolver(newTestClient(mock), testWallet, 10, 5)

	require.NoError(t, r.Run(ctx, engine))

	engine.Read(func(s *bridgestate.State) {
		assert.NotContains(t, s.SignatureRanges, sigC+"-genesis-sig")
		assert.Contains(t, s.PendingSignatures, sigA)
		assert.Contains(t, s.PendingSignatures, sigB)
	})
}

func TestRangeResolver_FullPageSubdivides(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	ctx := context.Background()

	rg := bridgestate.SignatureRange{Before: sigC, Until: "genesis-sig"}
	_, err := engine.RecordSignatureRange(ctx, rg)
	require.NoError(t, err)

	mock := &mockRPCClient{sigPages: [][]*rpc.TransactionSignature{sigPage(sigB, sigA)}}
	r := NewRangeResolver(newTestClient(mock), testWallet, 2, 5)

	require.NoError(t, r.Run(ctx, engine))

	engine.Read(func(s *bridgestate.State) {
		assert.NotContains(t, s.SignatureRanges, sigC+"-genesis-sig")
		assert.Contains(t, s.SignatureRanges, sigA+"-genesis-sig")
	})
}

func TestRangeResolver_EmptyPageRemovesRange(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	ctx := context.Background()

	rg := bridgestate.SignatureRange{Before: sigC, Until: "genesis-sig"}
	_, err := engine.RecordSignatureRange(ctx, rg)
	require.NoError(t, err)

	mock := &mockRPCClient{sigPages: [][]*rpc.TransactionSignature{{}}}
	r := NewRangeResolver(newTestClient(mock), testWallet, 10, 5)

	require.NoError(t, r.Run(ctx, engine))

	engine.Read(func(s *bridgestate.State) {
		assert.Empty(t, s.SignatureRanges)
	})
}

func TestRangeResolver_ErrorExhaustsPastMaxRetries(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	ctx := context.Background()

	rg := bridgestate.SignatureRange{Before: sigC, Until: "genesis-sig", Retry: 4}
	_, err := engine.RecordSignatureRange(ctx, rg)
	require.NoError(t, err)
	// bump the in-memory range's retry to 4 by retrying it directly since
	// RecordSignatureRange always starts a range at retry 0.
	_, err = engine.RetrySignatureRange(ctx, bridgestate.SignatureRange{Before: sigC, Until: "genesis-sig"}, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = engine.RetrySignatureRange(ctx, bridgestate.SignatureRange{Before: sigC, Until: "genesis-sig"}, nil)
		require.NoError(t, err)
	}

	mock := &mockRPCClient{sigErr: assertErrDiscoverer("rpc down")}
	r := NewRangeResolver(newTestClient(mock), testWallet, 10, 5)

	require.NoError(t, r.Run(ctx, engine))

	engine.Read(func(s *bridgestate.State) {
		assert.NotContains(t, s.SignatureRanges, sigC+"-genesis-sig")
	})
}
