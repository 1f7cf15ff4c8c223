package solana

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWallet = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

func sigPage(sigs ...string) []*rpc.TransactionSignature {
	out := make([]*rpc.TransactionSignature, len(sigs))
	for i, s := range sigs {
		out[i] = &rpc.TransactionSignature{Signature: solana.MustSignatureFromBase58(s), Slot: uint64(100 + i)}
	}
	return out
}

const (
	sigA = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"
	sigB = "2TgM4N8qCMqLvfR8dxqTQgKygPNzT5KQkN5b5sT7eZPEkdxyLTXGnNQB3j7KG4DPFg5Qez5yNJBQRQ5r7DDnFfjG"
	sigC = "3LzUfBWvh7uN5sNTVPkbDGq5SNrPBKDYTJqFmH8nHq6Z9VGJ7iCxB2rLFZsKrQNuJfTnKQ5D5YqGrNqvnKQZXMQE"
)

func TestDiscoverer_ShortPageRecordsAndAdvancesWatermark(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	mock := &mockRPCClient{sigPages: [][]*rpc.TransactionSignature{sigPage(sigA, sigB)}}
	d := NewDiscoverer(newTestClient(mock), testWallet, 10)

	err := d.Run(context.Background(), engine)
	require.NoError(t, err)

	engine.Read(func(s *bridgestate.State) {
		assert.Contains(t, s.PendingSignatures, sigA)
		assert.Contains(t, s.PendingSignatures, sigB)
		assert.Equal(t, sigA, s.SolanaLastKnownSignature)
		assert.Empty(t, s.SignatureRanges)
	})
}

func TestDiscoverer_FullPageCreatesRangeAndAdvancesWatermark(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	mock := &mockRPCClient{sigPages: [][]*rpc.TransactionSignature{sigPage(sigA, sigB, sigC)}}
	d := NewDiscoverer(newTestClient(mock), testWallet, 3)

	err := d.Run(context.Background(), engine)
	require.NoError(t, err)

	engine.Read(func(s *bridgestate.State) {
		key := sigC + "-" + "genesis-sig"
		assert.Contains(t, s.SignatureRanges, key)
		assert.Equal(t, sigA, s.SolanaLastKnownSignature)
	})
}

func TestDiscoverer_DeferWatermarkWithinRange(t *testing.T) {
	cfg := bridgestate.TestConfig()
	cfg.DeferWatermarkUntilRangesResolved = true
	engine := bridgestate.NewEngine(eventlog.NewMemoryLog(), cfg)

	mock := &mockRPCClient{sigPages: [][]*rpc.TransactionSignature{sigPage(sigA, sigB, sigC)}}
	d := NewDiscoverer(newTestClient(mock), testWallet, 3)

	err := d.Run(context.Background(), engine)
	require.NoError(t, err)

	engine.Read(func(s *bridgestate.State) {
		assert.Empty(t, s.SolanaLastKnownSignature)
		assert.NotEmpty(t, s.SignatureRanges)
	})
}

func TestDiscoverer_EmptyPageIsNoop(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	mock := &mockRPCClient{sigPages: [][]*rpc.TransactionSignature{{}}}
	d := NewDiscoverer(newTestClient(mock), testWallet, 10)

	err := d.Run(context.Background(), engine)
	require.NoError(t, err)

	engine.Read(func(s *bridgestate.State) {
		assert.Empty(t, s.PendingSignatures)
		assert.Empty(t, s.SignatureRanges)
	})
}

func TestDiscoverer_RPCErrorPropagates(t *testing.T) {
	engine, _ := bridgestate.NewTestEngine(t)
	mock := &mockRPCClient{sigErr: assertErrDiscoverer("boom")}
	d := NewDiscoverer(newTestClient(mock), testWallet, 10)

	err := d.Run(context.Background(), engine)
	assert.Error(t, err)
}

type assertErrDiscoverer string

func (e assertErrDiscoverer) Error() string { return string(e) }
