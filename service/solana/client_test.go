package solana

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// mockRPCClient implements RPCClient for testing the discoverer, range
// resolver, and classifier without a real Solana node. It's
// behavior-focused: callers queue up canned responses per call rather than
// verifying exact call sequences.
type mockRPCClient struct {
	mu sync.Mutex

	sigPages       [][]*rpc.TransactionSignature // consumed in order across calls
	sigPageIdx     int
	sigErr         error
	transactions   map[string]*rpc.GetTransactionResult
	getTxErr       error
	getTxErrSeq    []error // if set, consumed in order; falls back to getTxErr
	getTxCallCount int
}

func (m *mockRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sigErr != nil {
		return nil, m.sigErr
	}
	if m.sigPageIdx >= len(m.sigPages) {
		return nil, nil
	}
	page := m.sigPages[m.sigPageIdx]
	m.sigPageIdx++
	return page, nil
}

func (m *mockRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getTxCallCount < len(m.getTxErrSeq) {
		err := m.getTxErrSeq[m.getTxCallCount]
		m.getTxCallCount++
		if err != nil {
			return nil, err
		}
	} else {
		m.getTxCallCount++
		if m.getTxErr != nil {
			return nil, m.getTxErr
		}
	}
	if m.transactions == nil {
		return nil, nil
	}
	return m.transactions[signature.String()], nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, "test-endpoint", nil, logger)
}
