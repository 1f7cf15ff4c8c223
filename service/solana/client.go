package solana

import (
	"context"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gsolbridge/gsolbridge/service/metrics"
)

// RPCClient is the subset of Solana RPC operations the scraper needs. This
// lets the discoverer, range resolver, and classifier all mock the RPC
// layer in tests without hitting a real Solana node.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client is the shared handle the scraper's three components (Discoverer,
// RangeResolver, Classifier) are all built around: an RPCClient plus the
// logging/metrics/endpoint-labeling every RPC call is wrapped in.
type Client struct {
	RPC      RPCClient
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Endpoint string // RPC endpoint identifier for metrics labeling (hostname, "mainnet", etc.)
}

// NewClient builds a Client. If m is nil, no metrics are recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{RPC: rpcClient, Logger: logger, Metrics: m, Endpoint: endpoint}
}

// recordRPCCall wraps a single RPC call's outcome into the standard metric
// set, matching the teacher's inline status/duration recording at every
// call site in the old flat poll loop.
func (c *Client) recordRPCCall(method string, err error, durationSeconds float64) {
	if c.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.Metrics.RecordRPCCall(method, status, c.Endpoint, durationSeconds)
}
