package solana

import (
	"context"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient
// interface, so callers depend on the narrow interface this package
// defines rather than the full solana-go client surface.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates an RPCClient wrapping the solana-go RPC client
// against rpcURL, with httpTransport installed as the underlying HTTP
// round tripper (normally a soltransport.ProxyRoundTripper). If
// httpTransport is nil, http.DefaultTransport is used.
//
// For premium RPC endpoints that require API keys, include the key in the
// URL (e.g. Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY).
func NewRPCClient(rpcURL string, httpTransport http.RoundTripper) RPCClient {
	httpClient := &http.Client{
		Timeout:   60 * time.Second,
		Transport: httpTransport,
	}

	jsonrpcClient := jsonrpc.NewClientWithOpts(rpcURL, &jsonrpc.RPCClientOpts{
		HTTPClient: httpClient,
	})

	return &realRPCClient{client: rpc.NewWithCustomRPCClient(jsonrpcClient)}
}

func (r *realRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	return r.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.client.GetTransaction(ctx, signature, opts)
}
