package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/gsolbridge/gsolbridge/service/eventlog"
)

// Discoverer implements the get-latest-signature task: poll for signatures
// newer than the watermark and record them individually. A short page means
// we've caught up; a full page means there's more history than one call can
// return, so the history below the page is also parked as a new pending
// range for the RangeResolver to paginate.
//
// Grounded on the teacher's Client.GetTransactionsSince polling loop
// (service/solana/client.go in the copied tree before this rewrite), but
// restructured around a watermark instead of a flat "fetch N most recent"
// call.
type Discoverer struct {
	client *Client
	wallet solana.PublicKey
	limit  int
}

// NewDiscoverer builds a Discoverer that polls wallet for new signatures,
// fetching up to limit per call.
func NewDiscoverer(client *Client, wallet solana.PublicKey, limit int) *Discoverer {
	return &Discoverer{client: client, wallet: wallet, limit: limit}
}

// Run executes one poll cycle. It is a no-op (returning nil) if the
// get-latest-signature task is already running, the Go realization of the
// canister's active_tasks reentrancy guard.
func (d *Discoverer) Run(ctx context.Context, engine *bridgestate.Engine) error {
	if !engine.TryAcquireTask(ctx, eventlog.TaskGetLatestSignature) {
		return nil
	}
	defer engine.ReleaseTask(eventlog.TaskGetLatestSignature)

	var watermark string
	var deferWatermark bool
	engine.Read(func(s *bridgestate.State) {
		watermark = s.GetSolanaLastKnownSignature()
		deferWatermark = s.DeferWatermarkUntilRangesResolved
	})

	opts := &rpc.GetSignaturesForAddressOpts{Limit: &d.limit}
	if until, ok := parseSignature(watermark); ok {
		opts.Until = until
	}

	start := time.Now()
	sigs, err := d.client.RPC.GetSignaturesForAddress(ctx, d.wallet, opts)
	d.client.recordRPCCall("GetSignaturesForAddress", err, time.Since(start).Seconds())
	if err != nil {
		d.client.Logger.ErrorContext(ctx, "discoverer: failed to get signatures",
			"wallet", d.wallet.String(), "error", err)
		return fmt.Errorf("solana: discoverer: %w", err)
	}
	if d.client.Metrics != nil {
		d.client.Metrics.RecordRPCSignaturesPerCall(d.client.Endpoint, float64(len(sigs)))
	}

	if len(sigs) == 0 {
		return nil
	}

	if len(sigs) < d.limit {
		for _, sig := range sigs {
			if _, err := engine.RecordOrRetryPendingSignature(ctx, sig.Signature.String(), sig.Slot); err != nil {
				return fmt.Errorf("solana: discoverer: record pending signature: %w", err)
			}
		}
		if _, err := engine.AdvanceWatermark(ctx, sigs[0].Signature.String(), sigs[0].Slot); err != nil {
			return fmt.Errorf("solana: discoverer: advance watermark: %w", err)
		}
		return nil
	}

	for _, sig := range sigs {
		if _, err := engine.RecordOrRetryPendingSignature(ctx, sig.Signature.String(), sig.Slot); err != nil {
			return fmt.Errorf("solana: discoverer: record pending signature: %w", err)
		}
	}

	newRange := bridgestate.SignatureRange{Before: sigs[len(sigs)-1].Signature.String(), Until: watermark}
	if deferWatermark {
		if _, err := engine.RecordSignatureRange(ctx, newRange); err != nil {
			return fmt.Errorf("solana: discoverer: record range: %w", err)
		}
		return nil
	}

	// Record the range and advance the watermark past it in one atomic
	// event: a crash between two separate appends would leave the range
	// recorded but the watermark un-advanced, and the next poll would
	// re-discover the same full page and collide on the range's key forever.
	if _, err := engine.RecordSignatureRangeAndAdvanceWatermark(ctx, newRange, sigs[0].Signature.String(), sigs[0].Slot); err != nil {
		return fmt.Errorf("solana: discoverer: record range and advance watermark: %w", err)
	}
	return nil
}
