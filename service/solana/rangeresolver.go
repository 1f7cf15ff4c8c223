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

// RangeResolver implements the scrap-signature-range task: paginate a
// pending SignatureRange's [Until, Before) window, subdividing it down into
// a narrower range on a full page, resolving (dropping) it once a page
// comes back short, and exhausting it past maxRetries.
//
// Grounded on the teacher's pagination/retry-with-backoff shape in
// client.go's GetTransaction loop, applied instead to paginating
// GetSignaturesForAddress(before, until).
type RangeResolver struct {
	client     *Client
	wallet     solana.PublicKey
	pageLimit  int
	maxRetries uint32
}

// NewRangeResolver builds a RangeResolver. pageLimit is both the RPC page
// size and the threshold distinguishing "fully resolved" (short page) from
// "needs subdividing" (full page).
func NewRangeResolver(client *Client, wallet solana.PublicKey, pageLimit int, maxRetries uint32) *RangeResolver {
	return &RangeResolver{client: client, wallet: wallet, pageLimit: pageLimit, maxRetries: maxRetries}
}

// Run resolves every range currently pending, one at a time. A single
// range's failure is logged and does not stop the others from being
// attempted.
func (r *RangeResolver) Run(ctx context.Context, engine *bridgestate.Engine) error {
	if !engine.TryAcquireTask(ctx, eventlog.TaskScrapSignatureRange) {
		return nil
	}
	defer engine.ReleaseTask(eventlog.TaskScrapSignatureRange)

	var ranges []bridgestate.SignatureRange
	engine.Read(func(s *bridgestate.State) {
		for _, rg := range s.SignatureRanges {
			ranges = append(ranges, rg)
		}
	})

	for _, rg := range ranges {
		if err := r.resolveOne(ctx, engine, rg); err != nil {
			r.client.Logger.ErrorContext(ctx, "range resolver: failed to resolve range",
				"before", rg.Before, "until", rg.Until, "retry", rg.Retry, "error", err)
		}
	}
	return nil
}

func (r *RangeResolver) resolveOne(ctx context.Context, engine *bridgestate.Engine, rg bridgestate.SignatureRange) error {
	opts := &rpc.GetSignaturesForAddressOpts{Limit: &r.pageLimit}
	if before, ok := parseSignature(rg.Before); ok {
		opts.Before = before
	}
	if until, ok := parseSignature(rg.Until); ok {
		opts.Until = until
	}

	start := time.Now()
	sigs, err := r.client.RPC.GetSignaturesForAddress(ctx, r.wallet, opts)
	r.client.recordRPCCall("GetSignaturesForAddress", err, time.Since(start).Seconds())
	if err != nil {
		if r.client.Metrics != nil {
			r.client.Metrics.RecordRPCRetry("GetSignaturesForAddress", "error")
		}
		if rg.Retry+1 >= r.maxRetries {
			if _, exErr := engine.ExhaustSignatureRange(ctx, rg); exErr != nil {
				return fmt.Errorf("range resolver: exhaust range: %w", exErr)
			}
			r.client.Logger.WarnContext(ctx, "range resolver: range exhausted, deposits inside may be unreachable",
				"before", rg.Before, "until", rg.Until, "retry", rg.Retry)
			return nil
		}
		if _, retryErr := engine.RetrySignatureRange(ctx, rg, nil); retryErr != nil {
			return fmt.Errorf("range resolver: retry range: %w", retryErr)
		}
		return fmt.Errorf("range resolver: fetch page: %w", err)
	}

	if len(sigs) == 0 {
		_, err := engine.RemoveSignatureRange(ctx, rg, nil)
		return err
	}

	for _, sig := range sigs {
		if _, err := engine.RecordOrRetryPendingSignature(ctx, sig.Signature.String(), sig.Slot); err != nil {
			return fmt.Errorf("range resolver: record pending signature: %w", err)
		}
	}

	if len(sigs) < r.pageLimit {
		sigStrs := make([]string, len(sigs))
		for i, sig := range sigs {
			sigStrs[i] = sig.Signature.String()
		}
		_, err := engine.RemoveSignatureRange(ctx, rg, sigStrs)
		return err
	}

	narrower := bridgestate.SignatureRange{Before: sigs[len(sigs)-1].Signature.String(), Until: rg.Until}
	_, err = engine.RetrySignatureRange(ctx, rg, &narrower)
	return err
}
