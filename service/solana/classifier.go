package solana

import (
	"context"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/gsolbridge/gsolbridge/service/memo"
	natspkg "github.com/gsolbridge/gsolbridge/service/nats"
)

// Classifier implements the scrap-signatures task: fetch full transaction
// details for every pending signature and classify each one into either an
// accepted deposit (valid program, valid memo, positive amount) or an
// invalid event (anything else), the bridge's §4.E decision tree.
//
// Fetch/retry behavior is grounded on the teacher's GetTransaction retry
// loop in the pre-rewrite client.go: 429 backoff, legacy-vs-versioned
// transaction fallback, and "give up after N attempts and treat as
// unavailable" all carry over unchanged.
type Classifier struct {
	client          *Client
	contractAddress solana.PublicKey
	batchLimit      int
	maxAttempts     int
	publisher       natspkg.Publisher
}

// NewClassifier builds a Classifier. contractAddress is the bridge's Solana
// deposit address; transactions whose instructions don't touch it are
// still classified (the system/token program parsing doesn't filter on
// destination), so batchLimit bounds how many pending signatures one Run
// call processes rather than filtering by address.
func NewClassifier(client *Client, contractAddress solana.PublicKey, batchLimit int) *Classifier {
	return &Classifier{client: client, contractAddress: contractAddress, batchLimit: batchLimit, maxAttempts: 3}
}

// SetPublisher wires a best-effort NATS publisher: every accepted/invalid
// classification is published for external subscribers once its state
// transition is durably recorded. Publish failures are logged, never
// propagated -- the event log is already the source of truth by the time
// Publish is called.
func (c *Classifier) SetPublisher(p natspkg.Publisher) { c.publisher = p }

func (c *Classifier) publish(ctx context.Context, event *natspkg.BridgeEvent) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.client.Logger.WarnContext(ctx, "classifier: failed to publish bridge event",
			"kind", event.Kind, "signature", event.Signature, "error", err)
	}
}

// Run classifies up to batchLimit pending signatures.
func (c *Classifier) Run(ctx context.Context, engine *bridgestate.Engine) error {
	if !engine.TryAcquireTask(ctx, eventlog.TaskScrapSignatures) {
		return nil
	}
	defer engine.ReleaseTask(eventlog.TaskScrapSignatures)

	var pending []bridgestate.PendingSignature
	engine.Read(func(s *bridgestate.State) {
		for _, p := range s.PendingSignatures {
			if len(pending) >= c.batchLimit {
				break
			}
			pending = append(pending, p)
		}
	})

	for _, p := range pending {
		c.classifyOne(ctx, engine, p)
	}
	return nil
}

func (c *Classifier) classifyOne(ctx context.Context, engine *bridgestate.Engine, p bridgestate.PendingSignature) {
	sig, ok := parseSignature(p.Sig)
	if !ok {
		c.recordInvalid(ctx, engine, p.Sig, "bad_signature")
		return
	}

	result, err := c.fetchTransactionWithRetry(ctx, sig)
	if err != nil {
		c.client.Logger.WarnContext(ctx, "classifier: failed to fetch transaction after retries",
			"signature", p.Sig, "error", err)
		if _, err := engine.RecordOrRetryPendingSignature(ctx, p.Sig, p.Slot); err != nil {
			c.client.Logger.ErrorContext(ctx, "classifier: failed to bump retry", "signature", p.Sig, "error", err)
		}
		return
	}

	txn, err := parseTransactionFromResult(&rpc.TransactionSignature{Signature: sig, Slot: p.Slot}, result)
	if err != nil {
		c.recordInvalid(ctx, engine, p.Sig, "unparsable")
		return
	}
	if txn.Err != nil {
		c.recordInvalid(ctx, engine, p.Sig, "tx_failed")
		return
	}
	if txn.Memo == nil {
		c.recordInvalid(ctx, engine, p.Sig, "no_memo")
		return
	}

	deposit, err := memo.DecodeDeposit([]byte(*txn.Memo))
	if err != nil {
		c.recordInvalid(ctx, engine, p.Sig, "bad_memo")
		return
	}
	if deposit.Amount == 0 {
		c.recordInvalid(ctx, engine, p.Sig, "zero_amount")
		return
	}

	depositID := engine.NextDepositID()
	sender := ""
	if txn.FromAddress != nil {
		sender = *txn.FromAddress
	}
	if _, err := engine.RecordOrRetryAcceptedDeposit(ctx, bridgestate.DepositEvent{
		Sig:                p.Sig,
		Slot:               p.Slot,
		SenderSolAddr:      sender,
		RecipientPrincipal: deposit.RecipientPrincipal,
		Amount:             deposit.Amount,
		DepositID:          depositID,
		MemoBytes:          []byte(*txn.Memo),
	}); err != nil {
		c.client.Logger.ErrorContext(ctx, "classifier: failed to record accepted deposit",
			"signature", p.Sig, "error", err)
		return
	}
	if c.client.Metrics != nil {
		c.client.Metrics.RecordTransactionParsed(c.contractAddress.String(), "success")
	}
	c.publish(ctx, natspkg.DepositAccepted(p.Sig, depositID, deposit.RecipientPrincipal, deposit.Amount))
}

func (c *Classifier) recordInvalid(ctx context.Context, engine *bridgestate.Engine, sig, reason string) {
	if _, err := engine.RecordInvalidEvent(ctx, sig, reason); err != nil {
		c.client.Logger.ErrorContext(ctx, "classifier: failed to record invalid event",
			"signature", sig, "reason", reason, "error", err)
		return
	}
	if c.client.Metrics != nil {
		c.client.Metrics.RecordTransactionParsed(c.contractAddress.String(), reason)
	}
	c.publish(ctx, natspkg.DepositInvalid(sig, reason))
}

// fetchTransactionWithRetry fetches a single transaction's full details,
// retrying on rate limiting and on the legacy-vs-versioned-transaction
// decode mismatch, exactly as the teacher's poll loop did.
func (c *Classifier) fetchTransactionWithRetry(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	var result *rpc.GetTransactionResult
	var err error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		opts := &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			MaxSupportedTransactionVersion: &[]uint64{0}[0],
		}
		start := time.Now()
		result, err = c.client.RPC.GetTransaction(ctx, sig, opts)
		c.client.recordRPCCall("GetTransaction", err, time.Since(start).Seconds())
		if err == nil {
			return result, nil
		}

		if strings.Contains(err.Error(), "429") {
			backoff := time.Duration(2<<uint(attempt)) * time.Second
			if c.client.Metrics != nil {
				c.client.Metrics.RecordRateLimitHit(c.client.Endpoint)
				c.client.Metrics.RecordRPCRetry("GetTransaction", "rate_limit")
			}
			c.sleep(ctx, backoff)
			continue
		}

		if strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
			if c.client.Metrics != nil {
				c.client.Metrics.RecordRPCRetry("GetTransaction", "parse_error")
			}
			legacyOpts := &rpc.GetTransactionOpts{Encoding: solana.EncodingBase64}
			start := time.Now()
			result, err = c.client.RPC.GetTransaction(ctx, sig, legacyOpts)
			c.client.recordRPCCall("GetTransaction", err, time.Since(start).Seconds())
			if err == nil {
				return result, nil
			}
		}

		if c.client.Metrics != nil {
			c.client.Metrics.RecordRPCRetry("GetTransaction", "timeout_or_error")
		}
		c.sleep(ctx, time.Duration(1<<uint(attempt))*time.Second)
	}
	return nil, err
}

func (c *Classifier) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
