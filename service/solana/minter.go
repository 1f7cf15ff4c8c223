package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/gsolbridge/gsolbridge/service/ledger"
	"github.com/gsolbridge/gsolbridge/service/memo"
	"github.com/gsolbridge/gsolbridge/service/metrics"
	natspkg "github.com/gsolbridge/gsolbridge/service/nats"
)

// Minter implements the mint-gsol task (§4.F): for each accepted deposit,
// issue a destination-ledger transfer tagged with a memo unique to the
// deposit id, then promote the event to minted. The ledger's memo
// uniqueness is the second line of defense against double-minting; the
// event log's accepted->minted transition, enforced by
// bridgestate.Engine.RecordMintedDeposit, is the first -- a crash between a
// successful transfer and the event append is survived because the next
// attempt's Transfer call collides on the memo and is treated as success.
//
// Grounded on the same fetch/classify/retry shape as Classifier
// (service/solana/classifier.go), applied to the ledger call instead of
// GetTransaction.
type Minter struct {
	ledger     ledger.Client
	batchLimit int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	publisher  natspkg.Publisher
}

// NewMinter builds a Minter that mints at most batchLimit accepted
// deposits per Run call. If m is nil, no metrics are recorded.
func NewMinter(lc ledger.Client, batchLimit int, m *metrics.Metrics, logger *slog.Logger) *Minter {
	return &Minter{ledger: lc, batchLimit: batchLimit, metrics: m, logger: logger}
}

// SetPublisher wires a best-effort NATS publisher; see
// Classifier.SetPublisher for the failure-handling contract.
func (m *Minter) SetPublisher(p natspkg.Publisher) { m.publisher = p }

// Run mints up to batchLimit accepted deposits.
func (m *Minter) Run(ctx context.Context, engine *bridgestate.Engine) error {
	if !engine.TryAcquireTask(ctx, eventlog.TaskMintGSol) {
		return nil
	}
	defer engine.ReleaseTask(eventlog.TaskMintGSol)

	var accepted []bridgestate.DepositEvent
	engine.Read(func(s *bridgestate.State) {
		for _, d := range s.AcceptedEvents {
			if len(accepted) >= m.batchLimit {
				break
			}
			accepted = append(accepted, d)
		}
	})

	for _, d := range accepted {
		m.mintOne(ctx, engine, d)
	}
	return nil
}

func (m *Minter) mintOne(ctx context.Context, engine *bridgestate.Engine, d bridgestate.DepositEvent) {
	mintMemo := memo.EncodeID(d.DepositID)

	ok, duplicate, err := m.ledger.Transfer(ctx, d.RecipientPrincipal, d.Amount, mintMemo)
	if err != nil {
		var te *ledger.TransientError
		if errors.As(err, &te) {
			m.logger.WarnContext(ctx, "minter: transfer failed transiently, will retry next cycle",
				"deposit_id", d.DepositID, "recipient", d.RecipientPrincipal, "error", err)
			if m.metrics != nil {
				m.metrics.RecordRPCRetry("LedgerTransfer", "transient")
			}
			return
		}
		m.logger.ErrorContext(ctx, "minter: transfer permanently rejected by ledger",
			"deposit_id", d.DepositID, "recipient", d.RecipientPrincipal, "error", err)
		if _, ierr := engine.RecordAcceptedDepositInvalid(ctx, d.Sig, "ledger_rejected"); ierr != nil {
			m.logger.ErrorContext(ctx, "minter: failed to record invalid event after ledger rejection",
				"deposit_id", d.DepositID, "error", ierr)
		}
		return
	}

	if duplicate {
		m.logger.InfoContext(ctx, "minter: transfer memo already applied, treating as success",
			"deposit_id", d.DepositID, "recipient", d.RecipientPrincipal)
	} else if !ok {
		m.logger.ErrorContext(ctx, "minter: transfer returned neither success nor duplicate",
			"deposit_id", d.DepositID, "recipient", d.RecipientPrincipal)
		return
	}

	if _, err := engine.RecordMintedDeposit(ctx, d.DepositID, 0); err != nil {
		m.logger.ErrorContext(ctx, "minter: failed to record minted deposit",
			"deposit_id", d.DepositID, "error", fmt.Errorf("minter: %w", err))
		return
	}
	if m.metrics != nil {
		m.metrics.RecordTransactionParsed(d.RecipientPrincipal, "minted")
	}
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, natspkg.DepositMinted(d.Sig, d.DepositID, d.RecipientPrincipal, d.Amount)); err != nil {
			m.logger.WarnContext(ctx, "minter: failed to publish bridge event",
				"deposit_id", d.DepositID, "error", err)
		}
	}
}
