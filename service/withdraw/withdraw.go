// Package withdraw implements the withdrawal/coupon engine: burn a
// principal's gSOL on the destination ledger and hand back a signed coupon
// the recipient redeems on Solana. It is the one component that touches all
// three of bridgestate, ledger, and signer in a single call.
package withdraw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/gsolbridge/gsolbridge/service/ledger"
	"github.com/gsolbridge/gsolbridge/service/memo"
	natspkg "github.com/gsolbridge/gsolbridge/service/nats"
	"github.com/gsolbridge/gsolbridge/service/signer"
)

// Engine ties the bridge's state machine, destination ledger, and signer
// facade together into the withdrawal lifecycle.
type Engine struct {
	state     *bridgestate.Engine
	ledger    ledger.Client
	signer    *signer.Facade
	logger    *slog.Logger
	publisher natspkg.Publisher
}

// NewEngine builds a withdrawal Engine around its three collaborators.
func NewEngine(state *bridgestate.Engine, lc ledger.Client, sf *signer.Facade, logger *slog.Logger) *Engine {
	return &Engine{state: state, ledger: lc, signer: sf, logger: logger}
}

// SetPublisher wires a best-effort NATS publisher; see
// solana.Classifier.SetPublisher for the failure-handling contract.
func (e *Engine) SetPublisher(p natspkg.Publisher) { e.publisher = p }

func (e *Engine) publish(ctx context.Context, event *natspkg.BridgeEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "withdraw: failed to publish bridge event",
			"kind", event.Kind, "burn_id", event.BurnID, "error", err)
	}
}

// Withdraw burns amount of principal's destination-ledger balance and
// returns a signed coupon the recipient presents on Solana to redeem it.
// It implements, in order: anonymous-caller rejection, minimum-amount
// enforcement, per-principal single-flight locking, the ledger burn call,
// durable recording of the burn, coupon signing, and durable recording of
// the redemption -- mirroring the withdrawal state machine's two event
// kinds (burned, then redeemed).
func (e *Engine) Withdraw(ctx context.Context, principal, recipientSolAddr string, amount uint64) (*signer.Coupon, error) {
	if principal == "" {
		return nil, bridgestate.ErrAnonymousCaller
	}

	var minAmount uint64
	e.state.Read(func(s *bridgestate.State) { minAmount = s.MinimumWithdrawalAmount })
	if amount < minAmount {
		return nil, bridgestate.ErrBelowMinimum
	}

	if err := e.state.TryAcquireWithdrawalSlot(ctx, principal); err != nil {
		return nil, err
	}

	burnID := e.state.NextBurnID()
	burnMemo := memo.EncodeID(burnID)

	ledgerBurnBlock, err := e.ledger.Burn(ctx, principal, amount, burnMemo)
	if err != nil {
		e.state.ReleaseWithdrawalSlot(principal)
		var te *ledger.TransientError
		if errors.As(err, &te) {
			e.logger.WarnContext(ctx, "withdrawal burn failed transiently, caller should retry",
				"principal", principal, "burn_id", burnID, "error", err)
			return nil, err
		}
		e.logger.ErrorContext(ctx, "withdrawal burn rejected",
			"principal", principal, "burn_id", burnID, "error", err)
		return nil, fmt.Errorf("withdraw: burn rejected: %w", err)
	}

	if _, err := e.state.RecordOrRetryWithdrawalBurned(ctx, bridgestate.WithdrawalEvent{
		BurnID:           burnID,
		Principal:        principal,
		RecipientSolAddr: recipientSolAddr,
		Amount:           amount,
		LedgerBurnBlock:  ledgerBurnBlock,
	}); err != nil {
		e.state.ReleaseWithdrawalSlot(principal)
		return nil, fmt.Errorf("withdraw: record burned: %w", err)
	}
	e.publish(ctx, natspkg.WithdrawalBurned(burnID, principal, recipientSolAddr, amount))

	// From here on the burn is durably recorded, so a signer failure must
	// NOT release the slot (§7 category 5 / §4.G): releasing it would let a
	// second Withdraw call burn again for the same principal before this
	// one's coupon is ever produced. Recovery goes through GetCoupon
	// instead, which re-signs deterministically from the recorded burn.
	coupon, err := e.signAndRecordRedemption(ctx, burnID, principal, recipientSolAddr, amount)
	if err != nil {
		return nil, err
	}
	e.state.ReleaseWithdrawalSlot(principal)
	return coupon, nil
}

// GetCoupon returns the coupon for a previously-recorded burn, re-signing
// it if the process crashed between the burn and the redemption record.
// Resigning is safe: signing is deterministic, so the rebuilt coupon is
// byte-identical to whatever a first successful call would have produced.
// A principal mismatch always yields ErrUnauthorized, never ErrNotFound:
// leaking "this burn id doesn't exist" vs "it exists but isn't yours" to an
// unauthenticated caller would let them enumerate valid burn ids.
func (e *Engine) GetCoupon(ctx context.Context, principal string, burnID uint64) (*signer.Coupon, error) {
	var (
		redeemed     *bridgestate.WithdrawalEvent
		burnedButNot *bridgestate.WithdrawalEvent
	)
	e.state.Read(func(s *bridgestate.State) {
		if w, ok := s.WithdrawalRedeemedEvents[burnID]; ok {
			cp := w
			redeemed = &cp
			return
		}
		if w, ok := s.WithdrawalBurnedEvents[burnID]; ok {
			cp := w
			burnedButNot = &cp
		}
	})

	switch {
	case redeemed != nil:
		if redeemed.Principal != principal {
			return nil, bridgestate.ErrUnauthorized
		}
		if redeemed.Coupon == nil {
			coupon, err := e.signer.SignCoupon(ctx, burnID, redeemed.RecipientSolAddr, redeemed.Amount)
			if err != nil {
				return nil, fmt.Errorf("withdraw: sign coupon: %w", err)
			}
			return coupon, nil
		}
		return redeemed.Coupon, nil
	case burnedButNot != nil:
		if burnedButNot.Principal != principal {
			return nil, bridgestate.ErrUnauthorized
		}
		return e.signAndRecordRedemption(ctx, burnID, burnedButNot.Principal, burnedButNot.RecipientSolAddr, burnedButNot.Amount)
	default:
		return nil, bridgestate.ErrNotFound
	}
}

func (e *Engine) signAndRecordRedemption(ctx context.Context, burnID uint64, principal, recipientSolAddr string, amount uint64) (*signer.Coupon, error) {
	coupon, err := e.signer.SignCoupon(ctx, burnID, recipientSolAddr, amount)
	if err != nil {
		return nil, fmt.Errorf("withdraw: sign coupon: %w", err)
	}

	if _, err := e.state.RecordWithdrawalRedeemed(ctx, burnID, coupon); err != nil {
		return nil, fmt.Errorf("withdraw: record redeemed: %w", err)
	}
	e.publish(ctx, natspkg.WithdrawalRedeemed(burnID, principal, recipientSolAddr, amount))
	return coupon, nil
}
