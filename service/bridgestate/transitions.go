package bridgestate

import (
	"context"
	"fmt"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/gsolbridge/gsolbridge/service/signer"
)

// applyEvent folds a single logged event into state during replay. It shares
// its mutation logic with the live Engine methods below so replay follows the
// same transitions a running Engine makes. The one field it does not rebuild
// is a redeemed withdrawal's Coupon, which the logged payload does not carry.
func applyEvent(s *State, ev eventlog.Event) error {
	switch ev.Kind {
	case eventlog.KindDepositDiscovered:
		var p eventlog.DepositDiscoveredPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applyDepositDiscovered(s, p)

	case eventlog.KindDepositAccepted:
		var p eventlog.DepositAcceptedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applyDepositAccepted(s, p)

	case eventlog.KindDepositMinted:
		var p eventlog.DepositMintedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applyDepositMinted(s, p)

	case eventlog.KindDepositInvalid:
		var p eventlog.DepositInvalidPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applyDepositInvalid(s, p)

	case eventlog.KindAcceptedDepositInvalid:
		var p eventlog.AcceptedDepositInvalidPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applyAcceptedDepositInvalid(s, p)

	case eventlog.KindWithdrawalBurned:
		var p eventlog.WithdrawalBurnedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applyWithdrawalBurned(s, p)

	case eventlog.KindWithdrawalRedeemed:
		var p eventlog.WithdrawalRedeemedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applyWithdrawalRedeemed(s, p)

	case eventlog.KindSignatureRangeSubdivided:
		var p eventlog.SignatureRangeSubdividedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applySignatureRangeSubdivided(s, p)

	case eventlog.KindSignatureRangeRetried:
		var p eventlog.SignatureRangeRetriedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applySignatureRangeRetried(s, p)

	case eventlog.KindSignatureRangeResolved:
		var p eventlog.SignatureRangeResolvedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applySignatureRangeResolved(s, p)

	case eventlog.KindSignatureRangeExhausted:
		var p eventlog.SignatureRangeExhaustedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applySignatureRangeExhausted(s, p)

	case eventlog.KindWatermarkAdvanced:
		var p eventlog.WatermarkAdvancedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		s.SolanaLastKnownSignature = p.Signature

	default:
		return fmt.Errorf("bridgestate: replay: unknown event kind %q", ev.Kind)
	}
	return nil
}

// RecordSignatureRange stores a brand-new pending range. Panics if a range
// with the same key is already recorded: a genuinely new range is by
// definition not yet tracked.
func (e *Engine) RecordSignatureRange(ctx context.Context, r SignatureRange) (eventlog.Event, error) {
	payload := eventlog.SignatureRangeSubdividedPayload{NewBefore: r.Before, NewUntil: r.Until}
	return e.Mutate(ctx, eventlog.KindSignatureRangeSubdivided, payload, func(s *State) {
		applySignatureRangeSubdivided(s, payload)
	})
}

// RecordSignatureRangeAndAdvanceWatermark records a brand-new pending range
// discovered off a full-page poll and advances the watermark past it in a
// single atomic event. §4.C requires the two to commit together: a crash
// between two separate appends would leave the range recorded with the
// watermark un-advanced, and the next poll would re-discover the identical
// full page and hit RecordSignatureRange's existing-key invariant on every
// cycle, forever. Folding them into one event removes that window.
func (e *Engine) RecordSignatureRangeAndAdvanceWatermark(ctx context.Context, r SignatureRange, watermarkSig string, watermarkSlot uint64) (eventlog.Event, error) {
	payload := eventlog.SignatureRangeSubdividedPayload{
		NewBefore:          r.Before,
		NewUntil:           r.Until,
		WatermarkSignature: watermarkSig,
		WatermarkSlot:      watermarkSlot,
	}
	return e.Mutate(ctx, eventlog.KindSignatureRangeSubdivided, payload, func(s *State) {
		applySignatureRangeSubdivided(s, payload)
	})
}

func applySignatureRangeSubdivided(s *State, p eventlog.SignatureRangeSubdividedPayload) {
	if p.ParentBefore != "" || p.ParentUntil != "" {
		oldKey := rangeKey(p.ParentBefore, p.ParentUntil)
		delete(s.SignatureRanges, oldKey)
	}
	newRange := SignatureRange{Before: p.NewBefore, Until: p.NewUntil}
	newKey := rangeKey(newRange.Before, newRange.Until)
	if _, exists := s.SignatureRanges[newKey]; exists {
		invariantViolation("attempted to record existing range: %s", newKey)
	}
	s.SignatureRanges[newKey] = newRange

	if p.WatermarkSignature != "" {
		s.SolanaLastKnownSignature = p.WatermarkSignature
	}
}

// RetrySignatureRange bumps a pending range's retry counter in place, or
// replaces it with a narrower subrange if resolution progress split it.
// Panics if oldRange was never recorded: a retry implies the range was
// already pending.
func (e *Engine) RetrySignatureRange(ctx context.Context, oldRange SignatureRange, newRange *SignatureRange) (eventlog.Event, error) {
	if newRange != nil {
		return e.Mutate(ctx, eventlog.KindSignatureRangeSubdivided, eventlog.SignatureRangeSubdividedPayload{
			ParentBefore: oldRange.Before,
			ParentUntil:  oldRange.Until,
			NewBefore:    newRange.Before,
			NewUntil:     newRange.Until,
		}, func(s *State) {
			applyRetrySignatureRangeRemove(s, oldRange)
			applySignatureRangeSubdivided(s, eventlog.SignatureRangeSubdividedPayload{
				NewBefore: newRange.Before,
				NewUntil:  newRange.Until,
			})
		})
	}

	return e.Mutate(ctx, eventlog.KindSignatureRangeRetried, eventlog.SignatureRangeRetriedPayload{
		Before: oldRange.Before,
		Until:  oldRange.Until,
	}, func(s *State) {
		applySignatureRangeRetried(s, eventlog.SignatureRangeRetriedPayload{Before: oldRange.Before, Until: oldRange.Until})
	})
}

func applyRetrySignatureRangeRemove(s *State, oldRange SignatureRange) {
	oldKey := rangeKey(oldRange.Before, oldRange.Until)
	if _, exists := s.SignatureRanges[oldKey]; !exists {
		invariantViolation("attempted to re-record NON existing range: %s", oldKey)
	}
	delete(s.SignatureRanges, oldKey)
}

func applySignatureRangeRetried(s *State, p eventlog.SignatureRangeRetriedPayload) {
	key := rangeKey(p.Before, p.Until)
	r, exists := s.SignatureRanges[key]
	if !exists {
		invariantViolation("attempted to re-record NON existing range: %s", key)
	}
	r.Retry++
	s.SignatureRanges[key] = r
}

// RemoveSignatureRange removes a fully resolved range from the pending set.
// Panics if the range was never recorded.
func (e *Engine) RemoveSignatureRange(ctx context.Context, r SignatureRange, signatures []string) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindSignatureRangeResolved, eventlog.SignatureRangeResolvedPayload{
		Before:     r.Before,
		Until:      r.Until,
		Signatures: signatures,
	}, func(s *State) {
		applySignatureRangeResolved(s, eventlog.SignatureRangeResolvedPayload{Before: r.Before, Until: r.Until})
	})
}

func applySignatureRangeResolved(s *State, p eventlog.SignatureRangeResolvedPayload) {
	key := rangeKey(p.Before, p.Until)
	if _, exists := s.SignatureRanges[key]; !exists {
		invariantViolation("attempted to remove NON existing range: %s", key)
	}
	delete(s.SignatureRanges, key)
}

// ExhaustSignatureRange drops a range after it exceeded its retry budget.
// This is the liveness hazard: any deposits inside the range are now
// unreachable unless an operator resubmits the range out of band.
func (e *Engine) ExhaustSignatureRange(ctx context.Context, r SignatureRange) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindSignatureRangeExhausted, eventlog.SignatureRangeExhaustedPayload{
		Before: r.Before,
		Until:  r.Until,
		Retry:  r.Retry,
	}, func(s *State) {
		applySignatureRangeExhausted(s, eventlog.SignatureRangeExhaustedPayload{Before: r.Before, Until: r.Until})
	})
}

func applySignatureRangeExhausted(s *State, p eventlog.SignatureRangeExhaustedPayload) {
	key := rangeKey(p.Before, p.Until)
	delete(s.SignatureRanges, key)
}

func applyDepositDiscovered(s *State, p eventlog.DepositDiscoveredPayload) {
	existing, retried := s.PendingSignatures[p.Sig]
	if retried {
		existing.Retry++
		s.PendingSignatures[p.Sig] = existing
		return
	}
	s.PendingSignatures[p.Sig] = PendingSignature{Sig: p.Sig, Slot: p.Slot}
}

// RecordOrRetryPendingSignature records a newly discovered signature, or
// bumps its retry counter if it was already pending.
func (e *Engine) RecordOrRetryPendingSignature(ctx context.Context, sig string, slot uint64) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindDepositDiscovered, eventlog.DepositDiscoveredPayload{
		Sig:  sig,
		Slot: slot,
	}, func(s *State) {
		applyDepositDiscovered(s, eventlog.DepositDiscoveredPayload{Sig: sig, Slot: slot})
	})
}

func applyDepositInvalid(s *State, p eventlog.DepositInvalidPayload) {
	existing, ok := s.PendingSignatures[p.Sig]
	if !ok {
		invariantViolation("attempted to remove NON existing solana signature %s", p.Sig)
	}
	delete(s.PendingSignatures, p.Sig)

	if _, exists := s.InvalidEvents[p.Sig]; exists {
		invariantViolation("attempted to record existing invalid event: %s", p.Sig)
	}
	existing.Retry = 0
	s.InvalidEvents[p.Sig] = existing
}

// RecordInvalidEvent moves a pending signature to InvalidEvents: the
// signature could not be classified into a valid deposit and will not be
// retried further.
func (e *Engine) RecordInvalidEvent(ctx context.Context, sig, reason string) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindDepositInvalid, eventlog.DepositInvalidPayload{
		Sig:    sig,
		Reason: reason,
	}, func(s *State) {
		applyDepositInvalid(s, eventlog.DepositInvalidPayload{Sig: sig, Reason: reason})
	})
}

func applyAcceptedDepositInvalid(s *State, p eventlog.AcceptedDepositInvalidPayload) {
	existing, ok := s.AcceptedEvents[p.Sig]
	if !ok {
		invariantViolation("attempted to remove NON existing accepted event: %s", p.Sig)
	}
	delete(s.AcceptedEvents, p.Sig)

	if _, exists := s.InvalidEvents[p.Sig]; exists {
		invariantViolation("attempted to record existing invalid event: %s", p.Sig)
	}
	existing.Retry = 0
	s.InvalidEvents[p.Sig] = PendingSignature{Sig: existing.Sig, Slot: existing.Slot}
}

// RecordAcceptedDepositInvalid moves an accepted deposit sideways into
// InvalidEvents after the destination ledger permanently rejects its mint
// (§4.F: "permanent ledger error -> record as invalid with
// reason=ledger_rejected"). Unlike RecordInvalidEvent, the deposit is
// removed from AcceptedEvents rather than PendingSignatures: it already
// passed discovery and classification, so this is the sideways terminal
// transition taken after promotion, not before it.
func (e *Engine) RecordAcceptedDepositInvalid(ctx context.Context, sig, reason string) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindAcceptedDepositInvalid, eventlog.AcceptedDepositInvalidPayload{
		Sig:    sig,
		Reason: reason,
	}, func(s *State) {
		applyAcceptedDepositInvalid(s, eventlog.AcceptedDepositInvalidPayload{Sig: sig, Reason: reason})
	})
}

func applyDepositAccepted(s *State, p eventlog.DepositAcceptedPayload) {
	if existing, retried := s.AcceptedEvents[p.Sig]; retried {
		existing.Retry++
		s.AcceptedEvents[p.Sig] = existing
		return
	}

	if _, ok := s.PendingSignatures[p.Sig]; !ok {
		invariantViolation("attempted to remove NON existing solana signature %s", p.Sig)
	}
	delete(s.PendingSignatures, p.Sig)

	s.AcceptedEvents[p.Sig] = DepositEvent{
		Sig:                p.Sig,
		Slot:               p.Slot,
		SenderSolAddr:      p.SenderSolAddr,
		RecipientPrincipal: p.RecipientPrincipal,
		Amount:             p.Amount,
		DepositID:          p.DepositID,
		MemoBytes:          p.MemoBytes,
	}
}

// RecordOrRetryAcceptedDeposit transitions a pending signature into an
// accepted deposit, or bumps the retry counter if it's already accepted.
func (e *Engine) RecordOrRetryAcceptedDeposit(ctx context.Context, deposit DepositEvent) (eventlog.Event, error) {
	payload := eventlog.DepositAcceptedPayload{
		Sig:                deposit.Sig,
		Slot:               deposit.Slot,
		SenderSolAddr:      deposit.SenderSolAddr,
		RecipientPrincipal: deposit.RecipientPrincipal,
		Amount:             deposit.Amount,
		MemoBytes:          deposit.MemoBytes,
		DepositID:          deposit.DepositID,
	}
	return e.Mutate(ctx, eventlog.KindDepositAccepted, payload, func(s *State) {
		applyDepositAccepted(s, payload)
	})
}

func applyDepositMinted(s *State, p eventlog.DepositMintedPayload) {
	var found DepositEvent
	var sig string
	for k, v := range s.AcceptedEvents {
		if v.DepositID == p.DepositID {
			found = v
			sig = k
			break
		}
	}
	if sig == "" {
		invariantViolation("attempted to remove NON existing accepted event for deposit %d", p.DepositID)
	}
	delete(s.AcceptedEvents, sig)

	if _, exists := s.MintedEvents[sig]; exists {
		invariantViolation("attempted to record existing minted event: %s", sig)
	}
	found.Retry = 0
	found.LedgerMintBlock = p.LedgerMintBlock
	s.MintedEvents[sig] = found
}

// RecordMintedDeposit moves an accepted deposit into MintedEvents after a
// successful ledger mint call. Panics if the deposit was never accepted.
func (e *Engine) RecordMintedDeposit(ctx context.Context, depositID uint64, ledgerMintBlock uint64) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindDepositMinted, eventlog.DepositMintedPayload{
		DepositID:       depositID,
		LedgerMintBlock: ledgerMintBlock,
	}, func(s *State) {
		applyDepositMinted(s, eventlog.DepositMintedPayload{DepositID: depositID, LedgerMintBlock: ledgerMintBlock})
	})
}

func applyWithdrawalBurned(s *State, p eventlog.WithdrawalBurnedPayload) {
	if existing, retried := s.WithdrawalBurnedEvents[p.BurnID]; retried {
		existing.Retry++
		s.WithdrawalBurnedEvents[p.BurnID] = existing
		return
	}
	s.WithdrawalBurnedEvents[p.BurnID] = WithdrawalEvent{
		BurnID:           p.BurnID,
		Principal:        p.Principal,
		RecipientSolAddr: p.RecipientSolAddr,
		Amount:           p.Amount,
		LedgerBurnBlock:  p.LedgerBurnBlock,
	}
}

// RecordOrRetryWithdrawalBurned records a successful ledger burn, or bumps
// the retry counter if this burn ID is already recorded (a crash-recovery
// retry of the same withdrawal call).
func (e *Engine) RecordOrRetryWithdrawalBurned(ctx context.Context, w WithdrawalEvent) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindWithdrawalBurned, eventlog.WithdrawalBurnedPayload{
		BurnID:           w.BurnID,
		Principal:        w.Principal,
		RecipientSolAddr: w.RecipientSolAddr,
		Amount:           w.Amount,
		LedgerBurnBlock:  w.LedgerBurnBlock,
	}, func(s *State) {
		applyWithdrawalBurned(s, eventlog.WithdrawalBurnedPayload{
			BurnID:           w.BurnID,
			Principal:        w.Principal,
			RecipientSolAddr: w.RecipientSolAddr,
			Amount:           w.Amount,
			LedgerBurnBlock:  w.LedgerBurnBlock,
		})
	})
}

func applyWithdrawalRedeemed(s *State, p eventlog.WithdrawalRedeemedPayload) {
	existing, ok := s.WithdrawalBurnedEvents[p.BurnID]
	if !ok {
		invariantViolation("attempted to remove NON existing withdrawal burned event %d", p.BurnID)
	}
	delete(s.WithdrawalBurnedEvents, p.BurnID)
	existing.Retry = 0
	s.WithdrawalRedeemedEvents[p.BurnID] = existing
}

// RecordWithdrawalRedeemed moves a burned withdrawal into
// WithdrawalRedeemedEvents once a coupon has been signed for it. The coupon
// is attached to the in-memory entry only: the logged event carries just the
// message hash and signature, so an entry rebuilt by Restore has a nil
// Coupon and GetCoupon re-signs it. Panics if the withdrawal was never burned.
func (e *Engine) RecordWithdrawalRedeemed(ctx context.Context, burnID uint64, coupon *signer.Coupon) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindWithdrawalRedeemed, eventlog.WithdrawalRedeemedPayload{
		BurnID:      burnID,
		MessageHash: coupon.MessageHash[:],
		Signature:   coupon.Signature[:],
	}, func(s *State) {
		applyWithdrawalRedeemed(s, eventlog.WithdrawalRedeemedPayload{BurnID: burnID})
		w := s.WithdrawalRedeemedEvents[burnID]
		w.Coupon = coupon
		s.WithdrawalRedeemedEvents[burnID] = w
	})
}

// TryAcquireWithdrawalSlot marks principal as having a withdrawal in
// flight. Returns ErrAlreadyProcessing if one is already in flight; the
// caller must treat that as a request to retry later, not an error to
// surface to the end user as a failure.
func (e *Engine) TryAcquireWithdrawalSlot(ctx context.Context, principal string) error {
	return e.ReadErr(func(s *State) error {
		if _, busy := s.WithdrawingPrincipals[principal]; busy {
			return ErrAlreadyProcessing
		}
		s.WithdrawingPrincipals[principal] = struct{}{}
		return nil
	})
}

// ReleaseWithdrawalSlot clears principal's in-flight withdrawal marker.
func (e *Engine) ReleaseWithdrawalSlot(principal string) {
	e.Read(func(s *State) {
		delete(s.WithdrawingPrincipals, principal)
	})
}

// TryAcquireTask marks task as currently running. Returns false if it is
// already running, mirroring the active_tasks HashSet used to prevent
// concurrent execution of the same periodic task.
func (e *Engine) TryAcquireTask(ctx context.Context, task eventlog.TaskKind) bool {
	acquired := false
	e.Read(func(s *State) {
		if s.ActiveTasks[task] {
			return
		}
		s.ActiveTasks[task] = true
		acquired = true
	})
	return acquired
}

// ReleaseTask clears task's active marker.
func (e *Engine) ReleaseTask(task eventlog.TaskKind) {
	e.Read(func(s *State) {
		delete(s.ActiveTasks, task)
	})
}

// NextDepositID returns the next monotonic deposit id and advances the
// counter. Wraparound on overflow is native Go unsigned-integer behavior
// and needs no special handling, the same as the canister's wrapping_add:
// the counter is used only to build a unique mint memo, never as a
// capacity-bounded resource.
func (e *Engine) NextDepositID() uint64 {
	var id uint64
	e.Read(func(s *State) {
		id = s.DepositIDCounter
		s.DepositIDCounter++
	})
	return id
}

// NextBurnID returns the next monotonic burn id and advances the counter.
func (e *Engine) NextBurnID() uint64 {
	var id uint64
	e.Read(func(s *State) {
		id = s.BurnIDCounter
		s.BurnIDCounter++
	})
	return id
}

// NextRequestID returns the next monotonic HTTP outcall request id, used
// only to correlate requests and responses in logs.
func (e *Engine) NextRequestID() uint64 {
	var id uint64
	e.Read(func(s *State) {
		id = s.HTTPRequestCounter
		s.HTTPRequestCounter++
	})
	return id
}

// AdvanceWatermark records a new Solana high-water mark.
func (e *Engine) AdvanceWatermark(ctx context.Context, signature string, slot uint64) (eventlog.Event, error) {
	return e.Mutate(ctx, eventlog.KindWatermarkAdvanced, eventlog.WatermarkAdvancedPayload{
		Signature: signature,
		Slot:      slot,
	}, func(s *State) {
		s.SolanaLastKnownSignature = signature
	})
}
