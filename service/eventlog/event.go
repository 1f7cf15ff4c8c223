// Package eventlog implements the append-only event log that backs
// bridgestate's in-memory state. Every state transition is recorded here
// before it takes effect, and the full state can be rebuilt from nothing but
// a replay of this log, the same way an Internet Computer canister rebuilds
// its heap from stable storage on post_upgrade.
package eventlog

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the shape of an Event's Payload.
type Kind string

const (
	KindDepositDiscovered        Kind = "deposit_discovered"
	KindDepositAccepted          Kind = "deposit_accepted"
	KindDepositMinted            Kind = "deposit_minted"
	KindDepositInvalid           Kind = "deposit_invalid"
	KindAcceptedDepositInvalid   Kind = "accepted_deposit_invalid"
	KindWithdrawalBurned         Kind = "withdrawal_burned"
	KindWithdrawalRedeemed       Kind = "withdrawal_redeemed"
	KindSignatureRangeSubdivided Kind = "signature_range_subdivided"
	KindSignatureRangeRetried    Kind = "signature_range_retried"
	KindSignatureRangeResolved   Kind = "signature_range_resolved"
	KindSignatureRangeExhausted  Kind = "signature_range_exhausted"
	KindWatermarkAdvanced        Kind = "watermark_advanced"
)

// Event is one row of the append-only log. Payload is kept as raw JSON so the
// log itself never needs to know about every payload shape; Decode unpacks it
// into the concrete struct matching Kind.
type Event struct {
	Seq        uint64          `json:"seq"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// NewEvent builds an Event ready to append, marshaling payload into the
// RawMessage field. Seq and RecordedAt are assigned by the Log on Append.
func NewEvent(kind Kind, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: marshal %s payload: %w", kind, err)
	}
	return Event{Kind: kind, Payload: raw}, nil
}

// Decode unmarshals e.Payload into dst. dst must be a pointer to the struct
// type associated with e.Kind.
func (e Event) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("eventlog: decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// DepositDiscoveredPayload records a signature first seen by discovery and
// parked as pending, before its transaction has been fetched. The engine
// fills in only Sig and Slot; the other fields stay empty.
type DepositDiscoveredPayload struct {
	Sig                string `json:"sig"`
	Slot               uint64 `json:"slot"`
	SenderSolAddr      string `json:"sender_sol_addr"`
	RecipientPrincipal string `json:"recipient_principal"`
	Amount             uint64 `json:"amount"`
	MemoBytes          []byte `json:"memo_bytes"`
}

// DepositAcceptedPayload records that a discovered deposit passed validation
// and was assigned a monotonic DepositID. It carries every field Minter
// later needs (sender, recipient, amount, memo) so replay reconstructs the
// exact same AcceptedEvents entry a live Engine would hold -- a deposit
// promoted to accepted just before a crash must still mint the right
// recipient for the right amount after restart.
type DepositAcceptedPayload struct {
	Sig                string `json:"sig"`
	Slot               uint64 `json:"slot"`
	SenderSolAddr      string `json:"sender_sol_addr"`
	RecipientPrincipal string `json:"recipient_principal"`
	Amount             uint64 `json:"amount"`
	MemoBytes          []byte `json:"memo_bytes"`
	DepositID          uint64 `json:"deposit_id"`
}

// DepositMintedPayload records a successful ledger mint for a deposit.
type DepositMintedPayload struct {
	DepositID       uint64 `json:"deposit_id"`
	LedgerMintBlock uint64 `json:"ledger_mint_block"`
}

// DepositInvalidPayload records that a discovered deposit was permanently
// rejected (bad memo, amount below minimum, unparsable instruction, etc).
type DepositInvalidPayload struct {
	Sig    string `json:"sig"`
	Reason string `json:"reason"`
}

// AcceptedDepositInvalidPayload records that an accepted deposit was
// permanently rejected after promotion (e.g. the destination ledger
// rejected the mint outright), the sideways accepted -> invalid transition
// §4.F calls for on a permanent ledger error.
type AcceptedDepositInvalidPayload struct {
	Sig    string `json:"sig"`
	Reason string `json:"reason"`
}

// WithdrawalBurnedPayload records a successful ledger burn that starts a
// withdrawal's lifecycle.
type WithdrawalBurnedPayload struct {
	BurnID           uint64 `json:"burn_id"`
	Principal        string `json:"principal"`
	RecipientSolAddr string `json:"recipient_sol_addr"`
	Amount           uint64 `json:"amount"`
	LedgerBurnBlock  uint64 `json:"ledger_burn_block"`
}

// WithdrawalRedeemedPayload records that a coupon for a withdrawal was
// produced (signed) and handed back to the caller.
type WithdrawalRedeemedPayload struct {
	BurnID      uint64 `json:"burn_id"`
	MessageHash []byte `json:"message_hash"`
	Signature   []byte `json:"signature"`
}

// SignatureRangeSubdividedPayload records a pending range. When
// ParentBefore/ParentUntil are set, that parent range is removed and replaced
// by the single narrower range NewBefore/NewUntil; when they are empty, the
// new range is simply added.
//
// WatermarkSignature/WatermarkSlot are set only when a brand-new range is
// recorded directly off a full-page discovery poll (never on a resolver
// subdivision of an already-pending range): they fold the watermark advance
// into the same event as the range record, so the two can never commit
// separately. §4.C requires them atomic -- a crash between two separate
// appends would leave the range recorded but the watermark stuck, and the
// next poll would re-discover the identical full page and collide on
// RecordSignatureRange's existing-key invariant forever.
type SignatureRangeSubdividedPayload struct {
	ParentBefore       string `json:"parent_before"`
	ParentUntil        string `json:"parent_until"`
	NewBefore          string `json:"new_before"`
	NewUntil           string `json:"new_until"`
	WatermarkSignature string `json:"watermark_signature,omitempty"`
	WatermarkSlot      uint64 `json:"watermark_slot,omitempty"`
}

// SignatureRangeRetriedPayload records a pending range's retry counter
// being bumped in place, with no change to its bounds.
type SignatureRangeRetriedPayload struct {
	Before string `json:"before"`
	Until  string `json:"until"`
}

// SignatureRangeResolvedPayload records that a pending range was fully
// walked and every signature in it was handed to the classifier.
type SignatureRangeResolvedPayload struct {
	Before     string   `json:"before"`
	Until      string   `json:"until"`
	Signatures []string `json:"signatures"`
}

// SignatureRangeExhaustedPayload records that a range was dropped after
// exceeding its retry budget. This is the liveness hazard: any deposits
// inside the range are permanently lost unless operator intervention
// resubmits the range out of band.
type SignatureRangeExhaustedPayload struct {
	Before string `json:"before"`
	Until  string `json:"until"`
	Retry  uint32 `json:"retry"`
}

// WatermarkAdvancedPayload records the discoverer moving its high-water mark
// forward to a newer signature.
type WatermarkAdvancedPayload struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
}

// TaskKind names one of the four periodic tasks that may hold the
// mutual-exclusion lock tracked by bridgestate's active-task set.
type TaskKind string

const (
	TaskGetLatestSignature  TaskKind = "get_latest_signature"
	TaskScrapSignatureRange TaskKind = "scrap_signature_range"
	TaskScrapSignatures     TaskKind = "scrap_signatures"
	TaskMintGSol            TaskKind = "mint_gsol"
)

// TryAcquireTask/ReleaseTask mutate bridgestate's ActiveTasks set directly
// via Engine.Read rather than through Engine.Mutate: task locks are a
// reentrancy guard, not durable state, and must reset to "unheld" on every
// process restart rather than replay back to whatever they were at crash
// time. There is deliberately no event kind for acquiring or releasing one.
