package nats

import "time"

// EventKind identifies which lifecycle transition a BridgeEvent reports.
// These mirror the subset of service/eventlog's closed event set that
// external subscribers care about (discovery through redemption);
// signature-range bookkeeping and task-lock acquire/release are internal
// only and are never published.
type EventKind string

const (
	EventDepositDiscovered  EventKind = "deposit.discovered"
	EventDepositInvalid     EventKind = "deposit.invalid"
	EventDepositAccepted    EventKind = "deposit.accepted"
	EventDepositMinted      EventKind = "deposit.minted"
	EventWithdrawalBurned   EventKind = "withdrawal.burned"
	EventWithdrawalRedeemed EventKind = "withdrawal.redeemed"
)

// BridgeEvent is published to the subject "bridge.{kind}" for every
// lifecycle transition the minter/withdrawal engine records, so an
// external subscriber (the off-chain relayer, a dashboard) can follow
// deposit and withdrawal progress without polling state directly.
type BridgeEvent struct {
	Kind EventKind `json:"kind"`

	// Deposit fields, populated for EventDeposit*.
	Signature          string `json:"signature,omitempty"`
	DepositID          uint64 `json:"deposit_id,omitempty"`
	RecipientPrincipal string `json:"recipient_principal,omitempty"`
	Reason             string `json:"reason,omitempty"` // populated for EventDepositInvalid

	// Withdrawal fields, populated for EventWithdrawal*.
	BurnID           uint64 `json:"burn_id,omitempty"`
	Principal        string `json:"principal,omitempty"`
	RecipientSolAddr string `json:"recipient_sol_addr,omitempty"`

	// Amount is denominated in the smallest unit of gSOL.
	Amount uint64 `json:"amount,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// DepositDiscovered builds a deposit.discovered event for a signature first
// recorded as pending (not yet fetched or classified). No component in this
// repository calls it: discovery publishes nothing.
func DepositDiscovered(sig string) *BridgeEvent {
	return &BridgeEvent{Kind: EventDepositDiscovered, Signature: sig, PublishedAt: time.Now().UTC()}
}

// DepositInvalid builds the event published when a pending signature is
// classified invalid (bad signature, unparsable or failed transaction,
// missing or bad memo, zero amount). A signature whose transaction cannot be
// fetched only has its retry count bumped; it is never classified invalid
// for that.
func DepositInvalid(sig, reason string) *BridgeEvent {
	return &BridgeEvent{Kind: EventDepositInvalid, Signature: sig, Reason: reason, PublishedAt: time.Now().UTC()}
}

// DepositAccepted builds the event published when a deposit is parsed and
// promoted to accepted, awaiting a mint.
func DepositAccepted(sig string, depositID uint64, recipient string, amount uint64) *BridgeEvent {
	return &BridgeEvent{
		Kind: EventDepositAccepted, Signature: sig, DepositID: depositID,
		RecipientPrincipal: recipient, Amount: amount, PublishedAt: time.Now().UTC(),
	}
}

// DepositMinted builds the event published when the destination ledger
// mint succeeds and the deposit is promoted to minted.
func DepositMinted(sig string, depositID uint64, recipient string, amount uint64) *BridgeEvent {
	return &BridgeEvent{
		Kind: EventDepositMinted, Signature: sig, DepositID: depositID,
		RecipientPrincipal: recipient, Amount: amount, PublishedAt: time.Now().UTC(),
	}
}

// WithdrawalBurned builds the event published when a ledger burn succeeds
// and the withdrawal is recorded, ahead of coupon signing.
func WithdrawalBurned(burnID uint64, principal, recipientSolAddr string, amount uint64) *BridgeEvent {
	return &BridgeEvent{
		Kind: EventWithdrawalBurned, BurnID: burnID, Principal: principal,
		RecipientSolAddr: recipientSolAddr, Amount: amount, PublishedAt: time.Now().UTC(),
	}
}

// WithdrawalRedeemed builds the event published when a coupon is signed
// and the withdrawal is promoted to redeemed.
func WithdrawalRedeemed(burnID uint64, principal, recipientSolAddr string, amount uint64) *BridgeEvent {
	return &BridgeEvent{
		Kind: EventWithdrawalRedeemed, BurnID: burnID, Principal: principal,
		RecipientSolAddr: recipientSolAddr, Amount: amount, PublishedAt: time.Now().UTC(),
	}
}
