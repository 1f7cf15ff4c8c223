// Package bridgestate holds the bridge's in-memory aggregate state and the
// Engine that guards every mutation to it. Engine.Mutate is the single choke
// point through which all state transitions pass: it appends the
// transition's event to the log first, then applies it to State, the same
// order an Internet Computer canister's stable-memory write precedes its
// heap update.
package bridgestate

import (
	"fmt"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/gsolbridge/gsolbridge/service/signer"
)

// Config is the set of fields supplied at init/upgrade time and revalidated
// by Validate.
type Config struct {
	SolanaRPCURL            string
	SolanaContractAddress   string
	SolanaInitialSignature  string
	EcdsaKeyName            string
	MinimumWithdrawalAmount uint64

	// DeferWatermarkUntilRangesResolved resolves the watermark-advancement
	// Open Question: when true, a full page of signatures is parked as a
	// pending range without moving the watermark past it. Nothing advances
	// the watermark when that range later resolves; it moves again only when
	// a later poll returns a short page.
	DeferWatermarkUntilRangesResolved bool
}

// Validate mirrors validate_config: every field must be non-blank and the
// minimum withdrawal amount must be positive.
func (c Config) Validate() error {
	if blank(c.SolanaRPCURL) {
		return fmt.Errorf("solana_rpc_url cannot be empty")
	}
	if blank(c.EcdsaKeyName) {
		return fmt.Errorf("ecdsa_key_name cannot be blank")
	}
	if blank(c.SolanaContractAddress) {
		return fmt.Errorf("solana_contract_address cannot be empty")
	}
	if blank(c.SolanaInitialSignature) {
		return fmt.Errorf("solana_initial_signature cannot be empty")
	}
	if c.MinimumWithdrawalAmount == 0 {
		return fmt.Errorf("minimum_withdrawal_amount must be positive")
	}
	return nil
}

func blank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return false
		}
	}
	return true
}

// SignatureRange is a half-open window of Solana signature history
// ([Until, Before)) not yet fully walked by the range resolver.
type SignatureRange struct {
	Before string
	Until  string
	Retry  uint32
}

// PendingSignature is a signature discovered within a resolved range, queued
// for transaction fetch and classification.
type PendingSignature struct {
	Sig   string
	Slot  uint64
	Retry uint32
}

// DepositEvent tracks one deposit's lifecycle fields as they accumulate
// across discovered -> accepted -> minted.
type DepositEvent struct {
	Sig                string
	Slot               uint64
	SenderSolAddr      string
	RecipientPrincipal string
	Amount             uint64
	DepositID          uint64
	MemoBytes          []byte
	LedgerMintBlock    uint64
	Retry              uint32
}

// WithdrawalEvent tracks one withdrawal's lifecycle fields as they
// accumulate across burned -> redeemed.
type WithdrawalEvent struct {
	BurnID           uint64
	Principal        string
	RecipientSolAddr string
	Amount           uint64
	LedgerBurnBlock  uint64
	Coupon           *signer.Coupon
	Retry            uint32
}

// State is the full in-memory aggregate, reconstructed from nothing but an
// eventlog.Log replay.
type State struct {
	Config

	EcdsaPublicKey      []byte
	EcdsaProxyPublicKey string

	SolanaLastKnownSignature string

	SignatureRanges    map[string]SignatureRange
	PendingSignatures  map[string]PendingSignature
	InvalidEvents      map[string]PendingSignature
	AcceptedEvents     map[string]DepositEvent
	MintedEvents       map[string]DepositEvent

	WithdrawalBurnedEvents   map[uint64]WithdrawalEvent
	WithdrawalRedeemedEvents map[uint64]WithdrawalEvent
	WithdrawingPrincipals    map[string]struct{}

	DepositIDCounter   uint64
	BurnIDCounter      uint64
	HTTPRequestCounter uint64

	ActiveTasks map[eventlog.TaskKind]bool
}

// NewState returns a zero-valued State with every map initialized, ready for
// either live use or event replay.
func NewState(cfg Config) *State {
	return &State{
		Config:                   cfg,
		SignatureRanges:          make(map[string]SignatureRange),
		PendingSignatures:        make(map[string]PendingSignature),
		InvalidEvents:            make(map[string]PendingSignature),
		AcceptedEvents:           make(map[string]DepositEvent),
		MintedEvents:             make(map[string]DepositEvent),
		WithdrawalBurnedEvents:   make(map[uint64]WithdrawalEvent),
		WithdrawalRedeemedEvents: make(map[uint64]WithdrawalEvent),
		WithdrawingPrincipals:    make(map[string]struct{}),
		ActiveTasks:              make(map[eventlog.TaskKind]bool),
	}
}

// GetSolanaLastKnownSignature returns the watermark, falling back to the
// configured initial signature before any progress has been recorded.
func (s *State) GetSolanaLastKnownSignature() string {
	if s.SolanaLastKnownSignature == "" {
		return s.SolanaInitialSignature
	}
	return s.SolanaLastKnownSignature
}

// rangeKey mirrors range_key: the composite key under which a
// SignatureRange is stored in SignatureRanges.
func rangeKey(before, until string) string {
	return before + "-" + until
}
