package solana

import (
	"time"
)

// Transaction is a parsed Solana transaction landing at the bridge's
// deposit contract address. This is our domain model, independent of the
// RPC response format.
type Transaction struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	Amount      uint64
	TokenMint   *string // nil for native SOL transfers
	FromAddress *string // sender wallet, when the instruction layout exposes it
	Memo        *string // Memo Program instruction data, base64-decoded when it decodes cleanly; nil if absent
	Err         *string // nil if the transaction succeeded
}
