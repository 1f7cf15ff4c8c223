// Package memo encodes and decodes the CBOR payload a depositor embeds in a
// Solana Memo Program instruction to tell the bridge which principal should
// receive the minted gSOL.
package memo

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Deposit is the CBOR-encoded body of a deposit memo.
type Deposit struct {
	RecipientPrincipal string `cbor:"recipient_principal"`
	Amount             uint64 `cbor:"amount"`
}

var encMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("memo: build canonical encode mode: %v", err))
	}
	return mode
}()

// Encode serializes d into its canonical CBOR form, suitable for embedding
// in a Memo Program instruction's data field.
func Encode(d Deposit) ([]byte, error) {
	b, err := encMode.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("memo: encode deposit: %w", err)
	}
	return b, nil
}

// EncodeID builds the 32-byte memo the minter and withdrawal engine attach
// to ledger calls so a retried call with the same id is recognized as a
// duplicate rather than double-spent. The id occupies the low 8 bytes,
// big-endian, left-padded with zeros; this is deliberately simpler than a
// CBOR envelope since the ledger only needs the bytes to be stable and
// unique per id, not self-describing.
func EncodeID(id uint64) [32]byte {
	var memo [32]byte
	for i := 0; i < 8; i++ {
		memo[31-i] = byte(id >> (8 * uint(i)))
	}
	return memo
}

// DecodeDeposit parses raw memo bytes into a Deposit. It returns an error
// for anything that isn't well-formed CBOR matching the Deposit shape;
// callers treat a decode failure as grounds to mark the deposit invalid
// rather than retry, since the bytes will never parse differently.
func DecodeDeposit(raw []byte) (Deposit, error) {
	var d Deposit
	dec := cbor.DecOptions{
		MaxArrayElements: 1024,
		MaxMapPairs:      64,
	}
	mode, err := dec.DecMode()
	if err != nil {
		return Deposit{}, fmt.Errorf("memo: build decode mode: %w", err)
	}
	if err := mode.Unmarshal(raw, &d); err != nil {
		return Deposit{}, fmt.Errorf("memo: decode deposit: %w", err)
	}
	if d.RecipientPrincipal == "" {
		return Deposit{}, fmt.Errorf("memo: missing recipient_principal")
	}
	return d, nil
}
