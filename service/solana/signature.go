package solana

import "github.com/gagliardetto/solana-go"

// parseSignature parses a base58 signature string, returning ok=false
// instead of an error for callers (the watermark/range resolver) that
// treat an unparseable signature as "not set" rather than a hard failure -
// this matters for the configured initial watermark, which in tests and
// early deployments may be a placeholder rather than a real signature.
func parseSignature(s string) (solana.Signature, bool) {
	if s == "" {
		return solana.Signature{}, false
	}
	sig, err := solana.SignatureFromBase58(s)
	if err != nil {
		return solana.Signature{}, false
	}
	return sig, true
}
