// Package signer is the threshold-signing facade: it derives the bridge's
// ECDSA public key once and caches it, and turns a withdrawal's burn record
// into a signed coupon the recipient can redeem on Solana.
//
// KeyProvider abstracts the actual signing operation the same way the
// canister's management-canister ECDSA API sits behind lazy_call_ecdsa_public_key
// and the sign_with_ecdsa system call: callers never touch key material
// directly, only a provider that may be backed by a real MPC key custodian.
package signer

import (
	"context"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Coupon is the signed proof a withdrawal recipient presents to the Solana
// program to redeem a burned amount.
type Coupon struct {
	BurnID           uint64   `json:"burn_id"`
	RecipientSolAddr string   `json:"recipient_sol_addr"`
	Amount           uint64   `json:"amount"`
	MessageHash      [32]byte `json:"message_hash"`
	Signature        [64]byte `json:"signature"`
	SignerPublicKey  [33]byte `json:"signer_public_key"`
}

// couponDomainTag fixes the coupon message to this bridge's signing domain,
// so a signature can never be replayed against an unrelated keccak-256
// message of the same byte length.
var couponDomainTag = []byte("gsolbridge.coupon.v1")

// CouponMessage builds the byte sequence hashed and signed into a Coupon:
// domain_tag ‖ big_endian(burn_id, 8) ‖ recipient_sol_addr_bytes ‖
// big_endian(amount, 16). Keeping this as a standalone function lets Verify
// reconstruct the exact same hash a caller would derive independently.
func CouponMessage(burnID uint64, recipientSolAddr string, amount uint64) []byte {
	msg := make([]byte, 0, len(couponDomainTag)+8+len(recipientSolAddr)+16)
	msg = append(msg, couponDomainTag...)
	msg = appendUint64BE(msg, burnID)
	msg = append(msg, []byte(recipientSolAddr)...)
	msg = appendUint128BE(msg, amount)
	return msg
}

func appendUint64BE(dst []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}

// appendUint128BE appends amount as a 16-byte big-endian integer (the top 8
// bytes are always zero: amounts are carried as uint64 throughout the
// bridge, widened only at the wire boundary to match the coupon format).
func appendUint128BE(dst []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		dst = append(dst, 0)
	}
	return appendUint64BE(dst, v)
}

// Verify recomputes the coupon's message hash and checks the signature
// against SignerPublicKey. Returns false on any malformed field as well as
// on a bad signature.
func (c Coupon) Verify() bool {
	wantHash := sha3.NewLegacyKeccak256()
	wantHash.Write(CouponMessage(c.BurnID, c.RecipientSolAddr, c.Amount))
	var sum [32]byte
	copy(sum[:], wantHash.Sum(nil))
	if sum != c.MessageHash {
		return false
	}

	pubKey, err := secp256k1.ParsePubKey(c.SignerPublicKey[:])
	if err != nil {
		return false
	}

	sig := parseCompactLikeSignature(c.Signature)
	if sig == nil {
		return false
	}
	return sig.Verify(c.MessageHash[:], pubKey)
}

func parseCompactLikeSignature(raw [64]byte) *ecdsa.Signature {
	r := new(secp256k1.ModNScalar)
	s := new(secp256k1.ModNScalar)
	if overflow := r.SetByteSlice(raw[:32]); overflow {
		return nil
	}
	if overflow := s.SetByteSlice(raw[32:]); overflow {
		return nil
	}
	return ecdsa.NewSignature(r, s)
}

// KeyProvider is the out-of-scope external collaborator that actually holds
// (or brokers access to) the bridge's private key material. A real
// deployment backs this with whatever MPC/threshold custodian is available;
// LocalKeyProvider is a development/test stand-in.
type KeyProvider interface {
	// PublicKey returns the compressed (33-byte) secp256k1 public key
	// associated with keyName.
	PublicKey(ctx context.Context, keyName string) ([33]byte, error)

	// Sign returns a 64-byte compact (r||s) signature over hash, using the
	// key identified by keyName.
	Sign(ctx context.Context, keyName string, hash [32]byte) ([64]byte, error)
}

// LocalKeyProvider signs with an in-process secp256k1 private key. It
// exists so the bridge is runnable without a real threshold-ECDSA
// custodian; swapping in a production KeyProvider requires no change to
// Facade.
type LocalKeyProvider struct {
	mu   sync.Mutex
	keys map[string]*secp256k1.PrivateKey
}

// NewLocalKeyProvider returns a LocalKeyProvider with a single key
// registered under keyName.
func NewLocalKeyProvider(keyName string, priv *secp256k1.PrivateKey) *LocalKeyProvider {
	return &LocalKeyProvider{keys: map[string]*secp256k1.PrivateKey{keyName: priv}}
}

func (p *LocalKeyProvider) PublicKey(ctx context.Context, keyName string) ([33]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	priv, ok := p.keys[keyName]
	if !ok {
		return [33]byte{}, fmt.Errorf("signer: unknown key %q", keyName)
	}
	var out [33]byte
	copy(out[:], priv.PubKey().SerializeCompressed())
	return out, nil
}

func (p *LocalKeyProvider) Sign(ctx context.Context, keyName string, hash [32]byte) ([64]byte, error) {
	p.mu.Lock()
	priv, ok := p.keys[keyName]
	p.mu.Unlock()
	if !ok {
		return [64]byte{}, fmt.Errorf("signer: unknown key %q", keyName)
	}

	sig := ecdsa.Sign(priv, hash[:])
	var out [64]byte
	r := sig.R()
	s := sig.S()
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(out[:32], rBytes[:])
	copy(out[32:], sBytes[:])
	return out, nil
}

// Facade derives and caches the bridge's ECDSA public key and turns
// withdrawal burn records into signed coupons.
type Facade struct {
	provider KeyProvider
	keyName  string

	mu         sync.Mutex
	publicKey  *[33]byte
	proxyToken string
}

// NewFacade builds a Facade around provider, using keyName to identify the
// bridge's signing key.
func NewFacade(provider KeyProvider, keyName string) *Facade {
	return &Facade{provider: provider, keyName: keyName}
}

// PublicKey lazily fetches and caches the derived public key, mirroring
// lazy_call_ecdsa_public_key's memoize-on-State pattern.
func (f *Facade) PublicKey(ctx context.Context) ([33]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publicKey != nil {
		return *f.publicKey, nil
	}

	pk, err := f.provider.PublicKey(ctx, f.keyName)
	if err != nil {
		return [33]byte{}, fmt.Errorf("signer: derive public key: %w", err)
	}
	f.publicKey = &pk
	return pk, nil
}

// SetProxyToken records the proxy-authorization token used by
// soltransport's ProxyRoundTripper. Tokens expire and are refreshed
// out-of-band by whatever issues them; Facade only caches the current one.
func (f *Facade) SetProxyToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proxyToken = token
}

// ProxyToken returns the currently cached proxy-authorization token, or ""
// if none has been set yet.
func (f *Facade) ProxyToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proxyToken
}

// SignCoupon produces a Coupon for a withdrawal. Calling SignCoupon twice
// for the same (burnID, recipientSolAddr, amount) after a crash regenerates
// byte-identical message hashes and, because signing is deterministic
// (RFC6979 nonce derivation), byte-identical signatures: recovery never
// needs to persist the coupon itself, only the inputs that produced it.
func (f *Facade) SignCoupon(ctx context.Context, burnID uint64, recipientSolAddr string, amount uint64) (*Coupon, error) {
	pubKey, err := f.PublicKey(ctx)
	if err != nil {
		return nil, err
	}

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(CouponMessage(burnID, recipientSolAddr, amount))
	var msgHash [32]byte
	copy(msgHash[:], hasher.Sum(nil))

	sig, err := f.provider.Sign(ctx, f.keyName, msgHash)
	if err != nil {
		return nil, fmt.Errorf("signer: sign coupon for burn %d: %w", burnID, err)
	}

	return &Coupon{
		BurnID:           burnID,
		RecipientSolAddr: recipientSolAddr,
		Amount:           amount,
		MessageHash:      msgHash,
		Signature:        sig,
		SignerPublicKey:  pubKey,
	}, nil
}
