// Package soltransport implements the HTTP transport wrapper installed
// under the Solana RPC client: it injects the Host, Content-Type,
// idempotency-key, and proxy-authorization headers the bridge's proxy
// endpoint requires on every outbound call.
package soltransport

import (
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gsolbridge/gsolbridge/service/signer"
	"golang.org/x/crypto/sha3"
)

// ProxyRoundTripper wraps an underlying http.RoundTripper (normally
// http.DefaultTransport) and is installed into the rpc.Client's
// *http.Client, the same place the teacher installs its endpoint-labeled,
// metrics-wrapped transport in service/solana/client.go.
type ProxyRoundTripper struct {
	next   http.RoundTripper
	facade *signer.Facade
	host   string

	mu      sync.Mutex
	chainID [32]byte
}

// NewProxyRoundTripper builds a ProxyRoundTripper. next may be nil, in
// which case http.DefaultTransport is used. host is the Host header value
// the upstream proxy expects (it may differ from the URL's own host when
// the RPC endpoint sits behind a routing proxy).
func NewProxyRoundTripper(next http.RoundTripper, facade *signer.Facade, host string) *ProxyRoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &ProxyRoundTripper{next: next, facade: facade, host: host}
}

// RoundTrip injects the bridge's proxy headers and delegates to next. The
// request is cloned before mutation so callers retrying the same *http.Request
// value never see headers bleed across attempts.
func (t *ProxyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())

	if t.host != "" {
		out.Host = t.host
	}
	if out.Header.Get("Content-Type") == "" {
		out.Header.Set("Content-Type", "application/json")
	}
	out.Header.Set("idempotency-key", t.nextIdempotencyKey())
	out.Header.Set("proxy-authorization", t.facade.ProxyToken())

	return t.next.RoundTrip(out)
}

// nextIdempotencyKey rolls the chain_id forward as H(prev || now) and
// derives this call's idempotency-key as base64url(H(chain_id || now)).
// Rolling the chain value forward on every call, rather than deriving the
// key from the request body, means two calls with byte-identical bodies
// (a legitimate retry included) never collide on the proxy's own dedup
// window.
func (t *ProxyRoundTripper) nextIdempotencyKey() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := nowBytes()

	rolled := sha3.NewLegacyKeccak256()
	rolled.Write(t.chainID[:])
	rolled.Write(now)
	copy(t.chainID[:], rolled.Sum(nil))

	key := sha3.NewLegacyKeccak256()
	key.Write(t.chainID[:])
	key.Write(now)

	return base64.URLEncoding.EncodeToString(key.Sum(nil))
}

func nowBytes() []byte {
	now := time.Now().UnixNano()
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(now)
		now >>= 8
	}
	return b
}
