package soltransport

import (
	"net/http"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/gsolbridge/gsolbridge/service/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRoundTripper struct {
	requests []*http.Request
}

func (r *recordingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	r.requests = append(r.requests, req)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func newTestFacade(t *testing.T) *signer.Facade {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	provider := signer.NewLocalKeyProvider("test_key", priv)
	f := signer.NewFacade(provider, "test_key")
	f.SetProxyToken("proxy-token-abc")
	return f
}

func TestProxyRoundTripper_InjectsHeaders(t *testing.T) {
	rec := &recordingRoundTripper{}
	facade := newTestFacade(t)
	rt := NewProxyRoundTripper(rec, facade, "proxy.example.com")

	req, err := http.NewRequest(http.MethodPost, "https://rpc.example.com/", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	require.Len(t, rec.requests, 1)

	got := rec.requests[0]
	assert.Equal(t, "proxy.example.com", got.Host)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "proxy-token-abc", got.Header.Get("proxy-authorization"))
	assert.NotEmpty(t, got.Header.Get("idempotency-key"))
}

func TestProxyRoundTripper_PreservesExplicitContentType(t *testing.T) {
	rec := &recordingRoundTripper{}
	facade := newTestFacade(t)
	rt := NewProxyRoundTripper(rec, facade, "")

	req, err := http.NewRequest(http.MethodPost, "https://rpc.example.com/", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/custom")

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "application/custom", rec.requests[0].Header.Get("Content-Type"))
}

func TestProxyRoundTripper_IdempotencyKeyRollsForward(t *testing.T) {
	rec := &recordingRoundTripper{}
	facade := newTestFacade(t)
	rt := NewProxyRoundTripper(rec, facade, "")

	req, err := http.NewRequest(http.MethodPost, "https://rpc.example.com/", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)

	require.Len(t, rec.requests, 2)
	first := rec.requests[0].Header.Get("idempotency-key")
	second := rec.requests[1].Header.Get("idempotency-key")
	assert.NotEqual(t, first, second)
}

func TestProxyRoundTripper_DefaultsToHTTPDefaultTransport(t *testing.T) {
	facade := newTestFacade(t)
	rt := NewProxyRoundTripper(nil, facade, "")
	assert.Equal(t, http.DefaultTransport, rt.next)
}
