package client

import (
	"encoding/json"
	"testing"

	"go.akshayshah.org/attest"
)

func TestSignBindsNoncePerCall(t *testing.T) {
	t.Parallel()

	key := testSigner(t)
	rs := NewRequestSigner(key, "https://example.com/acct/1", "https://example.com/order", []byte(`{"status":"pending"}`))

	for _, nonce := range []string{"nonce-a", "nonce-b"} {
		body, err := rs.Sign(nonce)
		attest.Ok(t, err)

		prot, payload := decodeJWS(t, body)
		attest.Equal(t, prot.Nonce, nonce)
		attest.Equal(t, prot.URL, "https://example.com/order")
		attest.Equal(t, prot.Kid, "https://example.com/acct/1")
		attest.Zero(t, string(prot.Jwk))
		attest.Equal(t, string(payload), `{"status":"pending"}`)
	}
}

func TestSignEmbedsJWKWithoutKeyID(t *testing.T) {
	t.Parallel()

	key := testSigner(t)
	rs := NewRequestSigner(key, "", "https://example.com/new-account", []byte(`{}`))

	body, err := rs.Sign("nonce-1")
	attest.Ok(t, err)

	prot, _ := decodeJWS(t, body)
	attest.Zero(t, prot.Kid)
	attest.NotZero(t, string(prot.Jwk))

	var jwk struct {
		Kty string `json:"kty"`
	}
	attest.Ok(t, json.Unmarshal(prot.Jwk, &jwk))
	attest.Equal(t, jwk.Kty, "EC")
}

func TestSignDistinguishesEmptyPayloads(t *testing.T) {
	t.Parallel()

	key := testSigner(t)

	// A POST-as-GET body carries a truly empty payload.
	asGet, err := NewRequestSigner(key, "kid", "https://example.com/authz/1", nil).Sign("nonce-1")
	attest.Ok(t, err)

	var env jwsEnvelope
	attest.Ok(t, json.Unmarshal(asGet, &env))
	attest.Zero(t, env.Payload)

	// Challenge acceptance carries the empty JSON object instead.
	accept, err := NewRequestSigner(key, "kid", "https://example.com/chall/1", []byte(`{}`)).Sign("nonce-2")
	attest.Ok(t, err)

	attest.Ok(t, json.Unmarshal(accept, &env))
	attest.Equal(t, env.Payload, "e30")
}

func TestSignRequiresKey(t *testing.T) {
	t.Parallel()

	rs := NewRequestSigner(nil, "kid", "https://example.com/order", nil)
	_, err := rs.Sign("nonce-1")
	attest.Error(t, err)
}
