package client

import (
	"crypto"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/famfo/acmed/acme/keys"
)

// staticNonceSource hands a single pre-acquired nonce to go-jose. Every
// RequestSigner.Sign call gets a fresh one so a signing operation consumes
// exactly the nonce it was given, never an eagerly fetched spare.
type staticNonceSource string

func (s staticNonceSource) Nonce() (string, error) {
	return string(s), nil
}

// RequestSigner binds everything about a signed ACME request that does not
// change across retries of the same logical request: the account key, the
// JWS Key ID, the target URL and the payload. Only the nonce is left to be
// supplied per Sign call, because the nonce is the one field that must
// differ on every attempt.
//
// A nil payload produces a POST-as-GET body (empty JWS payload). This is
// distinct from a payload of []byte("{}"), the empty JSON object used for
// challenge acceptance, and the two must not be conflated.
type RequestSigner struct {
	signer  crypto.Signer
	keyID   string
	url     string
	payload []byte
}

// NewRequestSigner creates a RequestSigner for the given key, target URL and
// payload. If keyID is empty the signer's public key is embedded in the JWS
// as a JWK instead of using a "kid" header; this is the form the newAccount
// endpoint requires. Every other endpoint uses the account URL as the Key
// ID.
func NewRequestSigner(signer crypto.Signer, keyID, url string, payload []byte) *RequestSigner {
	return &RequestSigner{
		signer:  signer,
		keyID:   keyID,
		url:     url,
		payload: payload,
	}
}

// signFor returns a RequestSigner bound to the client's account for the
// given URL and payload.
func (c *Client) signFor(url string, payload []byte) *RequestSigner {
	return NewRequestSigner(c.Account.Signer, c.Account.ID, url, payload)
}

// signEmpty returns a RequestSigner for a POST-as-GET fetch of the given
// URL.
func (c *Client) signEmpty(url string) *RequestSigner {
	return c.signFor(url, nil)
}

// Sign produces the serialized JWS request body using the given nonce. The
// nonce must be fresh: the server rejects any reuse.
func (rs *RequestSigner) Sign(nonce string) ([]byte, error) {
	if rs.signer == nil {
		return nil, fmt.Errorf("sign: no private key available for %q", rs.url)
	}

	opts := &jose.SignerOptions{
		NonceSource: staticNonceSource(nonce),
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": rs.url,
		},
	}

	var signingKey jose.SigningKey
	if rs.keyID == "" {
		opts.EmbedJWK = true
		signingKey = jose.SigningKey{
			Key:       rs.signer,
			Algorithm: keys.SigAlgForSigner(rs.signer),
		}
	} else {
		signingKey = keys.SigningKeyForSigner(rs.signer, rs.keyID)
	}

	signer, err := jose.NewSigner(signingKey, opts)
	if err != nil {
		return nil, fmt.Errorf("sign: %s", err)
	}

	signed, err := signer.Sign(rs.payload)
	if err != nil {
		return nil, fmt.Errorf("sign: %s", err)
	}

	return []byte(signed.FullSerialize()), nil
}
