package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/famfo/acmed/acme"
	"github.com/famfo/acmed/acme/resources"
)

// AccountBinder resolves the ACME account an issuance run authenticates as.
// Bind receives the current live nonce, performs however many signed
// exchanges it needs, and returns the bound account along with the next live
// nonce.
type AccountBinder interface {
	Bind(c *Client, nonce string) (*resources.Account, string, error)
}

// Registrar is the default AccountBinder. It POSTs a newAccount request
// signed with an embedded JWK; ACME servers return the existing account for
// a known key, so registration doubles as lookup.
//
// Important: Registrar always unconditionally agrees to the server's terms
// of service (it sends "termsOfServiceAgreed": true in every account
// request).
//
// For more information on account creation see
// https://tools.ietf.org/html/rfc8555#section-7.3
type Registrar struct{}

func (Registrar) Bind(c *Client, nonce string) (*resources.Account, string, error) {
	if c.accountSigner == nil {
		return nil, nonce, fmt.Errorf("bind: no account private key configured")
	}
	if c.Directory == nil || c.Directory.NewAccount == "" {
		return nil, nonce, fmt.Errorf(
			"bind: ACME server directory is missing the %q endpoint",
			acme.NEW_ACCOUNT_ENDPOINT)
	}

	newAcctReq := struct {
		Contact   []string `json:"contact,omitempty"`
		ToSAgreed bool     `json:"termsOfServiceAgreed"`
	}{
		Contact:   c.contact,
		ToSAgreed: true,
	}

	reqBody, err := json.Marshal(&newAcctReq)
	if err != nil {
		return nil, nonce, err
	}

	// The account does not exist server-side yet, so the JWS embeds the
	// public key instead of carrying a Key ID.
	rs := NewRequestSigner(c.accountSigner, "", c.Directory.NewAccount, reqBody)

	resp, next, err := c.postSigned(c.Directory.NewAccount, rs, nonce)
	if err != nil {
		return nil, next, fmt.Errorf("bind: %s", err)
	}

	respOb := resp.Response
	if respOb.StatusCode != http.StatusCreated && respOb.StatusCode != http.StatusOK {
		return nil, next, fmt.Errorf("bind: server returned status code %d, expected %d",
			respOb.StatusCode, http.StatusCreated)
	}

	locHeader := respOb.Header.Get("Location")
	if locHeader == "" {
		return nil, next, fmt.Errorf("bind: server returned response with no Location header")
	}

	// The Location header is the account URL, used as the JWS "kid" for the
	// rest of the run.
	return &resources.Account{
		ID:      locHeader,
		Contact: c.contact,
		Signer:  c.accountSigner,
	}, next, nil
}
