package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/famfo/acmed/acme"
	acmenet "github.com/famfo/acmed/net"
)

// firstNonce fetches the initial nonce of a run from the ACME server's
// newNonce endpoint with a HEAD request.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (c *Client) firstNonce() (string, error) {
	if c.Directory == nil || c.Directory.NewNonce == "" {
		return "", fmt.Errorf(
			"missing %q entry in ACME server directory", acme.NEW_NONCE_ENDPOINT)
	}

	resp, err := c.net.HeadURL(c.Directory.NewNonce)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return "", fmt.Errorf("%q returned HTTP status %d, expected %d",
			acme.NEW_NONCE_ENDPOINT, resp.StatusCode, http.StatusOK)
	}

	nonce := resp.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return "", fmt.Errorf("%q returned no %q header value",
			acme.NEW_NONCE_ENDPOINT, acme.REPLAY_NONCE_HEADER)
	}

	return nonce, nil
}

// postSigned performs one signed exchange: the request body is signed with
// the supplied nonce, POSTed, and the response's Replay-Nonce becomes the
// new live nonce. ACME problem documents are surfaced as errors after the
// replacement nonce has been extracted, so a failed exchange still replaces
// the consumed nonce.
func (c *Client) postSigned(url string, rs *RequestSigner, nonce string) (*acmenet.NetResponse, string, error) {
	body, err := rs.Sign(nonce)
	if err != nil {
		return nil, nonce, err
	}

	resp, err := c.net.PostURL(url, body)
	if err != nil {
		return nil, nonce, err
	}

	next := resp.Nonce()
	if next == "" {
		return nil, nonce, fmt.Errorf("%q response had no %q header value",
			url, acme.REPLAY_NONCE_HEADER)
	}

	if err := resp.Problem(); err != nil {
		return resp, next, err
	}

	return resp, next, nil
}

// postObj performs a signed exchange and decodes the JSON response body into
// a T.
func postObj[T any](c *Client, url string, rs *RequestSigner, nonce string) (*T, string, *acmenet.NetResponse, error) {
	resp, next, err := c.postSigned(url, rs, nonce)
	if err != nil {
		return nil, next, resp, err
	}

	obj := new(T)
	if err := json.Unmarshal(resp.RespBody, obj); err != nil {
		return nil, next, resp, fmt.Errorf("%q returned invalid JSON: %s", url, err)
	}

	return obj, next, resp, nil
}
