package client

import (
	"encoding/json"
	"fmt"

	"github.com/famfo/acmed/acme"
	"github.com/famfo/acmed/acme/resources"
)

// fetchDirectory fetches the ACME Directory resource from the ACME server.
// The directory is the only unsigned, un-nonced request of a run.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
func (c *Client) fetchDirectory() (*resources.Directory, error) {
	url := c.DirectoryURL.String()

	resp, err := c.net.GetURL(url)
	if err != nil {
		return nil, err
	}
	if err := resp.Problem(); err != nil {
		return nil, err
	}

	var directory resources.Directory
	if err := json.Unmarshal(resp.RespBody, &directory); err != nil {
		return nil, fmt.Errorf("directory %q returned invalid JSON: %s", url, err)
	}

	if directory.NewNonce == "" {
		return nil, fmt.Errorf(
			"directory %q is missing the %q endpoint", url, acme.NEW_NONCE_ENDPOINT)
	}
	if directory.NewOrder == "" {
		return nil, fmt.Errorf(
			"directory %q is missing the %q endpoint", url, acme.NEW_ORDER_ENDPOINT)
	}

	return &directory, nil
}
