package resources

// The Directory resource is the server-published map of protocol endpoint
// URLs. Clients configure themselves for all other operations from a single
// GET of the directory URL.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
type Directory struct {
	// URL used to fetch fresh anti-replay nonces with a HEAD request.
	NewNonce string `json:"newNonce"`
	// URL used to register a new account.
	NewAccount string `json:"newAccount"`
	// URL used to create a new certificate order.
	NewOrder string `json:"newOrder"`
	// Optional URL used to create authorizations outside of an order.
	NewAuthz string `json:"newAuthz,omitempty"`
	// Optional URL used to revoke a certificate.
	RevokeCert string `json:"revokeCert,omitempty"`
	// Optional URL used to roll over an account key.
	KeyChange string `json:"keyChange,omitempty"`
}
