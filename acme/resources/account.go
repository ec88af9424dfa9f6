package resources

import "crypto"

// Account holds information related to a single ACME Account resource. If
// the account has an empty ID it has not yet been created server-side with
// the ACME server.
//
// The ID field holds the server assigned Account URL that is assigned at the
// time of account creation and used as the JWS Key ID ("kid") for
// authenticating ACME requests with the Account's registered keypair.
type Account struct {
	// The server assigned Account URL. This is used for the JWS KeyID when
	// authenticating ACME requests using the Account's registered keypair.
	ID string
	// If not nil, a slice of one or more "mailto:" addresses to be used as
	// the ACME Account's Contact addresses.
	Contact []string
	// The private key used for the ACME account's keypair.
	Signer crypto.Signer `json:"-"`
}

// String returns the Account's ID or an empty string if it has not been
// created with the ACME server.
func (a Account) String() string {
	return a.ID
}
