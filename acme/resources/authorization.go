package resources

// The ACME Authorization resource represents an Account's authorization to
// issue for a specified identifier, based on interactions with associated
// Challenges. Authorization for an identifier allows issuing certificates
// containing that identifier.
//
// For information about the Authorization resource see
// https://tools.ietf.org/html/rfc8555#section-7.1.4
type Authorization struct {
	// The server-assigned ID (a URL) identifying the Authorization. Known
	// from the order's authorizations list, not carried in the body.
	ID string `json:"-"`
	// The status of this authorization. Possible values are: "pending",
	// "valid", "invalid", "deactivated", "expired", and "revoked".
	Status Status `json:"status"`
	// The identifier that the account holding this Authorization is
	// authorized to represent.
	Identifier Identifier `json:"identifier"`
	// For pending authorizations, the challenges that the client can fulfill
	// in order to prove possession of the identifier. For valid
	// authorizations, the challenge that was validated. For invalid
	// authorizations, the challenge that was attempted and failed.
	Challenges []Challenge `json:"challenges"`
	// A string representing a RFC 3339 date at which time the Authorization
	// is considered expired by the server.
	Expires string `json:"expires,omitempty"`
	// For authorizations created as a result of a newOrder request
	// containing a DNS identifier with a value that contained a wildcard
	// prefix this field MUST be present, and true.
	Wildcard bool `json:"wildcard,omitempty"`
}

// String returns the Authorization's server-assigned ID.
func (a Authorization) String() string {
	return a.ID
}
