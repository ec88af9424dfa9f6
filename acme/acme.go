// Package acme provides ACME protocol constants and the challenge type
// registry. See RFC 8555.
package acme

const (
	// Directory constants
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5

	// The ACME directory key for the newNonce endpoint
	NEW_NONCE_ENDPOINT = "newNonce"
	// The ACME directory key for the newAccount endpoint.
	NEW_ACCOUNT_ENDPOINT = "newAccount"
	// The ACME directory key for the newOrder endpoint.
	NEW_ORDER_ENDPOINT = "newOrder"

	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-9.3
	REPLAY_NONCE_HEADER = "Replay-Nonce"

	// The fixed URL path component under which HTTP-01 challenge responses
	// must be served. See https://tools.ietf.org/html/rfc8555#section-8.3
	HTTP01_WELL_KNOWN_PATH = "/.well-known/acme-challenge/"

	// The fixed DNS label prefix under which DNS-01 challenge TXT records
	// must be published. See https://tools.ietf.org/html/rfc8555#section-8.4
	DNS01_RECORD_PREFIX = "_acme-challenge"
)
