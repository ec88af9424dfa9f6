package client

import (
	"errors"
	"fmt"

	"github.com/famfo/acmed/acme"
	"github.com/famfo/acmed/acme/resources"
)

// ErrNoCertificateURL is returned when an order reports status "valid" but
// carries no certificate URL to download from. The server violated the
// protocol; there is nothing the client can retry.
var ErrNoCertificateURL = errors.New("order is valid but has no certificate URL")

// ProtocolError reports a resource observed in a status that makes the
// current run impossible: a terminal failure status, or a status outside
// the set RFC 8555 enumerates.
type ProtocolError struct {
	// The kind of resource, "authorization" or "order".
	Resource string
	// The domain identifier or URL the resource belongs to.
	Identifier string
	// The offending status.
	Status resources.Status
}

func (e *ProtocolError) Error() string {
	if !e.Status.Known() {
		return fmt.Sprintf("%s %s: server reported unknown status %q",
			e.Resource, e.Identifier, e.Status)
	}
	if e.Status.Terminal() {
		return fmt.Sprintf("%s %s: terminal status %q can not recover",
			e.Resource, e.Identifier, e.Status)
	}
	return fmt.Sprintf("%s %s: status is %q", e.Resource, e.Identifier, e.Status)
}

// NoMatchingChallengeError is returned when an authorization offers no
// challenge of the configured kind. Proceeding would only poll the
// authorization into a timeout since no proof could ever be submitted, so
// the run fails fast instead.
type NoMatchingChallengeError struct {
	// The domain identifier of the authorization.
	Identifier string
	// The configured challenge kind that nothing on offer matched.
	Kind acme.ChallengeKind
	// The challenge types the server did offer.
	Offered []string
}

func (e *NoMatchingChallengeError) Error() string {
	return fmt.Sprintf("authorization %s offers no %q challenge (offered: %v)",
		e.Identifier, e.Kind, e.Offered)
}
