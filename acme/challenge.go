package acme

import (
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/famfo/acmed/acme/keys"
)

// ChallengeKind identifies one of the domain validation challenge types
// defined by RFC 8555 (and RFC 8737 for TLS-ALPN-01). The zero value is not
// a valid kind.
type ChallengeKind int

const (
	// ChallengeHTTP01 is the "http-01" challenge type.
	// See https://tools.ietf.org/html/rfc8555#section-8.3
	ChallengeHTTP01 ChallengeKind = iota + 1
	// ChallengeDNS01 is the "dns-01" challenge type.
	// See https://tools.ietf.org/html/rfc8555#section-8.4
	ChallengeDNS01
	// ChallengeTLSALPN01 is the "tls-alpn-01" challenge type.
	// See https://tools.ietf.org/html/rfc8737
	ChallengeTLSALPN01
)

// ParseChallengeKind parses a configuration-level challenge type string into
// a ChallengeKind. Parsing is case-insensitive over exactly the literals
// "http-01", "dns-01" and "tls-alpn-01". Any other value returns an error:
// an unrecognized challenge type is a configuration mistake that can never
// succeed against a server.
func ParseChallengeKind(s string) (ChallengeKind, error) {
	switch strings.ToLower(s) {
	case "http-01":
		return ChallengeHTTP01, nil
	case "dns-01":
		return ChallengeDNS01, nil
	case "tls-alpn-01":
		return ChallengeTLSALPN01, nil
	}
	return 0, fmt.Errorf("%q: unknown challenge type", s)
}

// String returns the challenge type literal used on the wire. Output is
// always lowercase regardless of how the kind was parsed.
func (k ChallengeKind) String() string {
	switch k {
	case ChallengeHTTP01:
		return "http-01"
	case ChallengeDNS01:
		return "dns-01"
	case ChallengeTLSALPN01:
		return "tls-alpn-01"
	}
	return fmt.Sprintf("unknown challenge kind %d", int(k))
}

// Matches reports whether a server-offered challenge with the given wire
// "type" value is of this kind. Matching considers the kind only, never the
// offered challenge's token or URL.
func (k ChallengeKind) Matches(wireType string) bool {
	return k.String() == wireType
}

// OfferedChallenge is one concrete challenge instance offered by the server
// within an authorization, tagged with its parsed kind. It exposes the
// capabilities the issuance flow needs: the proof value to publish, the file
// or record name to publish it under, and the URL to POST the acceptance to.
type OfferedChallenge struct {
	Kind  ChallengeKind
	Token string
	URL   string
}

// OfferChallenge builds an OfferedChallenge from the wire representation of
// a challenge. An unrecognized wire type returns an error.
func OfferChallenge(wireType, token, url string) (OfferedChallenge, error) {
	kind, err := ParseChallengeKind(wireType)
	if err != nil {
		return OfferedChallenge{}, err
	}
	return OfferedChallenge{Kind: kind, Token: token, URL: url}, nil
}

// KeyAuthorization returns the RFC 8555 key authorization for the challenge
// token and the given account key.
func (c OfferedChallenge) KeyAuthorization(signer crypto.Signer) string {
	return keys.KeyAuth(signer, c.Token)
}

// Proof returns the value that must be made observable by the server to
// satisfy the challenge. For HTTP-01 this is the key authorization itself.
// For DNS-01 and TLS-ALPN-01 it is the base64url encoding of the SHA-256
// digest of the key authorization (the TXT record content and the acmeIdentifier
// certificate extension value respectively).
func (c OfferedChallenge) Proof(signer crypto.Signer) string {
	keyAuth := c.KeyAuthorization(signer)
	switch c.Kind {
	case ChallengeHTTP01:
		return keyAuth
	default:
		digest := sha256.Sum256([]byte(keyAuth))
		return base64.RawURLEncoding.EncodeToString(digest[:])
	}
}

// FileName returns the mechanism-specific name the proof is published under:
// the token for HTTP-01 (the path component below the well-known prefix) and
// the fixed record label prefix for DNS-01. TLS-ALPN-01 has no named
// artifact, the proof travels inside a self-signed certificate, so the name
// is empty.
func (c OfferedChallenge) FileName() string {
	switch c.Kind {
	case ChallengeHTTP01:
		return c.Token
	case ChallengeDNS01:
		return DNS01_RECORD_PREFIX
	}
	return ""
}

// Completion describes a challenge response ready to be published through
// a challenge hook.
type Completion struct {
	// The kind of challenge being completed.
	Kind ChallengeKind
	// The file or record name the proof is published under. See
	// OfferedChallenge.FileName.
	Name string
	// The proof value to publish. See OfferedChallenge.Proof.
	Proof string
	// The raw key authorization the proof was derived from. Responders that
	// compute mechanism-specific digests themselves (the challenge test
	// server does) need this rather than the published form.
	KeyAuthorization string
	// The domain identifier the challenge authorizes.
	Domain string
}
