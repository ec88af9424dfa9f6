package client

import (
	"crypto"

	"github.com/famfo/acmed/acme/keys"
)

// StandardCertificateSource is the default CertificateSource: a fresh random
// keypair per issuance and a CSR covering the requested domains. The
// certificate key is never the account key.
//
// See https://tools.ietf.org/html/rfc8555#section-11.1
type StandardCertificateSource struct {
	// KeyType selects the certificate key algorithm, "ecdsa" (default) or
	// "rsa".
	KeyType string
}

func (s StandardCertificateSource) GenerateKeyPair() (crypto.Signer, error) {
	keyType := s.KeyType
	if keyType == "" {
		keyType = "ecdsa"
	}
	return keys.NewSigner(keyType)
}

func (s StandardCertificateSource) BuildCSR(domains []string, key crypto.Signer) (keys.B64CSR, error) {
	b64, _, err := keys.CSR(domains, key)
	return b64, err
}
