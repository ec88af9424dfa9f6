// Package keys offers utility functions for working with crypto.Signers,
// JWKs, key authorizations, CSRs and PEM serialization.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

func sigAlgForKey(signer crypto.Signer) jose.SignatureAlgorithm {
	switch signer.(type) {
	case *ecdsa.PrivateKey:
		return jose.ES256
	case *rsa.PrivateKey:
		return jose.RS256
	}
	return "unknown"
}

func algForKey(signer crypto.Signer) string {
	switch signer.(type) {
	case *ecdsa.PrivateKey:
		return "ECDSA"
	case *rsa.PrivateKey:
		return "RSA"
	}
	return "unknown"
}

// SigAlgForSigner returns the JWS signature algorithm matching the signer's
// key type.
func SigAlgForSigner(signer crypto.Signer) jose.SignatureAlgorithm {
	return sigAlgForKey(signer)
}

// JWKForSigner returns a public JWK for the signer's public key.
func JWKForSigner(signer crypto.Signer) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       signer.Public(),
		Algorithm: algForKey(signer),
	}
}

func JWKThumbprintBytes(signer crypto.Signer) []byte {
	jwk := JWKForSigner(signer)
	thumbBytes, _ := jwk.Thumbprint(crypto.SHA256)
	return thumbBytes
}

// JWKThumbprint returns the base64url encoded SHA-256 thumbprint of the
// signer's public key JWK. See https://tools.ietf.org/html/rfc7638
func JWKThumbprint(signer crypto.Signer) string {
	thumbprintBytes := JWKThumbprintBytes(signer)
	return base64.RawURLEncoding.EncodeToString(thumbprintBytes)
}

// KeyAuth returns the RFC 8555 key authorization for the given challenge
// token and account key: "<token>.<JWK thumbprint>".
func KeyAuth(signer crypto.Signer, token string) string {
	return fmt.Sprintf("%s.%s", token, JWKThumbprint(signer))
}

// SigningKeyForSigner returns a jose.SigningKey wrapping the signer with the
// given JWS Key ID.
func SigningKeyForSigner(signer crypto.Signer, keyID string) jose.SigningKey {
	jwk := jose.JSONWebKey{
		Key:       signer,
		Algorithm: string(sigAlgForKey(signer)),
		KeyID:     keyID,
	}
	return jose.SigningKey{
		Key:       jwk,
		Algorithm: sigAlgForKey(signer),
	}
}

// NewSigner generates a fresh private key of the named type ("ecdsa" or
// "rsa").
func NewSigner(keyType string) (crypto.Signer, error) {
	var randKey crypto.Signer
	var err error
	switch keyType {
	case "ecdsa":
		randKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "rsa":
		randKey, err = rsa.GenerateKey(rand.Reader, 2048)
	default:
		err = fmt.Errorf("unknown key type: %q", keyType)
	}
	if err != nil {
		return nil, err
	}
	return randKey, nil
}

// SignerToPEM serializes the signer's private key to PEM.
func SignerToPEM(signer crypto.Signer) (string, error) {
	var keyBytes []byte
	var keyHeader string
	var err error
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		keyBytes, err = x509.MarshalECPrivateKey(k)
		keyHeader = "EC PRIVATE KEY"
	case *rsa.PrivateKey:
		keyBytes = x509.MarshalPKCS1PrivateKey(k)
		keyHeader = "RSA PRIVATE KEY"
	default:
		err = fmt.Errorf("unknown key type: %T", k)
	}
	if err != nil {
		return "", err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  keyHeader,
		Bytes: keyBytes,
	})
	return string(pemBytes), nil
}

// SignerFromPEM deserializes a private key previously written by
// SignerToPEM.
func SignerFromPEM(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in key data")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	return nil, fmt.Errorf("unknown PEM block type %q", block.Type)
}

// PEMCSR is the PEM encoding of an x509 Certificate Signing Request (CSR)
type PEMCSR string

// B64CSR is the Base64URLSafe encoding of an x509 Certificate Signing Request (CSR)
type B64CSR string

// CSR produces a CertificateSigningRequest for the provided names, signed by
// the given private key. The first name is used as the CommonName. CSR
// returns the Base64URL encoding of the CSR (the form ACME finalize requests
// carry) as well as the PEM encoding.
func CSR(names []string, privateKey crypto.Signer) (B64CSR, PEMCSR, error) {
	if len(names) == 0 {
		return B64CSR(""), PEMCSR(""), fmt.Errorf("no names specified")
	}
	if privateKey == nil {
		return B64CSR(""), PEMCSR(""), fmt.Errorf("no private key specified")
	}

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: names[0],
		},
		DNSNames: names,
	}

	csrBytes, err := x509.CreateCertificateRequest(rand.Reader, &template, privateKey)
	if err != nil {
		return B64CSR(""), PEMCSR(""), err
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type: "CERTIFICATE REQUEST", Bytes: csrBytes,
	})

	return B64CSR(base64.RawURLEncoding.EncodeToString(csrBytes)),
		PEMCSR(pemBytes),
		nil
}
