// Package storage persists certificates and private keys to disk.
package storage

import (
	"crypto"
	"fmt"
	"os"
	"path/filepath"

	"github.com/famfo/acmed/acme/keys"
)

// Store writes issued certificates and their keys to configured file paths.
// It satisfies the issuance client's Storage collaborator.
type Store struct {
	// CertificateFile is the path the PEM certificate chain is written to.
	CertificateFile string
	// KeyFile is the path the certificate's private key is written to.
	KeyFile string
}

// Persist writes the certificate chain and its private key. Writes go
// through a temporary file and a rename so a crashed run never leaves
// a partial certificate behind.
func (s Store) Persist(domains []string, certificate []byte, key crypto.Signer) error {
	if s.CertificateFile == "" || s.KeyFile == "" {
		return fmt.Errorf("storage has no output paths configured")
	}

	keyPEM, err := keys.SignerToPEM(key)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.KeyFile, []byte(keyPEM), 0o600); err != nil {
		return fmt.Errorf("writing key for %v: %w", domains, err)
	}
	if err := writeFileAtomic(s.CertificateFile, certificate, 0o644); err != nil {
		return fmt.Errorf("writing certificate for %v: %w", domains, err)
	}
	return nil
}

// LoadOrCreateAccountKey restores the PEM encoded account key at path,
// generating and saving a fresh ECDSA key when none exists yet. Reusing the
// key across runs keeps the server-side account stable.
func LoadOrCreateAccountKey(path string) (crypto.Signer, error) {
	pemBytes, err := os.ReadFile(path)
	if err == nil {
		return keys.SignerFromPEM(pemBytes)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	signer, err := keys.NewSigner("ecdsa")
	if err != nil {
		return nil, err
	}
	keyPEM, err := keys.SignerToPEM(signer)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, []byte(keyPEM), 0o600); err != nil {
		return nil, err
	}
	return signer, nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
