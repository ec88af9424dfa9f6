// Package client implements the ACME v2 certificate issuance flow: directory
// discovery, account binding, order creation, challenge completion, order
// finalization and certificate retrieval, with the server's anti-replay
// nonce threaded through every signed exchange.
package client

import (
	"crypto"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/famfo/acmed/acme"
	"github.com/famfo/acmed/acme/keys"
	"github.com/famfo/acmed/acme/resources"
	acmenet "github.com/famfo/acmed/net"
)

// Client drives one or more certificate issuance runs against a single ACME
// server with a single account. A Client owns its own nonce chain: each
// signed request consumes the current nonce and each response replaces it.
// Clients must not be shared between concurrent issuance runs; create one
// Client per run instead so every run maintains an independent nonce chain.
type Client struct {
	// A parsed *url.URL pointer for the ACME server's directory URL.
	DirectoryURL *url.URL
	// The server's directory resource. Populated at the start of each
	// issuance run.
	Directory *resources.Directory
	// The account the run authenticates as. Populated by the Binder at the
	// start of each issuance run.
	Account *resources.Account
	// Binder resolves or registers the ACME account. Defaults to Registrar.
	Binder AccountBinder
	// Poll bounds the authorization and order polling loops.
	Poll PollConfig
	// the net object is used to make HTTP GET/POST/HEAD requests to the
	// ACME server.
	net *acmenet.ACMENet
	// accountSigner is the private key the Binder registers the account
	// with.
	accountSigner crypto.Signer
	// contact holds the "mailto:" contact addresses for account
	// registration.
	contact []string
}

// ClientConfig contains configuration options provided to NewClient when
// creating a Client instance.
//
// The DirectoryURL field is a string containing the URL for the ACME
// server's directory endpoint. This field is mandatory and must not be
// empty.
//
// The CACert field is an optional string containing a file path to a file
// containing one or more PEM encoded CA certificates that should be used as
// trust roots for HTTPS requests to the ACME server. If empty the default
// system roots are used.
//
// The ContactEmail field is a string expected to contain a single email
// address or to be empty. It will be used as a "mailto:" contact address
// when registering the ACME account.
//
// The AccountSigner field is the private key the account is registered and
// authenticated with. It is mandatory: a Client without an account key can
// not sign requests.
type ClientConfig struct {
	// A fully qualified URL for the ACME server's directory resource. Must
	// include an HTTP/HTTPS protocol prefix.
	DirectoryURL string
	// An optional file path to one or more PEM encoded CA certificates to
	// be used as trust roots for HTTPS requests to the ACME server.
	CACert string
	// An optional email address used as the account's contact address.
	ContactEmail string
	// The account private key.
	AccountSigner crypto.Signer
	// Polling policy for the asynchronous server-side state transitions.
	// Zero values use the package defaults.
	Poll PollConfig
}

// normalize validates a ClientConfig.
func (conf *ClientConfig) normalize() error {
	// Clean up any junk whitespace that might have snuck in
	conf.DirectoryURL = strings.TrimSpace(conf.DirectoryURL)
	conf.ContactEmail = strings.TrimSpace(conf.ContactEmail)

	if conf.DirectoryURL == "" {
		return fmt.Errorf("DirectoryURL must not be empty")
	}

	if _, err := url.Parse(conf.DirectoryURL); err != nil {
		return fmt.Errorf("DirectoryURL invalid: %s", err.Error())
	}

	if conf.ContactEmail != "" {
		addr, err := mail.ParseAddress(conf.ContactEmail)
		if err != nil {
			return fmt.Errorf("ContactEmail is invalid: %s", err.Error())
		}
		conf.ContactEmail = addr.Address
	}

	if conf.AccountSigner == nil {
		return fmt.Errorf("AccountSigner must not be nil")
	}

	return nil
}

// NewClient creates a Client instance from the given ClientConfig. If the
// config is not valid or if another error occurs it will be returned along
// with a nil Client.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	net, err := acmenet.New(config.CACert)
	if err != nil {
		return nil, fmt.Errorf("unable to create ACME net client: %s", err)
	}

	// NOTE: Its safe to throw away the returned err here because we check
	// that `url.Parse` will succeed in `config.normalize()` above.
	dirURL, _ := url.Parse(config.DirectoryURL)

	var contact []string
	if config.ContactEmail != "" {
		contact = []string{fmt.Sprintf("mailto:%s", config.ContactEmail)}
	}

	return &Client{
		DirectoryURL:  dirURL,
		Binder:        Registrar{},
		Poll:          config.Poll,
		net:           net,
		accountSigner: config.AccountSigner,
		contact:       contact,
	}, nil
}

// ChallengeHook is the collaborator that makes a challenge proof observable
// by the server: publishing a well-known file, a DNS TXT record, a TLS
// certificate, or whatever other out-of-band action the mechanism needs.
type ChallengeHook interface {
	Complete(completion acme.Completion) error
}

// CertificateSource is the collaborator that produces the certificate
// keypair and the certificate signing request submitted at finalization.
type CertificateSource interface {
	GenerateKeyPair() (crypto.Signer, error)
	BuildCSR(domains []string, key crypto.Signer) (keys.B64CSR, error)
}

// Storage is the collaborator that persists the issued certificate and its
// private key. It is invoked exactly once per successful run and never on
// failure.
type Storage interface {
	Persist(domains []string, certificate []byte, key crypto.Signer) error
}

// Observer receives the terminal-success event of an issuance run. It
// exists so the core has no hidden output of its own.
type Observer interface {
	IssuanceSucceeded(domains []string)
}
