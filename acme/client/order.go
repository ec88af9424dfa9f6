package client

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/famfo/acmed/acme"
	"github.com/famfo/acmed/acme/resources"
)

// CertificateRequest describes one end-to-end issuance run: the domains to
// certify, the challenge mechanism to prove control with, and the
// collaborators the run hands off to.
type CertificateRequest struct {
	// The domains the certificate covers. The first one becomes the CSR
	// CommonName.
	Domains []string
	// The challenge kind used for every authorization. A server-offered
	// challenge is acted on iff its kind equals this one.
	Challenge acme.ChallengeKind
	// Hook publishes challenge proofs. Mandatory.
	Hook ChallengeHook
	// Certificates produces the certificate keypair and CSR. Defaults to
	// StandardCertificateSource.
	Certificates CertificateSource
	// Storage persists the issued certificate. Mandatory.
	Storage Storage
	// Observer, if set, receives the terminal success event.
	Observer Observer
}

func (req *CertificateRequest) validate() error {
	if len(req.Domains) == 0 {
		return fmt.Errorf("certificate request has no domains")
	}
	if req.Challenge == 0 {
		return fmt.Errorf("certificate request has no challenge type")
	}
	if req.Hook == nil {
		return fmt.Errorf("certificate request has no challenge hook")
	}
	if req.Storage == nil {
		return fmt.Errorf("certificate request has no storage")
	}
	if req.Certificates == nil {
		req.Certificates = StandardCertificateSource{}
	}
	return nil
}

// RequestCertificate executes one complete issuance run: directory fetch,
// initial nonce, account binding, order creation, challenge completion for
// every authorization, order finalization with a fresh keypair and CSR, and
// certificate download. The issued certificate is handed to the request's
// Storage collaborator; nothing is persisted on failure.
//
// Every signed exchange consumes the current nonce and stores the
// response's replacement, so steps are strictly sequential. The only
// retries are the bounded polling loops waiting for the server's
// asynchronous authorization and order transitions; every other failure
// propagates immediately.
func (c *Client) RequestCertificate(req *CertificateRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	// 1. Fetch the directory.
	directory, err := c.fetchDirectory()
	if err != nil {
		return err
	}
	c.Directory = directory

	// 2. Get a first nonce.
	nonce, err := c.firstNonce()
	if err != nil {
		return err
	}

	// 3. Get or create the account. The binder consumes and replaces nonces
	// internally and hands back the next live one.
	account, nonce, err := c.Binder.Bind(c, nonce)
	if err != nil {
		return err
	}
	c.Account = account
	log.Printf("Using account %q\n", account.ID)

	// 4. Create a new order.
	order, nonce, err := c.createOrder(req.Domains, nonce)
	if err != nil {
		return err
	}
	log.Printf("Created order %q\n", order.ID)

	// 5. Complete every authorization the order requires.
	for _, authzURL := range order.Authorizations {
		nonce, err = c.completeAuthorization(req, authzURL, nonce)
		if err != nil {
			return err
		}
	}

	// 6. Wait for the order to become ready to finalize.
	order, nonce, err = c.pollOrder(order.ID, nonce, resources.StatusReady)
	if err != nil {
		return err
	}

	// 7. Generate the certificate keypair and CSR.
	certKey, err := req.Certificates.GenerateKeyPair()
	if err != nil {
		return err
	}
	csr, err := req.Certificates.BuildCSR(req.Domains, certKey)
	if err != nil {
		return err
	}

	// 8. Finalize the order by sending the CSR.
	finalizeReq := struct {
		CSR string `json:"csr"`
	}{
		CSR: string(csr),
	}
	finalizeBody, err := json.Marshal(&finalizeReq)
	if err != nil {
		return err
	}
	_, nonce, err = c.postSigned(order.Finalize, c.signFor(order.Finalize, finalizeBody), nonce)
	if err != nil {
		return fmt.Errorf("finalizing order %q: %w", order.ID, err)
	}

	// 9. Wait for the finalized order to become valid.
	order, nonce, err = c.pollOrder(order.ID, nonce, resources.StatusValid)
	if err != nil {
		return err
	}

	// 10-11. Download the issued certificate.
	if order.Certificate == "" {
		return ErrNoCertificateURL
	}
	resp, _, err := c.postSigned(order.Certificate, c.signEmpty(order.Certificate), nonce)
	if err != nil {
		return fmt.Errorf("downloading certificate %q: %w", order.Certificate, err)
	}

	// 12. Hand the certificate to storage.
	if err := req.Storage.Persist(req.Domains, resp.RespBody, certKey); err != nil {
		return err
	}

	if req.Observer != nil {
		req.Observer.IssuanceSucceeded(req.Domains)
	}
	return nil
}

// createOrder POSTs a newOrder request for the given domains and returns the
// created order with its ID populated from the Location header.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) createOrder(domains []string, nonce string) (*resources.Order, string, error) {
	identifiers := make([]resources.Identifier, len(domains))
	for i, domain := range domains {
		identifiers[i] = resources.Identifier{Type: "dns", Value: domain}
	}

	newOrderReq := struct {
		Identifiers []resources.Identifier `json:"identifiers"`
	}{
		Identifiers: identifiers,
	}

	reqBody, err := json.Marshal(&newOrderReq)
	if err != nil {
		return nil, nonce, err
	}

	newOrderURL := c.Directory.NewOrder
	order, nonce, resp, err := postObj[resources.Order](
		c, newOrderURL, c.signFor(newOrderURL, reqBody), nonce)
	if err != nil {
		return nil, nonce, fmt.Errorf("creating order: %w", err)
	}

	locHeader := resp.Response.Header.Get("Location")
	if locHeader == "" {
		return nil, nonce, fmt.Errorf("createOrder: server returned response with no Location header")
	}
	order.ID = locHeader

	if !order.Status.Known() {
		return nil, nonce, &ProtocolError{
			Resource:   "order",
			Identifier: order.ID,
			Status:     order.Status,
		}
	}

	return order, nonce, nil
}

// completeAuthorization fetches one authorization, responds to its matching
// challenge and polls it to "valid". Authorizations that are already valid
// are skipped without touching their challenges. Any status other than
// "valid" or "pending" can no longer succeed and aborts the run.
func (c *Client) completeAuthorization(req *CertificateRequest, authzURL, nonce string) (string, error) {
	authz, nonce, _, err := postObj[resources.Authorization](
		c, authzURL, c.signEmpty(authzURL), nonce)
	if err != nil {
		return nonce, fmt.Errorf("fetching authorization %q: %w", authzURL, err)
	}
	authz.ID = authzURL

	if authz.Status == resources.StatusValid {
		log.Printf("Authorization for %q is already valid\n", authz.Identifier.Value)
		return nonce, nil
	}
	if authz.Status != resources.StatusPending {
		return nonce, &ProtocolError{
			Resource:   "authorization",
			Identifier: authz.Identifier.Value,
			Status:     authz.Status,
		}
	}

	matched := false
	var offeredTypes []string
	for _, chall := range authz.Challenges {
		offeredTypes = append(offeredTypes, chall.Type)
		if !req.Challenge.Matches(chall.Type) {
			continue
		}
		matched = true

		nonce, err = c.respondToChallenge(req, authz, chall, nonce)
		if err != nil {
			return nonce, err
		}
	}
	if !matched {
		return nonce, &NoMatchingChallengeError{
			Identifier: authz.Identifier.Value,
			Kind:       req.Challenge,
			Offered:    offeredTypes,
		}
	}

	// Poll the authorization until the server validates it.
	_, nonce, err = pollObj(c, authzURL, c.signEmpty(authzURL), nonce,
		func(a *resources.Authorization) bool {
			return a.Status == resources.StatusValid
		},
		func(a *resources.Authorization) resources.Status {
			if a.Status == resources.StatusPending || a.Status == resources.StatusProcessing {
				return ""
			}
			return a.Status
		})
	if err != nil {
		return nonce, err
	}
	log.Printf("Authorization for %q is valid\n", authz.Identifier.Value)
	return nonce, nil
}

// respondToChallenge publishes the proof for one offered challenge through
// the request's hook and then POSTs the acceptance to the challenge URL to
// signal readiness.
func (c *Client) respondToChallenge(req *CertificateRequest, authz *resources.Authorization,
	chall resources.Challenge, nonce string) (string, error) {
	offered, err := acme.OfferChallenge(chall.Type, chall.Token, chall.URL)
	if err != nil {
		return nonce, err
	}
	domain := authz.Identifier.Value

	completion := acme.Completion{
		Kind:             offered.Kind,
		Name:             offered.FileName(),
		Proof:            offered.Proof(c.Account.Signer),
		KeyAuthorization: offered.KeyAuthorization(c.Account.Signer),
		Domain:           domain,
	}
	if err := req.Hook.Complete(completion); err != nil {
		return nonce, fmt.Errorf("completing %q challenge for %q: %w",
			offered.Kind, domain, err)
	}

	// The acceptance body is the empty JSON object, not an empty payload.
	// See https://tools.ietf.org/html/rfc8555#section-7.5.1
	_, nonce, err = c.postSigned(offered.URL, c.signFor(offered.URL, []byte("{}")), nonce)
	if err != nil {
		return nonce, fmt.Errorf("accepting %q challenge for %q: %w",
			offered.Kind, domain, err)
	}
	log.Printf("%q challenge for %q started\n", offered.Kind, domain)
	return nonce, nil
}

// pollOrder polls the order URL until its status reaches the awaited value.
// Terminal states other than the awaited one stop the poll immediately.
func (c *Client) pollOrder(orderURL, nonce string, want resources.Status) (*resources.Order, string, error) {
	order, nonce, err := pollObj(c, orderURL, c.signEmpty(orderURL), nonce,
		func(o *resources.Order) bool {
			return o.Status == want
		},
		func(o *resources.Order) resources.Status {
			switch o.Status {
			case resources.StatusPending, resources.StatusReady, resources.StatusProcessing:
				return ""
			case want:
				return ""
			}
			return o.Status
		})
	if err != nil {
		return nil, nonce, err
	}
	order.ID = orderURL
	return order, nonce, nil
}
