package client

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.akshayshah.org/attest"

	"github.com/famfo/acmed/acme"
	"github.com/famfo/acmed/acme/resources"
)

// jwsEnvelope is the wire form of a signed request body.
type jwsEnvelope struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

type protectedHeader struct {
	Alg   string          `json:"alg"`
	Nonce string          `json:"nonce"`
	URL   string          `json:"url"`
	Kid   string          `json:"kid"`
	Jwk   json.RawMessage `json:"jwk"`
}

func decodeJWS(t testing.TB, body []byte) (protectedHeader, []byte) {
	t.Helper()

	var env jwsEnvelope
	attest.Ok(t, json.Unmarshal(body, &env))

	protBytes, err := base64.RawURLEncoding.DecodeString(env.Protected)
	attest.Ok(t, err)

	var prot protectedHeader
	attest.Ok(t, json.Unmarshal(protBytes, &prot))

	var payload []byte
	if env.Payload != "" {
		payload, err = base64.RawURLEncoding.DecodeString(env.Payload)
		attest.Ok(t, err)
	}
	return prot, payload
}

// acmeServer is a minimal fake ACME server. It mints a fresh Replay-Nonce
// for every response and records the nonce each signed request consumed so
// tests can check the nonce chain.
type acmeServer struct {
	t      *testing.T
	mux    *http.ServeMux
	server *httptest.Server

	mu         sync.Mutex
	nonceCount int
	issued     map[string]bool
	used       []string
	hits       map[string]int
}

func newACMEServer(t *testing.T) *acmeServer {
	t.Helper()

	a := &acmeServer{
		t:      t,
		mux:    http.NewServeMux(),
		issued: map[string]bool{},
		hits:   map[string]int{},
	}
	a.server = httptest.NewServer(a.mux)
	t.Cleanup(a.server.Close)
	return a
}

func (a *acmeServer) url(path string) string {
	return a.server.URL + path
}

func (a *acmeServer) mintNonce() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nonceCount++
	nonce := fmt.Sprintf("nonce-%04d", a.nonceCount)
	a.issued[nonce] = true
	return nonce
}

// issueNonce sets a fresh Replay-Nonce header on the response. Must be
// called before the response status is written.
func (a *acmeServer) issueNonce(w http.ResponseWriter) {
	w.Header().Set("Replay-Nonce", a.mintNonce())
}

// readJWS records the nonce a signed request consumed and returns its
// protected header and decoded payload.
func (a *acmeServer) readJWS(r *http.Request) (protectedHeader, []byte) {
	body, err := io.ReadAll(r.Body)
	attest.Ok(a.t, err)

	prot, payload := decodeJWS(a.t, body)

	a.mu.Lock()
	a.used = append(a.used, prot.Nonce)
	a.mu.Unlock()
	return prot, payload
}

// hit counts requests per path, starting at 1.
func (a *acmeServer) hit(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hits[path]++
	return a.hits[path]
}

func (a *acmeServer) hitCount(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[path]
}

// assertNonceDiscipline checks the anti-replay invariants: every consumed
// nonce was really issued, no nonce was consumed twice, and request n+1
// consumed exactly the nonce response n issued.
func (a *acmeServer) assertNonceDiscipline(t *testing.T) {
	t.Helper()

	a.mu.Lock()
	defer a.mu.Unlock()

	seen := map[string]bool{}
	for i, nonce := range a.used {
		attest.True(t, a.issued[nonce], attest.Sprintf("request %d consumed unissued nonce %q", i, nonce))
		attest.False(t, seen[nonce], attest.Sprintf("nonce %q consumed twice", nonce))
		seen[nonce] = true
		attest.Equal(t, nonce, fmt.Sprintf("nonce-%04d", i+1))
	}
}

// installCore wires the directory, newNonce and newAccount endpoints every
// run needs.
func (a *acmeServer) installCore() {
	a.mux.HandleFunc("/dir", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(resources.Directory{
			NewNonce:   a.url("/new-nonce"),
			NewAccount: a.url("/new-account"),
			NewOrder:   a.url("/new-order"),
		})
	})

	a.mux.HandleFunc("/new-nonce", func(w http.ResponseWriter, r *http.Request) {
		a.issueNonce(w)
		w.WriteHeader(http.StatusOK)
	})

	a.mux.HandleFunc("/new-account", func(w http.ResponseWriter, r *http.Request) {
		prot, _ := a.readJWS(r)
		// newAccount requests embed the key as a JWK instead of a kid.
		attest.Zero(a.t, prot.Kid)
		attest.NotZero(a.t, prot.Jwk)

		a.issueNonce(w)
		w.Header().Set("Location", a.url("/acct/1"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"valid"}`))
	})
}

func testSigner(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	attest.Ok(t, err)
	return key
}

func newTestClient(t *testing.T, a *acmeServer) *Client {
	t.Helper()

	c, err := NewClient(ClientConfig{
		DirectoryURL:  a.url("/dir"),
		AccountSigner: testSigner(t),
		Poll: PollConfig{
			Interval:    time.Millisecond,
			MaxAttempts: 10,
		},
	})
	attest.Ok(t, err)
	return c
}

// recordingHook records challenge completions.
type recordingHook struct {
	mu          sync.Mutex
	completions []acme.Completion
	err         error
}

func (h *recordingHook) Complete(completion acme.Completion) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completions = append(h.completions, completion)
	return h.err
}

func (h *recordingHook) all() []acme.Completion {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]acme.Completion{}, h.completions...)
}

// recordingStore records persisted certificates.
type recordingStore struct {
	mu          sync.Mutex
	calls       int
	domains     []string
	certificate []byte
	key         crypto.Signer
	err         error
}

func (s *recordingStore) Persist(domains []string, certificate []byte, key crypto.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.domains = append([]string{}, domains...)
	s.certificate = append([]byte{}, certificate...)
	s.key = key
	return s.err
}

// recordingObserver records issuance notifications.
type recordingObserver struct {
	mu      sync.Mutex
	calls   int
	domains []string
}

func (o *recordingObserver) IssuanceSucceeded(domains []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.domains = append([]string{}, domains...)
}
