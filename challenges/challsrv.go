package challenges

import (
	"fmt"
	"log"
	"os"

	"github.com/letsencrypt/challtestsrv"

	"github.com/famfo/acmed/acme"
)

// ChallengeResponder is the part of challtestsrv.ChallSrv the hook uses.
type ChallengeResponder interface {
	AddHTTPOneChallenge(token string, keyAuth string)
	AddDNSOneChallenge(host string, keyAuth string)
	AddTLSALPNChallenge(host string, keyAuth string)
}

// ChallSrvHook publishes challenge responses on a local challenge response
// server: an HTTP server for HTTP-01, a DNS server for DNS-01 and a TLS
// server for TLS-ALPN-01. The responder derives mechanism-specific digests
// itself, so it is handed the raw key authorization.
type ChallSrvHook struct {
	Srv ChallengeResponder
}

func (h ChallSrvHook) Complete(completion acme.Completion) error {
	switch completion.Kind {
	case acme.ChallengeHTTP01:
		h.Srv.AddHTTPOneChallenge(completion.Name, completion.KeyAuthorization)
	case acme.ChallengeDNS01:
		// The responder stores TXT values under the fully qualified record
		// name it will be queried for.
		host := fmt.Sprintf("%s.%s.", acme.DNS01_RECORD_PREFIX, completion.Domain)
		h.Srv.AddDNSOneChallenge(host, completion.KeyAuthorization)
	case acme.ChallengeTLSALPN01:
		h.Srv.AddTLSALPNChallenge(completion.Domain, completion.KeyAuthorization)
	default:
		return fmt.Errorf("challenge response server can not complete %q challenges",
			completion.Kind)
	}
	return nil
}

// NewChallSrv creates and starts a challenge response server listening on
// the given ports. Run is asynchronous; callers should Shutdown the
// returned server when the issuance run completes.
func NewChallSrv(httpPort, tlsPort, dnsPort int) (*challtestsrv.ChallSrv, error) {
	srv, err := challtestsrv.New(challtestsrv.Config{
		HTTPOneAddrs:    []string{fmt.Sprintf(":%d", httpPort)},
		TLSALPNOneAddrs: []string{fmt.Sprintf(":%d", tlsPort)},
		DNSOneAddrs:     []string{fmt.Sprintf(":%d", dnsPort)},
		Log:             log.New(os.Stdout, "challRespSrv: ", log.Ldate|log.Ltime),
	})
	if err != nil {
		return nil, err
	}

	go srv.Run()
	return srv, nil
}
