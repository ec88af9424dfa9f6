package challenges

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"go.akshayshah.org/attest"

	"github.com/famfo/acmed/acme"
)

// startTXTServer serves the given TXT values for one record name on an
// ephemeral UDP port and returns the resolver address to query.
func startTXTServer(t *testing.T, record string, values func() []string) string {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	attest.Ok(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)

		q := req.Question[0]
		if q.Qtype == dns.TypeTXT && q.Name == record {
			for _, value := range values() {
				resp.Answer = append(resp.Answer, &dns.TXT{
					Hdr: dns.RR_Header{
						Name:   q.Name,
						Rrtype: dns.TypeTXT,
						Class:  dns.ClassINET,
						Ttl:    0,
					},
					Txt: []string{value},
				})
			}
		}
		_ = w.WriteMsg(resp)
	})

	server := &dns.Server{PacketConn: conn, Handler: mux}
	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })

	return conn.LocalAddr().String()
}

func TestDNSPrecheckSeesPropagatedRecord(t *testing.T) {
	t.Parallel()

	resolver := startTXTServer(t, "_acme-challenge.example.com.", func() []string {
		return []string{"unrelated", "proof-digest"}
	})

	precheck := DNSPrecheck{
		Resolver:    resolver,
		Interval:    time.Millisecond,
		MaxAttempts: 5,
	}
	attest.Ok(t, precheck.Wait("example.com", "proof-digest"))
}

func TestDNSPrecheckWaitsForPropagation(t *testing.T) {
	t.Parallel()

	var visible atomic.Bool
	resolver := startTXTServer(t, "_acme-challenge.example.com.", func() []string {
		if !visible.Load() {
			return nil
		}
		return []string{"proof-digest"}
	})

	precheck := DNSPrecheck{
		Resolver:    resolver,
		Interval:    10 * time.Millisecond,
		MaxAttempts: 50,
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		visible.Store(true)
	}()
	attest.Ok(t, precheck.Wait("example.com", "proof-digest"))
}

func TestDNSPrecheckGivesUp(t *testing.T) {
	t.Parallel()

	resolver := startTXTServer(t, "_acme-challenge.example.com.", func() []string {
		return []string{"stale-value"}
	})

	precheck := DNSPrecheck{
		Resolver:    resolver,
		Interval:    time.Millisecond,
		MaxAttempts: 3,
	}
	err := precheck.Wait("example.com", "proof-digest")
	attest.Error(t, err)
	attest.Subsequence(t, err.Error(), "_acme-challenge.example.com.")
}

func TestWithDNSPrecheckSkipsOtherKinds(t *testing.T) {
	t.Parallel()

	// The resolver would never answer, so reaching it at all fails the
	// test by timing out the precheck.
	precheck := DNSPrecheck{
		Resolver:    "127.0.0.1:1",
		Interval:    time.Millisecond,
		MaxAttempts: 1,
	}

	responder := newRecordingResponder()
	hook := WithDNSPrecheck(ChallSrvHook{Srv: responder}, precheck)

	err := hook.Complete(acme.Completion{
		Kind:             acme.ChallengeHTTP01,
		Name:             "tok-1",
		KeyAuthorization: "tok-1.thumb",
		Domain:           "example.com",
	})
	attest.Ok(t, err)
	attest.Equal(t, responder.httpTokens["tok-1"], "tok-1.thumb")
}
