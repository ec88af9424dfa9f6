package challenges

import (
	"fmt"
	"time"

	"github.com/miekg/dns"

	"github.com/famfo/acmed/acme"
)

const (
	defaultPrecheckInterval = 2 * time.Second
	defaultPrecheckAttempts = 15
	defaultPrecheckTimeout  = 5 * time.Second
)

// DNSPrecheck verifies DNS-01 propagation: it queries the challenge TXT
// record against a resolver until the expected proof value is visible.
// Accepting a DNS-01 challenge before the record has propagated makes the
// server's validation race the DNS update; the precheck removes the race.
type DNSPrecheck struct {
	// Resolver is the "host:port" address of the DNS server to query.
	Resolver string
	// Interval is the wait between queries. Defaults to 2s.
	Interval time.Duration
	// MaxAttempts caps the number of queries. Defaults to 15.
	MaxAttempts int
}

// Wait blocks until the _acme-challenge TXT record for domain contains the
// proof value, or the attempt bound is exhausted.
func (p DNSPrecheck) Wait(domain, proof string) error {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultPrecheckInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultPrecheckAttempts
	}

	fqdn := dns.Fqdn(fmt.Sprintf("%s.%s", acme.DNS01_RECORD_PREFIX, domain))
	client := &dns.Client{Timeout: defaultPrecheckTimeout}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		query := new(dns.Msg)
		query.SetQuestion(fqdn, dns.TypeTXT)

		response, _, err := client.Exchange(query, p.Resolver)
		if err == nil && txtContains(response, proof) {
			return nil
		}

		if attempt < maxAttempts {
			time.Sleep(interval)
		}
	}

	return fmt.Errorf("TXT record %q with the challenge proof never became visible at %q",
		fqdn, p.Resolver)
}

func txtContains(response *dns.Msg, value string) bool {
	for _, rr := range response.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, s := range txt.Txt {
			if s == value {
				return true
			}
		}
	}
	return false
}

// precheckedHook wraps a Hook with a DNS propagation wait after DNS-01
// completions.
type precheckedHook struct {
	inner    Hook
	precheck DNSPrecheck
}

// WithDNSPrecheck returns a Hook that completes through inner and then, for
// DNS-01 challenges only, waits for the published TXT record to become
// visible before the challenge is accepted.
func WithDNSPrecheck(inner Hook, precheck DNSPrecheck) Hook {
	return precheckedHook{inner: inner, precheck: precheck}
}

func (h precheckedHook) Complete(completion acme.Completion) error {
	if err := h.inner.Complete(completion); err != nil {
		return err
	}
	if completion.Kind != acme.ChallengeDNS01 {
		return nil
	}
	return h.precheck.Wait(completion.Domain, completion.Proof)
}
