package client

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/famfo/acmed/acme/resources"
	acmenet "github.com/famfo/acmed/net"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultPollMaxAttempts = 30
)

// PollConfig bounds the polling loops that wait for asynchronous
// server-side state transitions.
type PollConfig struct {
	// Interval is the wait between attempts. The server's Retry-After hint
	// is honored when it asks for a longer wait.
	Interval time.Duration
	// MaxAttempts caps the number of fetches before the poll gives up with
	// a timeout error.
	MaxAttempts int
}

func (p PollConfig) withDefaults() PollConfig {
	if p.Interval <= 0 {
		p.Interval = defaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultPollMaxAttempts
	}
	return p
}

// PollReason classifies why a poll loop ended without its predicate being
// satisfied.
type PollReason int

const (
	// PollTimeout means the attempt bound was exhausted before the awaited
	// state was reached.
	PollTimeout PollReason = iota + 1
	// PollFailed means the resource reached a terminal state incompatible
	// with the awaited one, so further polling could never succeed.
	PollFailed
)

// PollError is returned by the polling primitive when the awaited state was
// never observed.
type PollError struct {
	Reason   PollReason
	URL      string
	Status   resources.Status
	Attempts int
}

func (e *PollError) Error() string {
	if e.Reason == PollFailed {
		return fmt.Sprintf("polling %q: resource reached terminal status %q after %d attempt(s)",
			e.URL, e.Status, e.Attempts)
	}
	return fmt.Sprintf("polling %q: awaited state not reached after %d attempt(s)",
		e.URL, e.Attempts)
}

// pollObj repeatedly re-fetches the signed resource at url until done
// reports the awaited state, threading the nonce through every attempt:
// each fetch consumes exactly one nonce and stores exactly one replacement.
//
// failed classifies terminal states: when it returns a non-empty status the
// resource can never satisfy done and the poll stops immediately with
// a PollFailed error rather than burning the remaining attempts. Exhausting
// the attempt bound yields a PollTimeout error. Between attempts the loop
// sleeps for the configured interval, or longer when the server sends
// a larger Retry-After hint.
func pollObj[T any](c *Client, url string, rs *RequestSigner, nonce string,
	done func(*T) bool, failed func(*T) resources.Status) (*T, string, error) {
	cfg := c.Poll.withDefaults()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		obj, next, resp, err := postObj[T](c, url, rs, nonce)
		if err != nil {
			return nil, next, err
		}
		nonce = next

		if done(obj) {
			return obj, nonce, nil
		}
		if status := failed(obj); status != "" {
			return nil, nonce, &PollError{
				Reason:   PollFailed,
				URL:      url,
				Status:   status,
				Attempts: attempt,
			}
		}

		if attempt < cfg.MaxAttempts {
			time.Sleep(retryAfter(resp, cfg.Interval))
		}
	}

	return nil, nonce, &PollError{
		Reason:   PollTimeout,
		URL:      url,
		Attempts: cfg.MaxAttempts,
	}
}

// retryAfter returns the wait before the next poll attempt: the configured
// interval, or the server's Retry-After hint when that asks for more.
func retryAfter(resp *acmenet.NetResponse, interval time.Duration) time.Duration {
	header := resp.Response.Header.Get("Retry-After")
	if header == "" {
		return interval
	}

	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		if d := time.Duration(secs) * time.Second; d > interval {
			return d
		}
		return interval
	}

	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > interval {
			return d
		}
	}

	return interval
}
