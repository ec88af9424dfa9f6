// Package net provides common HTTP utilities for talking to an ACME server.
package net

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime"
	"strings"

	"github.com/famfo/acmed/acme"
	"github.com/famfo/acmed/acme/resources"
)

const (
	version       = "0.1.0"
	userAgentBase = "famfo.acmed"
	locale        = "en-us"

	// ACME requests carrying a JWS body must use this media type.
	// See https://tools.ietf.org/html/rfc8555#section-6.2
	joseContentType = "application/jose+json"
)

type ACMENet struct {
	httpClient *http.Client
}

// New creates an ACMENet. If customCABundle is not empty it must be a file
// path to one or more PEM encoded CA certificates that will be used as the
// trust roots for HTTPS requests to the ACME server instead of the system
// roots.
func New(customCABundle string) (*ACMENet, error) {
	var caBundle *x509.CertPool
	if customCABundle != "" {
		pemBundle, err := os.ReadFile(customCABundle)
		if err != nil {
			return nil, err
		}

		caBundle = x509.NewCertPool()
		caBundle.AppendCertsFromPEM(pemBundle)
	}

	return &ACMENet{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: caBundle,
				},
			},
		},
	}, nil
}

// NetResponse holds the results from calling Do with an HTTP Request.
type NetResponse struct {
	// The HTTP Response object from making the request.
	Response *http.Response
	// The response body.
	RespBody []byte
	// The response dumped by httputil to a printable form.
	RespDump []byte
	// The request dumped by httputil to a printable form.
	ReqDump []byte
}

// Nonce returns the Replay-Nonce header value from the response, or an empty
// string when the server provided none.
func (r *NetResponse) Nonce() string {
	return r.Response.Header.Get(acme.REPLAY_NONCE_HEADER)
}

// Problem classifies an error-status response. For responses with a 4XX/5XX
// status code it returns the decoded RFC 7807 problem document as an error,
// or a plain error when the body is not a problem document. Successful
// responses return nil.
func (r *NetResponse) Problem() error {
	statusCode := r.Response.StatusCode
	if statusCode < http.StatusBadRequest {
		return nil
	}

	contentType := r.Response.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/problem+json") {
		var prob resources.Problem
		if err := json.Unmarshal(r.RespBody, &prob); err == nil {
			if prob.Status == 0 {
				prob.Status = statusCode
			}
			return &prob
		}
	}
	return fmt.Errorf("server returned HTTP status %d: %s",
		statusCode, string(r.RespBody))
}

// Do performs an HTTP request, returning a pointer to a NetResponse instance
// or an error. User-Agent and Accept-Language headers are automatically
// added to the request. The body of the HTTP Response is read into the
// NetResponse and can not be read again.
func (c *ACMENet) Do(req *http.Request) (*NetResponse, error) {
	return c.httpRequest(req)
}

func (c *ACMENet) httpRequest(req *http.Request) (*NetResponse, error) {
	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", locale)

	reqDump, err := httputil.DumpRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respDump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &NetResponse{
		Response: resp,
		RespBody: respBody,
		RespDump: respDump,
		ReqDump:  reqDump,
	}, nil
}

// HeadURL sends a HEAD request to the given URL. Used for the newNonce
// endpoint which carries no body.
func (c *ACMENet) HeadURL(url string) (*http.Response, error) {
	return c.httpClient.Head(url)
}

// PostRequest constructs a POST request to the given URL with the given JWS
// body. Returns an HTTP request or a non-nil error.
func (c *ACMENet) PostRequest(url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", joseContentType)
	return req, nil
}

// PostURL POSTs the given JWS body to the given URL. This is a wrapper
// combining PostRequest and Do.
func (c *ACMENet) PostURL(url string, body []byte) (*NetResponse, error) {
	req, err := c.PostRequest(url, body)
	if err != nil {
		return nil, err
	}

	return c.Do(req)
}

// GetRequest constructs a GET request to the given URL. Returns an HTTP
// request or a non-nil error.
func (c *ACMENet) GetRequest(url string) (*http.Request, error) {
	return http.NewRequest("GET", url, nil)
}

// GetURL sends a GET request to the given URL. This is a wrapper combining
// GetRequest and Do. Only the directory fetch uses a bare GET, every other
// resource access is a signed POST.
func (c *ACMENet) GetURL(url string) (*NetResponse, error) {
	req, err := c.GetRequest(url)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
