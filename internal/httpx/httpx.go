// Package httpx holds the outbound HTTP client market-data providers share.
package httpx

import (
	"net"
	"net/http"
	"time"
)

const userAgent = "pricefeed/1.0"

// Client sends provider requests. Its Do has the http.Client signature, so providers
// accept either.
//
// Every request goes to one host at a rate limited pace, so the pool stays small.
// Full-history documents are slow to start, so headers get a longer wait than connects.
type Client struct {
	HTTP *http.Client
	// UserAgent and Headers fill in what a request leaves unset.
	UserAgent string
	Headers   http.Header
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   4,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: userAgent,
		Headers:   http.Header{"Accept": {"application/json"}},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, vs := range c.Headers {
		if len(vs) > 0 && req.Header.Get(k) == "" {
			req.Header[http.CanonicalHeaderKey(k)] = vs
		}
	}
	return c.HTTP.Do(req)
}
