package alphavantage

import (
	"net/http"
	"net/url"
)

const (
	baseURL = "https://www.alphavantage.co"
	// defaultSymbolSuffix selects B3 (São Paulo) listings.
	defaultSymbolSuffix = ".SAO"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alphavantage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Alpha Vantage time series API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
	// symbolSuffix is appended to every asset code (exchange qualifier).
	symbolSuffix string
}

// Option is a configuration option for the Alpha Vantage client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithSymbolSuffix sets the exchange suffix appended to asset codes. An empty suffix
// sends asset codes unchanged.
func WithSymbolSuffix(suffix string) Option {
	return func(c *Client) {
		c.symbolSuffix = suffix
	}
}

// NewClient creates a new Alpha Vantage client authenticated with key.
func NewClient(key string, options ...Option) (*Client, error) {
	var client = &Client{
		baseURL:      baseURL,
		httpClient:   http.DefaultClient,
		header:       http.Header{},
		query:        url.Values{},
		symbolSuffix: defaultSymbolSuffix,
	}
	if key != "" {
		// https://www.alphavantage.co/documentation/
		client.query.Add("apikey", key)
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

func (c *Client) Name() string { return "AlphaVantage" }
