package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	"pricefeed/internal/normalize"
	"pricefeed/internal/provider"
	"pricefeed/internal/series"
)

// endpoint describes one TIME_SERIES_* function and the key its bars live under.
type endpoint struct {
	function  string
	seriesKey string
}

func endpointFor(tf series.Timeframe) (endpoint, error) {
	switch tf {
	case series.Daily:
		return endpoint{"TIME_SERIES_DAILY", "Time Series (Daily)"}, nil
	case series.Weekly:
		return endpoint{"TIME_SERIES_WEEKLY", "Weekly Time Series"}, nil
	case series.Monthly:
		return endpoint{"TIME_SERIES_MONTHLY", "Monthly Time Series"}, nil
	}
	return endpoint{}, &normalize.UnsupportedTimeframeError{Timeframe: tf}
}

var _ provider.Provider = (*Client)(nil)

// History implements provider.Provider.
func (c *Client) History(ctx context.Context, asset string, tf series.Timeframe) (*provider.Document, error) {
	return c.TimeSeries(ctx, asset, tf)
}

// TimeSeries downloads the full (outputsize=full) history of asset at tf.
func (c *Client) TimeSeries(ctx context.Context, asset string, tf series.Timeframe, opts ...Option) (*provider.Document, error) {
	var override = &Client{
		baseURL:      c.baseURL,
		httpClient:   c.httpClient,
		header:       c.header.Clone(),
		query:        c.query,
		symbolSuffix: c.symbolSuffix,
	}
	for _, opt := range opts {
		opt(override)
	}

	ep, err := endpointFor(tf)
	if err != nil {
		return nil, err
	}

	query := maps.Clone(override.query)
	query.Set("function", ep.function)
	query.Set("symbol", asset+override.symbolSuffix)
	query.Set("outputsize", "full")

	url := fmt.Sprintf("%s/query?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, &provider.ProviderError{URL: redact(req), Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, &provider.ProviderError{Status: res.StatusCode, URL: redact(req), Body: strings.TrimSpace(string(b))}
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, &provider.DataFormatError{Message: fmt.Sprintf("decoding %s response: %v", ep.function, err)}
	}

	// {"Error Message": "Invalid API call. Please retry or visit the documentation ..."}
	if msg, ok := stringField(body, "Error Message"); ok {
		return nil, &provider.DataFormatError{
			Message: fmt.Sprintf("%s - URL: %s - verify that asset code %q is valid", msg, redact(req), asset),
		}
	}
	// Throttled calls answer 200 with a notice instead of data.
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := stringField(body, key); ok {
			return nil, &provider.DataFormatError{Message: msg}
		}
	}

	raw, ok := body[ep.seriesKey]
	if !ok {
		return nil, &provider.DataFormatError{Message: fmt.Sprintf("response has no %q object", ep.seriesKey)}
	}

	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, &provider.DataFormatError{Message: fmt.Sprintf("decoding %q: %v", ep.seriesKey, err)}
	}
	return &provider.Document{Timeframe: tf, Entries: entries}, nil
}

// decodeEntries walks the series object in document order.
//
//	"2021-03-19": {
//	  "1. open": "27.1000",
//	  "2. high": "28.0000",
//	  "3. low": "26.5500",
//	  "4. close": "27.8000",
//	  "5. volume": "103817300"
//	}
func decodeEntries(raw json.RawMessage) ([]provider.Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var entries []provider.Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		date, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var fields map[string]string
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("bar %s: %w", date, err)
		}
		entries = append(entries, provider.Entry{
			Date: date,
			Quote: normalize.RawQuote{
				Open:  fields["1. open"],
				High:  fields["2. high"],
				Low:   fields["3. low"],
				Close: fields["4. close"],
			},
		})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return entries, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringField(body map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := body[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}

// redact drops the API key from a request URL before it ends up in an error.
func redact(req *http.Request) string {
	u := *req.URL
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
