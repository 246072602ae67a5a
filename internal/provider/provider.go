package provider

import (
	"context"
	"fmt"

	"pricefeed/internal/normalize"
	"pricefeed/internal/series"
)

// Entry is one provider bar keyed by its reported calendar date (YYYY-MM-DD).
type Entry struct {
	Date  string
	Quote normalize.RawQuote
}

// Document is the full raw history for one asset and timeframe, in the order the
// provider sent it.
type Document struct {
	Timeframe series.Timeframe
	Entries   []Entry
}

//go:generate mockgen -package=feed_test -destination=../feed/mock_provider_test.go -source=provider.go Provider
type Provider interface {
	Name() string
	// History returns the provider's complete history for asset at tf.
	History(ctx context.Context, asset string, tf series.Timeframe) (*Document, error)
}

// ProviderError reports a transport-level failure: the provider was unreachable (Status 0,
// Err set) or did not answer with success.
type ProviderError struct {
	Status int
	URL    string
	Body   string
	Err    error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
	case e.Body != "":
		return fmt.Sprintf("GET %s -> %d: %s", e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("GET %s -> %d", e.URL, e.Status)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DataFormatError reports a payload that signals an error or lacks the expected series.
type DataFormatError struct {
	Message string
}

func (e *DataFormatError) Error() string {
	return "provider data: " + e.Message
}
