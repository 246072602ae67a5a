// Package app wires configuration into a ready Feed. Both commands share it.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pricefeed/internal/cache"
	"pricefeed/internal/config"
	"pricefeed/internal/feed"
	"pricefeed/internal/httpx"
	"pricefeed/internal/provider"
	"pricefeed/internal/provider/alphavantage"
	"pricefeed/internal/provider/ratelimit"
	"pricefeed/internal/series"
)

// Build opens the cache directory and assembles the rate limited Alpha Vantage provider
// behind a Feed.
func Build(cfg config.Config, log *logrus.Logger) (*feed.Feed, *cache.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	store, err := cache.Open(cfg.Cache.Dir, cache.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	av, err := alphavantage.NewClient(
		cfg.AlphaVantage.APIKey,
		alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL),
		alphavantage.WithSymbolSuffix(cfg.AlphaVantage.SymbolSuffix),
		alphavantage.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("alphavantage client: %w", err)
	}
	var p provider.Provider = av
	if cfg.AlphaVantage.MaxRequestsPerMinute > 0 {
		p = &ratelimit.Limited{P: p, Limiter: ratelimit.PerMinute(cfg.AlphaVantage.MaxRequestsPerMinute, cfg.AlphaVantage.Burst)}
	}

	log.WithFields(logrus.Fields{
		"provider":  p.Name(),
		"cache_dir": store.Dir(),
		"max_rpm":   cfg.AlphaVantage.MaxRequestsPerMinute,
		"entries":   len(store.List()),
	}).Info("feed ready")
	return feed.New(p, store, feed.WithLogger(log)), store, nil
}

var boundLayouts = []string{time.RFC3339, "2006-01-02T15:04"}

// ParseWindow reads request bounds. A bare date (YYYY-MM-DD) spans its whole day: from
// starts at 00:00 and to ends at 23:59. Full timestamps (RFC 3339, or YYYY-MM-DD_HH-MM in
// UTC) are taken as given.
func ParseWindow(from, to string) (series.Window, error) {
	start, err := parseBound(from, false)
	if err != nil {
		return series.Window{}, fmt.Errorf("from: %w", err)
	}
	end, err := parseBound(to, true)
	if err != nil {
		return series.Window{}, fmt.Errorf("to: %w", err)
	}
	return series.NewWindow(start, end)
}

func parseBound(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		if endOfDay {
			return d.Add(24*time.Hour - time.Minute), nil
		}
		return d, nil
	}
	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := series.DecodeMinute(s); err == nil {
		return t, nil
	}
	return time.Time{}, &series.ParseError{Input: s, Reason: "expected YYYY-MM-DD, RFC 3339 or YYYY-MM-DD_HH-MM"}
}
