package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"pricefeed/internal/provider"
	"pricefeed/internal/series"
)

// Limited wraps a provider and waits on a limiter before every History call.
// A nil limiter disables the gate.
type Limited struct {
	P       provider.Provider
	Limiter *rate.Limiter
}

// PerMinute builds a limiter allowing n requests per minute with the given burst.
// n <= 0 yields an unlimited limiter.
func PerMinute(n, burst int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), burst)
}

func (l *Limited) Name() string { return l.P.Name() }

func (l *Limited) History(ctx context.Context, asset string, tf series.Timeframe) (*provider.Document, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return l.P.History(ctx, asset, tf)
}
