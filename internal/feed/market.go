package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"pricefeed/internal/series"
)

// LoadMarket fetches every distinct asset over the same window and timeframe, at most
// concurrency at a time (unbounded when concurrency <= 0). The first failure cancels the
// remaining fetches and is returned with the asset it belongs to.
func LoadMarket(ctx context.Context, f Fetcher, assets []string, w series.Window, tf series.Timeframe, concurrency int) (map[string]*Result, error) {
	out := make(map[string]*Result, len(assets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}

		g.Go(func() error {
			res, err := f.Fetch(gctx, a, w, tf)
			if err != nil {
				return fmt.Errorf("%s: %w", a, err)
			}
			mu.Lock()
			out[a] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
