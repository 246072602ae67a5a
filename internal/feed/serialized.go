package feed

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pricefeed/internal/series"
)

// Serialized makes a Fetcher safe for concurrent callers. Calls for the same
// (asset, timeframe) run one at a time, and identical concurrent calls share one result.
//
// The shared call runs detached from any single caller's cancellation, so one client
// giving up never fails the others. Each caller still returns as soon as its own context
// is done; the shared call finishes in the background and keeps the cache warm. It
// carries the first caller's context values and is bounded by Timeout when set.
type Serialized struct {
	f Fetcher
	// Timeout caps one shared call. Zero leaves it to the provider's HTTP timeout.
	Timeout time.Duration

	group singleflight.Group
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewSerialized(f Fetcher) *Serialized {
	return &Serialized{f: f, locks: map[string]*keyLock{}}
}

func (s *Serialized) Fetch(ctx context.Context, asset string, w series.Window, tf series.Timeframe) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := asset + "|" + strconv.Itoa(int(tf))
	call := key + "|" + series.EncodeInterval(series.Interval{Open: w.Start, Close: w.End})
	ch := s.group.DoChan(call, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if s.Timeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, s.Timeout)
			defer cancel()
		}
		unlock := s.lock(key)
		defer unlock()
		return s.f.Fetch(shared, asset, w, tf)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

// lock acquires the mutex for key and returns its release. Idle locks are dropped.
func (s *Serialized) lock(key string) func() {
	s.mu.Lock()
	kl, ok := s.locks[key]
	if !ok {
		kl = &keyLock{}
		s.locks[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		s.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
