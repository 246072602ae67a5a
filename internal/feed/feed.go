// Package feed answers "prices for asset X over window W at timeframe T" from the disk
// cache when it covers W, and from the provider otherwise.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pricefeed/internal/cache"
	"pricefeed/internal/logging"
	"pricefeed/internal/normalize"
	"pricefeed/internal/provider"
	"pricefeed/internal/series"
)

// Fetcher is implemented by *Feed and *Serialized.
type Fetcher interface {
	Fetch(ctx context.Context, asset string, w series.Window, tf series.Timeframe) (*Result, error)
}

// Result is the answer to one Fetch: the points of the requested window in chronological
// order.
type Result struct {
	Asset     string
	Timeframe series.Timeframe
	Series    *series.Series
}

// Start returns the earliest interval open, or the zero time when empty.
func (r *Result) Start() time.Time {
	start, _, _ := r.Series.Bounds()
	return start
}

// End returns the latest interval close, or the zero time when empty.
func (r *Result) End() time.Time {
	_, end, _ := r.Series.Bounds()
	return end
}

func (r *Result) Len() int { return r.Series.Len() }

// Feed is not safe for concurrent use on the same (asset, timeframe); wrap it in
// Serialized for that.
type Feed struct {
	p     provider.Provider
	store *cache.Store
	log   *logrus.Logger
}

type Option func(*Feed)

func WithLogger(l *logrus.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.log = l
		}
	}
}

func New(p provider.Provider, store *cache.Store, opts ...Option) *Feed {
	f := &Feed{p: p, store: store, log: logging.Discard()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch serves w from the cache entry for (asset, tf) when it covers w. Otherwise it drops
// the entry, downloads the provider's full history, stores all of it and returns the part
// inside w. Nothing is written unless every provider entry normalizes. Asset codes that
// could not name a cache file are rejected before any I/O.
func (f *Feed) Fetch(ctx context.Context, asset string, w series.Window, tf series.Timeframe) (*Result, error) {
	if err := series.ValidAsset(asset); err != nil {
		return nil, err
	}
	if err := normalize.Supported(tf); err != nil {
		return nil, err
	}
	log := f.log.WithFields(logrus.Fields{"asset": asset, "timeframe": tf.String()})

	if e, ok := f.store.Find(asset, tf); ok {
		if e.Covers(w) {
			full, err := f.store.Load(e)
			if err != nil {
				return nil, err
			}
			log.WithField("points", full.Len()).Debug("cache hit")
			return &Result{Asset: asset, Timeframe: tf, Series: full.Within(w)}, nil
		}
		log.WithFields(logrus.Fields{
			"covered_start": series.EncodeMinute(e.CoveredStart),
			"covered_end":   series.EncodeMinute(e.CoveredEnd),
		}).Debug("cache entry does not cover window")
		if err := f.store.Invalidate(e); err != nil {
			return nil, err
		}
	} else {
		log.Debug("cache miss")
	}

	doc, err := f.p.History(ctx, asset, tf)
	if err != nil {
		return nil, err
	}
	full, err := normalizeDocument(tf, doc)
	if err != nil {
		return nil, err
	}
	if full.Len() == 0 {
		return nil, &provider.DataFormatError{Message: fmt.Sprintf("%s returned no %s bars for %s", f.p.Name(), tf, asset)}
	}
	if _, err := f.store.Store(asset, tf, full); err != nil {
		return nil, err
	}
	log.WithField("points", full.Len()).Info("fetched from provider")
	return &Result{Asset: asset, Timeframe: tf, Series: full.Within(w)}, nil
}

func normalizeDocument(tf series.Timeframe, doc *provider.Document) (*series.Series, error) {
	full := series.New()
	if doc == nil {
		return full, nil
	}
	for _, en := range doc.Entries {
		date, err := normalize.ParseDate(en.Date)
		if err != nil {
			return nil, err
		}
		iv, q, err := normalize.Normalize(tf, date, en.Quote)
		if err != nil {
			return nil, err
		}
		full.Put(iv, q)
	}
	return full, nil
}
