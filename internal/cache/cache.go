// Package cache persists normalized price series on local disk, one file per
// (asset, timeframe). The file name carries the covered range so a lookup never has to
// open the file to decide whether a request can be served from it.
//
// The index is safe for concurrent use, but operations on the same (asset, timeframe)
// race on its file and must be serialized by the caller. Two processes sharing a
// directory are not supported.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pricefeed/internal/logging"
	"pricefeed/internal/series"
)

const tempPrefix = ".tmp-"

// Entry describes one persisted series. CoveredStart and CoveredEnd are the earliest
// interval open and latest interval close of the whole stored series.
type Entry struct {
	Asset        string
	Timeframe    series.Timeframe
	CoveredStart time.Time
	CoveredEnd   time.Time
	Path         string
}

// Covers reports whether w lies entirely inside the entry's covered range.
func (e Entry) Covers(w series.Window) bool {
	return !e.CoveredStart.After(w.Start) && !e.CoveredEnd.Before(w.End)
}

func (e Entry) span() time.Duration { return e.CoveredEnd.Sub(e.CoveredStart) }

type key struct {
	asset string
	tf    series.Timeframe
}

// Store is a directory of cache files plus an index holding at most one entry per
// (asset, timeframe).
type Store struct {
	dir string
	log *logrus.Logger

	mu    sync.RWMutex
	index map[key]Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for index maintenance and writes.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open creates dir if needed and indexes the cache files already in it.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, log: logging.Discard(), index: map[key]Entry{}}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := s.reindex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// reindex rebuilds the index from the directory. When several files claim the same
// (asset, timeframe) the widest one is kept and the others are deleted. Leftover temp
// files from interrupted writes are removed.
func (s *Store) reindex() error {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	s.index = make(map[key]Entry, len(des))
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		path := filepath.Join(s.dir, name)
		if strings.HasPrefix(name, tempPrefix) {
			s.removeFile(path, "stale temp file")
			continue
		}
		asset, tf, start, end, err := series.ParseCacheFilename(name)
		if err == nil {
			err = series.ValidAsset(asset)
		}
		if err != nil {
			s.log.WithField("file", name).Debug("ignoring non-cache file")
			continue
		}
		e := Entry{Asset: asset, Timeframe: tf, CoveredStart: start, CoveredEnd: end, Path: path}
		k := key{asset, tf}
		cur, ok := s.index[k]
		if !ok {
			s.index[k] = e
			continue
		}
		keep, drop := preferred(cur, e)
		s.index[k] = keep
		s.removeFile(drop.Path, "duplicate cache entry")
	}
	s.log.WithFields(logrus.Fields{"dir": s.dir, "entries": len(s.index)}).Debug("cache indexed")
	return nil
}

// preferred orders two entries for the same key: wider coverage, then later end, then name.
func preferred(a, b Entry) (keep, drop Entry) {
	switch {
	case a.span() != b.span():
		if a.span() > b.span() {
			return a, b
		}
		return b, a
	case !a.CoveredEnd.Equal(b.CoveredEnd):
		if a.CoveredEnd.After(b.CoveredEnd) {
			return a, b
		}
		return b, a
	case a.Path > b.Path:
		return a, b
	}
	return b, a
}

func (s *Store) removeFile(path, reason string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.WithError(err).WithField("file", path).Warn("could not remove " + reason)
		return
	}
	s.log.WithField("file", path).Debug("removed " + reason)
}

// Find returns the entry for asset and tf, if any.
func (s *Store) Find(asset string, tf series.Timeframe) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[key{asset, tf}]
	return e, ok
}

// List returns every indexed entry ordered by asset then timeframe.
func (s *Store) List() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.index))
	for _, e := range s.index {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Asset != out[j].Asset {
			return out[i].Asset < out[j].Asset
		}
		return out[i].Timeframe < out[j].Timeframe
	})
	return out
}

// Load reads the whole entry file into memory.
func (s *Store) Load(e Entry) (*series.Series, error) {
	b, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	out, err := decode(b)
	if err != nil {
		var perr *series.ParseError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, &series.ParseError{Input: filepath.Base(e.Path), Reason: err.Error()}
	}
	return out, nil
}

// Invalidate deletes the entry's file and drops it from the index.
func (s *Store) Invalidate(e Entry) error {
	if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("invalidate cache entry: %w", err)
	}
	k := key{e.Asset, e.Timeframe}
	s.mu.Lock()
	if cur, ok := s.index[k]; ok && cur.Path == e.Path {
		delete(s.index, k)
	}
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"asset": e.Asset, "timeframe": e.Timeframe.String(), "file": filepath.Base(e.Path)}).Info("cache entry invalidated")
	return nil
}

// Store persists full as the entry for asset and tf. The file is written to a temp name
// and renamed into place, so a failure never leaves a partial entry behind. Any previous
// entry for the key is replaced.
func (s *Store) Store(asset string, tf series.Timeframe, full *series.Series) (Entry, error) {
	if err := series.ValidAsset(asset); err != nil {
		return Entry{}, err
	}
	start, end, ok := full.Bounds()
	if !ok {
		return Entry{}, fmt.Errorf("store %s %s: empty series", asset, tf)
	}
	b, err := encode(full)
	if err != nil {
		return Entry{}, fmt.Errorf("encode cache entry: %w", err)
	}

	name := series.CacheFilename(asset, tf, series.EncodeMinute(start), series.EncodeMinute(end))
	path := filepath.Join(s.dir, name)
	if err := writeFileAtomic(s.dir, path, b); err != nil {
		return Entry{}, err
	}

	e := Entry{Asset: asset, Timeframe: tf, CoveredStart: start, CoveredEnd: end, Path: path}
	k := key{asset, tf}
	s.mu.Lock()
	prev, hadPrev := s.index[k]
	s.index[k] = e
	s.mu.Unlock()
	if hadPrev && prev.Path != path {
		s.removeFile(prev.Path, "replaced cache entry")
	}
	s.log.WithFields(logrus.Fields{
		"asset":     asset,
		"timeframe": tf.String(),
		"points":    full.Len(),
		"file":      name,
	}).Info("cache entry stored")
	return e, nil
}

func writeFileAtomic(dir, path string, b []byte) error {
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

// encode writes {"<open>|<close>": "o,h,l,c", ...}. encoding/json sorts map keys, and
// minute tokens sort chronologically.
func encode(s *series.Series) ([]byte, error) {
	m := make(map[string]string, s.Len())
	for _, p := range s.Points() {
		m[series.EncodeInterval(p.Interval)] = series.EncodeOHLC(p.Quote)
	}
	return json.Marshal(m)
}

// decode reads the object in file order.
func decode(b []byte) (*series.Series, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	out := series.New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		k, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var v string
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("value for %s: %w", k, err)
		}
		iv, err := series.DecodeInterval(k)
		if err != nil {
			return nil, err
		}
		q, err := series.DecodeOHLC(v)
		if err != nil {
			return nil, err
		}
		out.Put(iv, q)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return out, nil
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
