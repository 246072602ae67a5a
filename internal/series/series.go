// Package series holds the normalized price model shared by the provider, cache and feed
// layers, plus the text codec used for cache keys and cache filenames.
package series

import (
	"fmt"
	"sort"
	"time"
)

// Interval is one trading session's span. Open <= Close always holds.
type Interval struct {
	Open  time.Time
	Close time.Time
}

// NewInterval truncates both ends to the minute and checks ordering.
func NewInterval(open, closeAt time.Time) (Interval, error) {
	open, closeAt = Minute(open), Minute(closeAt)
	if open.After(closeAt) {
		return Interval{}, fmt.Errorf("interval open %s after close %s", EncodeMinute(open), EncodeMinute(closeAt))
	}
	return Interval{Open: open, Close: closeAt}, nil
}

func (iv Interval) String() string { return EncodeInterval(iv) }

// canonical strips location and monotonic readings so equal instants are equal map keys.
func (iv Interval) canonical() Interval {
	return Interval{Open: Minute(iv.Open), Close: Minute(iv.Close)}
}

// Within reports whether iv lies inside w, inclusive on both ends.
func (iv Interval) Within(w Window) bool {
	return !iv.Open.Before(w.Start) && !iv.Close.After(w.End)
}

// OHLC is the open/high/low/close quadruple for one session. No ordering between the
// fields is enforced.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Window is a requested time range, inclusive on both ends.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow truncates both ends to the minute and checks ordering.
func NewWindow(start, end time.Time) (Window, error) {
	start, end = Minute(start), Minute(end)
	if start.After(end) {
		return Window{}, fmt.Errorf("window start %s after end %s", EncodeMinute(start), EncodeMinute(end))
	}
	return Window{Start: start, End: end}, nil
}

// Point is one entry of a Series.
type Point struct {
	Interval Interval `json:"interval"`
	Quote    OHLC     `json:"quote"`
}

// Series maps intervals to quotes. Keys are unique and iteration follows insertion order.
// A Series is not safe for concurrent mutation; treat it as read-only once handed out.
type Series struct {
	order  []Interval
	quotes map[Interval]OHLC
}

func New() *Series {
	return &Series{quotes: map[Interval]OHLC{}}
}

// Put inserts or replaces the quote for iv. A replaced key keeps its original position.
func (s *Series) Put(iv Interval, q OHLC) {
	if s.quotes == nil {
		s.quotes = map[Interval]OHLC{}
	}
	iv = iv.canonical()
	if _, ok := s.quotes[iv]; !ok {
		s.order = append(s.order, iv)
	}
	s.quotes[iv] = q
}

func (s *Series) Get(iv Interval) (OHLC, bool) {
	if s == nil {
		return OHLC{}, false
	}
	q, ok := s.quotes[iv.canonical()]
	return q, ok
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Points returns the entries in insertion order.
func (s *Series) Points() []Point {
	if s == nil {
		return nil
	}
	out := make([]Point, 0, len(s.order))
	for _, iv := range s.order {
		out = append(out, Point{Interval: iv, Quote: s.quotes[iv]})
	}
	return out
}

// Bounds returns the earliest open and the latest close present. ok is false when empty.
func (s *Series) Bounds() (start, end time.Time, ok bool) {
	if s.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end = s.order[0].Open, s.order[0].Close
	for _, iv := range s.order[1:] {
		if iv.Open.Before(start) {
			start = iv.Open
		}
		if iv.Close.After(end) {
			end = iv.Close
		}
	}
	return start, end, true
}

// Within scans every entry and returns those whose interval lies inside w, ordered
// chronologically by open then close.
func (s *Series) Within(w Window) *Series {
	out := New()
	if s == nil {
		return out
	}
	keep := make([]Interval, 0, len(s.order))
	for _, iv := range s.order {
		if iv.Within(w) {
			keep = append(keep, iv)
		}
	}
	sort.Slice(keep, func(i, j int) bool {
		if !keep[i].Open.Equal(keep[j].Open) {
			return keep[i].Open.Before(keep[j].Open)
		}
		return keep[i].Close.Before(keep[j].Close)
	})
	for _, iv := range keep {
		out.Put(iv, s.quotes[iv])
	}
	return out
}
