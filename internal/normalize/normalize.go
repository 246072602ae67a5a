// Package normalize turns a provider's calendar-date keyed bar into a canonical session
// interval. The hour offsets below must stay exactly as they are: cache files written by
// earlier runs are keyed by them.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"pricefeed/internal/series"
)

// RawQuote is a bar as reported by the provider, prices still in text form.
type RawQuote struct {
	Open  string
	High  string
	Low   string
	Close string
}

const dateLayout = time.DateOnly

// Supported returns nil for the timeframes this package can normalize.
func Supported(tf series.Timeframe) error {
	switch tf {
	case series.Daily, series.Weekly, series.Monthly:
		return nil
	}
	return &UnsupportedTimeframeError{Timeframe: tf}
}

// ParseDate parses a provider date key (YYYY-MM-DD) as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &series.ParseError{Input: s, Reason: err.Error()}
	}
	return d.UTC(), nil
}

// Normalize maps one reported (date, quote) pair to its session interval and parsed quote.
func Normalize(tf series.Timeframe, date time.Time, raw RawQuote) (series.Interval, series.OHLC, error) {
	var (
		iv  series.Interval
		err error
	)
	switch tf {
	case series.Daily:
		iv, err = dailyInterval(date)
	case series.Weekly:
		iv, err = weeklyInterval(date)
	case series.Monthly:
		iv, err = monthlyInterval(date)
	default:
		return series.Interval{}, series.OHLC{}, &UnsupportedTimeframeError{Timeframe: tf}
	}
	if err != nil {
		return series.Interval{}, series.OHLC{}, err
	}
	q, err := parseQuote(raw)
	if err != nil {
		return series.Interval{}, series.OHLC{}, err
	}
	return iv, q, nil
}

func dailyInterval(d time.Time) (series.Interval, error) {
	return series.NewInterval(d.Add(10*time.Hour), d.Add(18*time.Hour))
}

// weeklyOffsets maps the weekday of the reported last trading day to the hour offsets of
// the week's open and close.
func weeklyOffsets(wd time.Weekday) (open, closeAt time.Duration, ok bool) {
	switch wd {
	case time.Friday:
		return -86 * time.Hour, 18 * time.Hour, true
	case time.Thursday:
		return -62 * time.Hour, 42 * time.Hour, true
	case time.Wednesday:
		return -38 * time.Hour, 66 * time.Hour, true
	case time.Tuesday:
		return -14 * time.Hour, 90 * time.Hour, true
	case time.Monday:
		return 8 * time.Hour, 114 * time.Hour, true
	case time.Saturday, time.Sunday:
		return 0, 0, false
	}
	return 0, 0, false
}

func weeklyInterval(d time.Time) (series.Interval, error) {
	open, closeAt, ok := weeklyOffsets(d.Weekday())
	if !ok {
		return series.Interval{}, &DataConsistencyError{
			Timeframe: series.Weekly,
			Date:      d,
			Reason:    "weekly bars must be reported on a weekday, got " + d.Weekday().String(),
		}
	}
	return series.NewInterval(d.Add(open), d.Add(closeAt))
}

// monthlyOpenOffset maps the weekday of the first calendar day of the month to the hour
// offset of the month's first session open.
func monthlyOpenOffset(wd time.Weekday) time.Duration {
	switch wd {
	case time.Saturday:
		return 58 * time.Hour
	case time.Monday:
		return 34 * time.Hour
	case time.Sunday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday:
		return 10 * time.Hour
	}
	return 10 * time.Hour
}

// monthlyInterval opens on the month's first session and closes on the reported last
// trading day. A month still in progress can report a day before the computed open; the
// open is then pulled back to the close.
func monthlyInterval(last time.Time) (series.Interval, error) {
	first := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	open := first.Add(monthlyOpenOffset(first.Weekday()))
	closeAt := last.Add(18 * time.Hour)
	if open.After(closeAt) {
		open = closeAt
	}
	return series.NewInterval(open, closeAt)
}

func parseQuote(raw RawQuote) (series.OHLC, error) {
	var q series.OHLC
	fields := []struct {
		name string
		text string
		dst  *float64
	}{
		{"open", raw.Open, &q.Open},
		{"high", raw.High, &q.High},
		{"low", raw.Low, &q.Low},
		{"close", raw.Close, &q.Close},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.text), 64)
		if err != nil {
			return series.OHLC{}, &NumericParseError{Field: f.name, Value: f.text, Err: err}
		}
		*f.dst = v
	}
	return q, nil
}
