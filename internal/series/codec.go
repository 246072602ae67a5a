package series

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// minuteLayout is the token format shared by cache keys and cache filenames.
const minuteLayout = "2006-01-02_15-04"

const (
	intervalSep = "|"
	fileExt     = ".data"
)

// Minute normalizes t to a UTC timestamp truncated to minute resolution.
func Minute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// EncodeMinute formats t as YYYY-MM-DD_HH-MM in UTC.
func EncodeMinute(t time.Time) string {
	return t.UTC().Format(minuteLayout)
}

// DecodeMinute parses a YYYY-MM-DD_HH-MM token. Out of range fields are rejected.
func DecodeMinute(token string) (time.Time, error) {
	if len(token) != len(minuteLayout) {
		return time.Time{}, &ParseError{Input: token, Reason: "minute token must be YYYY-MM-DD_HH-MM"}
	}
	t, err := time.Parse(minuteLayout, token)
	if err != nil {
		return time.Time{}, &ParseError{Input: token, Reason: err.Error()}
	}
	return Minute(t), nil
}

// EncodeInterval formats iv as "<open>|<close>".
func EncodeInterval(iv Interval) string {
	return EncodeMinute(iv.Open) + intervalSep + EncodeMinute(iv.Close)
}

// DecodeInterval parses "<open>|<close>".
func DecodeInterval(s string) (Interval, error) {
	parts := strings.Split(s, intervalSep)
	if len(parts) != 2 {
		return Interval{}, &ParseError{Input: s, Reason: "interval must have exactly two tokens"}
	}
	open, err := DecodeMinute(parts[0])
	if err != nil {
		return Interval{}, err
	}
	closeAt, err := DecodeMinute(parts[1])
	if err != nil {
		return Interval{}, err
	}
	iv, err := NewInterval(open, closeAt)
	if err != nil {
		return Interval{}, &ParseError{Input: s, Reason: err.Error()}
	}
	return iv, nil
}

// EncodeOHLC formats q as "open,high,low,close" using the shortest exact representation.
func EncodeOHLC(q OHLC) string {
	vals := [4]float64{q.Open, q.High, q.Low, q.Close}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// DecodeOHLC parses "open,high,low,close".
func DecodeOHLC(s string) (OHLC, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return OHLC{}, &ParseError{Input: s, Reason: "quote must have four comma separated values"}
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return OHLC{}, &ParseError{Input: s, Reason: err.Error()}
		}
		vals[i] = v
	}
	return OHLC{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}, nil
}

// ValidAsset checks that asset can name a file directly inside the cache directory.
// Dots are allowed (BRK.B), path separators and relative elements are not.
func ValidAsset(asset string) error {
	switch {
	case strings.TrimSpace(asset) == "":
		return &AssetError{Asset: asset, Reason: "empty"}
	case strings.ContainsAny(asset, `/\`+"\x00"):
		return &AssetError{Asset: asset, Reason: "contains a path separator or NUL"}
	case asset == "." || strings.Contains(asset, ".."):
		return &AssetError{Asset: asset, Reason: "contains \"..\""}
	case filepath.Base(asset) != asset:
		return &AssetError{Asset: asset, Reason: "not a plain file name"}
	}
	return nil
}

// CachePrefix is the filename prefix shared by every entry for asset and tf.
func CachePrefix(asset string, tf Timeframe) string {
	return asset + "." + tf.Tag() + "."
}

// CacheFilename builds "<asset>.<TAG>.<start>.<end>.data".
func CacheFilename(asset string, tf Timeframe, startToken, endToken string) string {
	return CachePrefix(asset, tf) + startToken + "." + endToken + fileExt
}

// ParseCacheFilename is the inverse of CacheFilename. Tokens never contain dots, so the
// name is split from the right and assets may contain dots themselves.
func ParseCacheFilename(name string) (asset string, tf Timeframe, start, end time.Time, err error) {
	fail := func(reason string) (string, Timeframe, time.Time, time.Time, error) {
		return "", 0, time.Time{}, time.Time{}, &ParseError{Input: name, Reason: reason}
	}
	base, ok := strings.CutSuffix(name, fileExt)
	if !ok {
		return fail("missing " + fileExt + " extension")
	}
	parts := strings.Split(base, ".")
	if len(parts) < 4 {
		return fail("want <asset>.<TIMEFRAME>.<start>.<end>" + fileExt)
	}
	n := len(parts)
	asset = strings.Join(parts[:n-3], ".")
	if asset == "" {
		return fail("empty asset")
	}
	tf, err = parseTag(parts[n-3])
	if err != nil {
		return fail(err.Error())
	}
	if start, err = DecodeMinute(parts[n-2]); err != nil {
		return "", 0, time.Time{}, time.Time{}, err
	}
	if end, err = DecodeMinute(parts[n-1]); err != nil {
		return "", 0, time.Time{}, time.Time{}, err
	}
	return asset, tf, start, end, nil
}

func parseTag(tag string) (Timeframe, error) {
	for _, tf := range []Timeframe{Minutes15, Hourly, Daily, Weekly, Monthly} {
		if tf.Tag() == tag {
			return tf, nil
		}
	}
	return 0, &ParseError{Input: tag, Reason: "unknown timeframe tag"}
}
