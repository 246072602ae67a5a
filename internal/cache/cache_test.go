package cache_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pricefeed/internal/cache"
	"pricefeed/internal/series"
)

func at(m time.Month, d, h int) time.Time {
	return time.Date(2021, m, d, h, 0, 0, 0, time.UTC)
}

func dailySeries(t *testing.T, days ...int) *series.Series {
	t.Helper()
	s := series.New()
	for _, d := range days {
		iv, err := series.NewInterval(at(3, d, 10), at(3, d, 18))
		require.NoError(t, err)
		s.Put(iv, series.OHLC{Open: float64(d), High: float64(d) + 0.5, Low: float64(d) - 0.25, Close: float64(d) + 0.125})
	}
	return s
}

func window(t *testing.T, start, end time.Time) series.Window {
	t.Helper()
	w, err := series.NewWindow(start, end)
	require.NoError(t, err)
	return w
}

func TestStore_StoreFindLoad(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := t.TempDir()
	store, err := cache.Open(dir)
	require.NoError(t, err)
	full := dailySeries(t, 17, 15, 16)

	// Act
	e, err := store.Store("PETR4", series.Daily, full)
	require.NoError(t, err)

	// Assert: filename encodes the covered range of the whole series
	require.Equal(t, "PETR4.DAILY.2021-03-15_10-00.2021-03-17_18-00.data", filepath.Base(e.Path))
	require.FileExists(t, e.Path)

	found, ok := store.Find("PETR4", series.Daily)
	require.True(t, ok)
	require.Equal(t, e, found)
	_, ok = store.Find("PETR4", series.Weekly)
	require.False(t, ok)

	// Assert: the file round-trips, keys come back chronologically
	loaded, err := store.Load(found)
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Len())
	for _, p := range full.Points() {
		q, ok := loaded.Get(p.Interval)
		require.True(t, ok)
		require.Equal(t, p.Quote, q)
	}
	require.True(t, loaded.Points()[0].Interval.Open.Equal(at(3, 15, 10)))
}

func TestStore_FileFormat(t *testing.T) {
	t.Parallel()

	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)

	e, err := store.Store("VALE3", series.Daily, dailySeries(t, 15))
	require.NoError(t, err)

	b, err := os.ReadFile(e.Path)
	require.NoError(t, err)
	require.JSONEq(t, `{"2021-03-15_10-00|2021-03-15_18-00":"15,15.5,14.75,15.125"}`, string(b))
}

func TestStore_RejectsEmptySeries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := cache.Open(dir)
	require.NoError(t, err)

	_, err = store.Store("PETR4", series.Daily, series.New())
	require.Error(t, err)

	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, des)
}

func TestEntry_Covers(t *testing.T) {
	t.Parallel()

	e := cache.Entry{CoveredStart: at(3, 1, 10), CoveredEnd: at(3, 31, 18)}

	cases := []struct {
		name  string
		w     series.Window
		cover bool
	}{
		{"inside", window(t, at(3, 5, 0), at(3, 20, 0)), true},
		{"exact", window(t, at(3, 1, 10), at(3, 31, 18)), true},
		{"starts before", window(t, at(2, 27, 0), at(3, 20, 0)), false},
		{"ends after", window(t, at(3, 5, 0), at(4, 2, 0)), false},
		{"wider", window(t, at(2, 1, 0), at(4, 30, 0)), false},
		{"disjoint", window(t, at(5, 1, 0), at(5, 30, 0)), false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.cover, e.Covers(tc.w), tc.name)
	}
}

func TestStore_Invalidate(t *testing.T) {
	t.Parallel()

	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	e, err := store.Store("PETR4", series.Daily, dailySeries(t, 15, 16))
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(e))

	require.NoFileExists(t, e.Path)
	_, ok := store.Find("PETR4", series.Daily)
	require.False(t, ok)

	// A second invalidation of a vanished file is not an error.
	require.NoError(t, store.Invalidate(e))
}

func TestStore_StoreReplacesPreviousEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := cache.Open(dir)
	require.NoError(t, err)

	old, err := store.Store("PETR4", series.Daily, dailySeries(t, 15, 16))
	require.NoError(t, err)
	cur, err := store.Store("PETR4", series.Daily, dailySeries(t, 15, 16, 17))
	require.NoError(t, err)

	require.NoFileExists(t, old.Path)
	require.FileExists(t, cur.Path)
	require.Len(t, store.List(), 1)
}

func TestOpen_IndexesExistingFiles(t *testing.T) {
	t.Parallel()

	// Arrange: write entries with one store, reopen with another
	dir := t.TempDir()
	first, err := cache.Open(dir)
	require.NoError(t, err)
	_, err = first.Store("PETR4", series.Daily, dailySeries(t, 15, 16))
	require.NoError(t, err)
	_, err = first.Store("BRK.B", series.Daily, dailySeries(t, 17))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a cache file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("{"), 0o644))

	// Act
	second, err := cache.Open(dir)
	require.NoError(t, err)

	// Assert
	list := second.List()
	require.Len(t, list, 2)
	require.Equal(t, "BRK.B", list[0].Asset)
	require.Equal(t, "PETR4", list[1].Asset)
	require.True(t, list[1].CoveredStart.Equal(at(3, 15, 10)))
	require.True(t, list[1].CoveredEnd.Equal(at(3, 16, 18)))
	require.FileExists(t, filepath.Join(dir, "README.txt"))
	require.NoFileExists(t, filepath.Join(dir, ".tmp-123"))
}

func TestOpen_DuplicateEntriesKeepWidest(t *testing.T) {
	t.Parallel()

	// Arrange: two files for the same key, as left by an older directory-scan cache
	dir := t.TempDir()
	narrow := filepath.Join(dir, "PETR4.DAILY.2021-03-15_10-00.2021-03-16_18-00.data")
	wide := filepath.Join(dir, "PETR4.DAILY.2021-03-01_10-00.2021-03-16_18-00.data")
	body := []byte(`{"2021-03-15_10-00|2021-03-15_18-00":"1,2,0.5,1.5"}`)
	require.NoError(t, os.WriteFile(narrow, body, 0o644))
	require.NoError(t, os.WriteFile(wide, body, 0o644))

	// Act
	store, err := cache.Open(dir)
	require.NoError(t, err)

	// Assert
	e, ok := store.Find("PETR4", series.Daily)
	require.True(t, ok)
	require.Equal(t, wide, e.Path)
	require.NoFileExists(t, narrow)
}

func TestStore_LoadMalformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := cache.Open(dir)
	require.NoError(t, err)

	for name, body := range map[string]string{
		"not json":       "garbage",
		"bad interval":   `{"2021-03-15_10-00": "1,2,0.5,1.5"}`,
		"bad quote":      `{"2021-03-15_10-00|2021-03-15_18-00": "1,2"}`,
		"non string val": `{"2021-03-15_10-00|2021-03-15_18-00": 1}`,
	} {
		path := filepath.Join(dir, "X.DAILY.2021-03-15_10-00.2021-03-15_18-00.data")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		_, err := store.Load(cache.Entry{Asset: "X", Timeframe: series.Daily, Path: path})

		var perr *series.ParseError
		require.Truef(t, errors.As(err, &perr), "%s: got %v", name, err)
	}
}

func TestStore_ErrInvalidAsset(t *testing.T) {
	t.Parallel()

	// Arrange: the cache lives one level below a directory we can inspect
	parent := t.TempDir()
	store, err := cache.Open(filepath.Join(parent, "cache"))
	require.NoError(t, err)

	// Act
	_, err = store.Store("../escaped", series.Daily, dailySeries(t, 15))

	// Assert
	var aerr *series.AssetError
	require.True(t, errors.As(err, &aerr))
	des, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, des, 1)
	require.Empty(t, store.List())
}
