package feed

import (
	"encoding/json"
	"time"

	"pricefeed/internal/series"
)

type resultJSON struct {
	Asset     string      `json:"asset"`
	Timeframe string      `json:"timeframe"`
	Start     *time.Time  `json:"start,omitempty"`
	End       *time.Time  `json:"end,omitempty"`
	Points    []pointJSON `json:"points"`
}

type pointJSON struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	series.OHLC
}

// MarshalJSON renders the result as a flat, chronologically ordered list of points.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Asset:     r.Asset,
		Timeframe: r.Timeframe.String(),
		Points:    make([]pointJSON, 0, r.Len()),
	}
	if start, end, ok := r.Series.Bounds(); ok {
		out.Start, out.End = &start, &end
	}
	for _, p := range r.Series.Points() {
		out.Points = append(out.Points, pointJSON{OpenTime: p.Interval.Open, CloseTime: p.Interval.Close, OHLC: p.Quote})
	}
	return json.Marshal(out)
}
