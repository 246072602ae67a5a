package normalize

import (
	"fmt"
	"time"

	"pricefeed/internal/series"
)

// NumericParseError reports a quote field that is not a number.
type NumericParseError struct {
	Field string
	Value string
	Err   error
}

func (e *NumericParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *NumericParseError) Unwrap() error { return e.Err }

// UnsupportedTimeframeError is returned for intraday timeframes.
type UnsupportedTimeframeError struct {
	Timeframe series.Timeframe
}

func (e *UnsupportedTimeframeError) Error() string {
	return fmt.Sprintf("%s timeframe is not supported for historical daily data", e.Timeframe)
}

// DataConsistencyError reports a provider date that breaks the provider's own contract,
// such as a weekly bar reported on a weekend.
type DataConsistencyError struct {
	Timeframe series.Timeframe
	Date      time.Time
	Reason    string
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("%s bar dated %s: %s", e.Timeframe, e.Date.Format(time.DateOnly), e.Reason)
}
