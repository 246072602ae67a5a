package series

import (
	"fmt"
	"strings"
)

// Timeframe is the bar size requested from a provider.
type Timeframe int

const (
	Minutes15 Timeframe = iota
	Hourly
	Daily
	Weekly
	Monthly
)

// Tag is the upper-case name used inside cache filenames.
func (tf Timeframe) Tag() string {
	switch tf {
	case Minutes15:
		return "MINUTES15"
	case Hourly:
		return "HOURLY"
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	}
	return fmt.Sprintf("TIMEFRAME(%d)", int(tf))
}

func (tf Timeframe) String() string {
	switch tf {
	case Minutes15:
		return "15min"
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	}
	return tf.Tag()
}

// ParseTimeframe accepts either a filename tag ("WEEKLY") or the lower-case name ("weekly").
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minutes15", "15min", "minutes_15":
		return Minutes15, nil
	case "hourly", "60min":
		return Hourly, nil
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	}
	return 0, &ParseError{Input: s, Reason: "unknown timeframe"}
}
