package series

import "fmt"

// ParseError reports a malformed minute token, interval string, quote string or filename.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// AssetError reports an asset code that cannot be used as part of a cache filename.
type AssetError struct {
	Asset  string
	Reason string
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("invalid asset %q: %s", e.Asset, e.Reason)
}
