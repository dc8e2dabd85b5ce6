package query

import "errors"

var (
	ErrInvalidGranularity = errors.New("invalid granularity")

	ErrInvalidRange = errors.New("invalid time range")
)
