package tracking

import "errors"

var (
	ErrAlreadyMounted = errors.New("tracker already mounted")

	ErrTerminated = errors.New("tracker session terminated")

	ErrNotMounted = errors.New("tracker not mounted")
)
