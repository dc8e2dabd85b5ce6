package identity

import "errors"

var (
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrInvalidSubject = errors.New("token subject is not a user id")

	ErrMissingSecret = errors.New("jwt secret is not configured")

	ErrAuthUnavailable = errors.New("auth server unavailable")
)
