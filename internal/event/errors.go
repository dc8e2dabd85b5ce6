package event

import "errors"

var (
	ErrInvalidEventType = errors.New("invalid event type")

	ErrInvalidUserID = errors.New("invalid user id")

	ErrInvalidSessionID = errors.New("invalid session id")

	ErrInvalidPageURL = errors.New("invalid page url")

	ErrInvalidPayload = errors.New("invalid event payload")

	ErrInvalidBeacon = errors.New("invalid beacon")

	// ErrEventRejected means the store refused the row (constraint violation).
	ErrEventRejected = errors.New("event rejected by store")

	ErrEmptyBatch = errors.New("no events provided")
)
