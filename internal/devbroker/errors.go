package devbroker

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("devbroker: already started")

	// ErrListenFailed is returned when the TCP listener cannot be bound.
	ErrListenFailed = errors.New("devbroker: listen failed")

	// ErrInvalidConfig is returned for an unusable configuration.
	ErrInvalidConfig = errors.New("devbroker: invalid configuration")
)
