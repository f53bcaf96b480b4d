package samples

import "errors"

var (
	// ErrQoSNotGranted is returned when the broker grants a lower QoS than
	// the sample requires.
	ErrQoSNotGranted = errors.New("samples: requested QoS not granted")

	// ErrConnectionLost is returned when the connection drops while a
	// sample is running.
	ErrConnectionLost = errors.New("samples: connection lost")
)
