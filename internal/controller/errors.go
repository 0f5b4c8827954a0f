package controller

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnecting is returned by Connect unless the controller is
	// Disconnected or Failed.
	ErrAlreadyConnecting = errors.New("controller: already connecting or connected")

	// ErrConnectionFailed is matched by every *ConnectionError.
	ErrConnectionFailed = errors.New("controller: connection failed")
)

// ReasonConnectionFailed is the Reason of every connection failure.
const ReasonConnectionFailed = "Connection Failed"

// ConnectionError is delivered to error observers when a connection
// attempt is refused or cannot reach the controller.
type ConnectionError struct {
	Reason string
	Code   byte // MQTT CONNACK return code
	Detail string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s (code %d): %s", e.Reason, e.Code, e.Detail)
}

// Unwrap lets errors.Is match both ErrConnectionFailed and the cause.
func (e *ConnectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnectionFailed}
	}
	return []error{ErrConnectionFailed, e.Err}
}
