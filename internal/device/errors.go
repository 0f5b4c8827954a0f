package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidState) {
//	    // reject the user input
//	}
var (
	// ErrInvalidState is returned when a requested state cannot be
	// translated for the entity's class. Nothing is queued.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrUnknownClass is returned when a class name is not recognised.
	ErrUnknownClass = errors.New("device: unknown class")

	// ErrUnsupportedAction is returned when an action verb does not apply
	// to the entity's class, such as "open" on a light.
	ErrUnsupportedAction = errors.New("device: unsupported action")

	// ErrDeviceNotFound is returned when no entity exists for a uuid.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrNoCommandSink is returned when an entity has nowhere to send writes.
	ErrNoCommandSink = errors.New("device: no command sink")
)
