package command

import "errors"

// Domain-specific errors for the command buffer.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrBackpressure is returned when a submit gave up waiting for room
	// because its context ended. It wraps the context error.
	ErrBackpressure = errors.New("command: buffer full")

	// ErrInvalidWrite is returned for a write without a uuid or key.
	ErrInvalidWrite = errors.New("command: write requires uuid and key")

	// ErrPublishFailed is returned by Flush when the batch could not be published.
	ErrPublishFailed = errors.New("command: publish failed")
)
