package domain

import "errors"

// Domain errors, checked with errors.Is.
var (
	// ErrMissingField is returned when a builder is finalized without a required collaborator.
	ErrMissingField = errors.New("muxship: missing required field")

	// ErrDeliveryFailed is reported to a worker once a payload exhausted its attempts.
	ErrDeliveryFailed = errors.New("muxship: delivery failed")

	// ErrAlreadyRunning is returned when Start() is called on a running pipeline.
	ErrAlreadyRunning = errors.New("muxship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped pipeline.
	ErrNotRunning = errors.New("muxship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("muxship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("muxship: invalid configuration")
)
