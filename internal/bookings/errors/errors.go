package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged means the booking left the expected status before the write landed.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	ErrLockHeld = errors.New("booking lock is held by another request")
)
