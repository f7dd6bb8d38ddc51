package errors

import "errors"

var (
	ErrNotFound = errors.New("master data entry not found")

	ErrInvalidID = errors.New("invalid master data ID format")

	ErrDuplicate = errors.New("master data entry already exists")
)
