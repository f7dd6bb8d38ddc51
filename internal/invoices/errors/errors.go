package errors

import "errors"

var (
	ErrNotFound         = errors.New("invoice not found")
	ErrDuplicateBooking = errors.New("booking already has an invoice")
)
