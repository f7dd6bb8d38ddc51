package errors

import "errors"

var (
	ErrNotFound = errors.New("vehicle not found")

	ErrInvalidID = errors.New("invalid vehicle ID format")

	ErrDuplicateRegistration = errors.New("vehicle with this registration number already exists")

	ErrUnknownLocation = errors.New("location is not an active location in the district")

	ErrActiveBookings = errors.New("vehicle has active bookings")
)
