package validator

import (
	"fmt"
	"time"
	"unicode/utf8"

	"driveo/pkg/logger"
	"driveo/pkg/model"
	"driveo/pkg/validation"

	"github.com/go-playground/validator/v10"
)

const (
	// pickupGrace tolerates client clocks running slightly behind.
	pickupGrace = time.Minute

	maxReasonLength    = 500
	maxReferenceLength = 100
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	maxDays  int
	now      func() time.Time
}

func NewBookingValidator(log *logger.Logger, maxDays int) *BookingValidator {
	v := validation.New(log)

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
		maxDays:  maxDays,
		now:      time.Now,
	}
}

// ValidateRequest checks the tags, that pickup is not in the past and that the
// rental fits in the maximum duration.
func (v *BookingValidator) ValidateRequest(req *model.BookingRequest) error {
	if err := validation.Struct(v.validate, req); err != nil {
		return err
	}

	if req.PickupDate.Before(v.now().Add(-pickupGrace)) {
		return validation.Field("pickup_date", "pickup_date cannot be in the past")
	}

	if v.maxDays > 0 && req.DropoffDate.Sub(req.PickupDate) > time.Duration(v.maxDays)*24*time.Hour {
		return validation.Field("dropoff_date", fmt.Sprintf("a booking can last at most %d days", v.maxDays))
	}

	return nil
}

func (v *BookingValidator) ValidateReason(reason string) error {
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return validation.Field("reason", fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}
	return nil
}

func (v *BookingValidator) ValidatePayment(reference string) error {
	n := utf8.RuneCountInString(reference)
	if n == 0 {
		return validation.Field("reference", "reference is required")
	}
	if n > maxReferenceLength {
		return validation.Field("reference", fmt.Sprintf("reference must be at most %d characters", maxReferenceLength))
	}
	return nil
}

func (v *BookingValidator) ValidateStatus(status string) error {
	switch status {
	case model.BookingPending, model.BookingBooked, model.BookingOnTrip,
		model.BookingCompleted, model.BookingCancelled, model.BookingOverdue:
		return nil
	}
	return validation.Field("status", "status must be one of: pending booked on_trip completed cancelled overdue")
}
