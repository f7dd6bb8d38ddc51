package validator

import (
	"fmt"
	"slices"
	"time"

	"driveo/pkg/logger"
	"driveo/pkg/model"
	"driveo/pkg/validation"

	"github.com/go-playground/validator/v10"
)

const (
	MaxImageSize = 5 << 20

	minRejectReason = 3
	maxRejectReason = 500
)

var imageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

type VehicleValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

func NewVehicleValidator(log *logger.Logger) *VehicleValidator {
	v := validation.New(log)

	log.Info("Vehicle validator initialized successfully")

	return &VehicleValidator{
		validate: v,
		logger:   log,
		now:      time.Now,
	}
}

// Validate checks the struct tags plus the rules spanning fields: the model
// year cannot be in the future beyond next year, and certificates must not be
// expired already.
func (v *VehicleValidator) Validate(vehicle *model.Vehicle) error {
	if err := validation.Struct(v.validate, vehicle); err != nil {
		return err
	}

	var errs validation.ValidationErrors
	now := v.now()

	if vehicle.Year > now.Year()+1 {
		errs = append(errs, validation.ValidationError{
			Field:   "year",
			Message: fmt.Sprintf("year must be at most %d", now.Year()+1),
		})
	}

	certificates := []struct {
		field string
		end   time.Time
	}{
		{"insurance_end", vehicle.InsuranceEnd},
		{"registration_end", vehicle.RegistrationEnd},
		{"pollution_end", vehicle.PollutionEnd},
	}
	for _, c := range certificates {
		if c.end.Before(now) {
			errs = append(errs, validation.ValidationError{
				Field:   c.field,
				Message: c.field + " has already passed",
			})
		}
	}

	if len(errs) > 0 {
		v.logger.Warn("Vehicle validation failed", "registration_number", vehicle.RegistrationNumber, "errors", len(errs))
		return errs
	}
	return nil
}

func (v *VehicleValidator) ValidateUpdate(update *model.VehicleUpdate) error {
	return validation.Struct(v.validate, update)
}

func (v *VehicleValidator) ValidateRejection(reason string) error {
	if n := len([]rune(reason)); n < minRejectReason || n > maxRejectReason {
		return validation.Field("reason", fmt.Sprintf("reason must be %d-%d characters", minRejectReason, maxRejectReason))
	}
	return nil
}

func (v *VehicleValidator) ValidateImage(contentType string, size int64) error {
	if !slices.Contains(imageContentTypes, contentType) {
		return validation.Field("image", "image must be a JPEG, PNG or WebP file")
	}
	if size <= 0 || size > MaxImageSize {
		return validation.Field("image", fmt.Sprintf("image must be at most %d MB", MaxImageSize>>20))
	}
	return nil
}
