package validator

import (
	"driveo/pkg/logger"
	"driveo/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type AuthValidator struct {
	validate *validator.Validate
}

func NewAuthValidator(log *logger.Logger) *AuthValidator {
	return &AuthValidator{validate: validation.New(log)}
}

// Validate checks a request body and returns validation.ValidationErrors on failure.
func (v *AuthValidator) Validate(req any) error {
	return validation.Struct(v.validate, req)
}
