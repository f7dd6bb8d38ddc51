package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	apperrors "driveo/pkg/errors"
	"driveo/pkg/logger"

	"github.com/go-playground/validator/v10"
)

var (
	registrationRegex = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{0,3}[0-9]{4}$|^[0-9]{2}BH[0-9]{4}[A-Z]{1,2}$`)
	otpRegex          = regexp.MustCompile(`^[0-9]{6}$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// AppError converts the list into a 422 carrying each field error.
func (v ValidationErrors) AppError() *apperrors.AppError {
	return apperrors.Validation("Validation failed", map[string]any{"errors": []ValidationError(v)})
}

func Field(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

// New builds a validator with the custom tags shared by every domain. JSON tag
// names are reported as field names.
func New(log *logger.Logger) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	custom := map[string]validator.Func{
		"vehicle_registration": func(fl validator.FieldLevel) bool {
			return registrationRegex.MatchString(fl.Field().String())
		},
		"otp_code": func(fl validator.FieldLevel) bool {
			return otpRegex.MatchString(fl.Field().String())
		},
		"password": func(fl validator.FieldLevel) bool {
			return StrongPassword(fl.Field().String())
		},
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatal("Failed to register validator", "tag", tag, "error", err)
		}
	}

	return v
}

// StrongPassword requires 8 to 72 bytes with at least one letter and one digit.
// bcrypt ignores input past 72 bytes.
func StrongPassword(s string) bool {
	if len(s) < 8 || len(s) > 72 {
		return false
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// Struct validates s and returns ValidationErrors for tag failures.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return Translate(validationErrs)
	}
	return err
}

func Translate(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), toSnake(err.Param()))
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +919876543210)", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "vehicle_registration":
			message = fmt.Sprintf("%s must be a valid registration number (e.g., KA01AB1234)", err.Field())
		case "otp_code":
			message = fmt.Sprintf("%s must be a 6-digit code", err.Field())
		case "password":
			message = fmt.Sprintf("%s must be 8-72 characters and contain a letter and a digit", err.Field())
		}

		out = append(out, ValidationError{Field: err.Field(), Message: message})
	}

	return out
}

// ToAppError maps validation failures to a 422 and leaves other errors alone.
func ToAppError(err error) error {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.AppError()
	}
	return err
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
