package handlers

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/hkaraoglu/dealer-auth/internal/models"
)

// ValidationErrorResponse represents a validation error with field-level details
type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// phoneRegex accepts international phone formats: optional leading +, then
// digits with spaces, dashes and parentheses, 7 to 30 characters total.
var phoneRegex = regexp.MustCompile(`^[+]?[-()\d\s]{7,30}$`)

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// The tag receives dereferenced pointer values, so optional phone
	// fields validate only when present.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	// Optional fields validate only when they carry a value; an absent key
	// or an explicit null both skip the tag via omitempty.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if opt, ok := field.Interface().(models.Optional[string]); ok && opt.Value != nil {
			return *opt.Value
		}
		return nil
	}, models.Optional[string]{})
	return v
}

// ValidateRequest validates a request struct using go-playground/validator
// Returns a user-friendly error message if validation fails
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("validation failed: %s: %s", fe.Field(), formatValidationError(fe))
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
