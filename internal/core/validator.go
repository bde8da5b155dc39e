package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sumandas0/querygate/pkg/utils"
)

var indexUIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Validator checks request payloads before they reach the engine. Structural
// rules live in struct tags; index uid and attribute name formats are custom
// validations shared by every write endpoint.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()

	validate.RegisterValidation("index_uid", func(fl validator.FieldLevel) bool {
		uid := fl.Field().String()
		return len(uid) <= 100 && indexUIDPattern.MatchString(uid)
	})

	validate.RegisterValidation("attribute_name", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" || len(name) > 200 {
			return false
		}
		return !strings.ContainsAny(name, "<>\x00")
	})

	return &Validator{validate: validate}
}

// ValidateStruct validates a payload and converts field failures into a
// client-addressable validation error with per-field details.
func (v *Validator) ValidateStruct(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return utils.NewAppError(utils.CodeValidation, "invalid request payload", err)
	}

	details := make(map[string]any, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = describeFieldError(fieldErr)
	}

	return utils.NewAppError(utils.CodeValidation, "request payload validation failed", err).
		WithDetails(details)
}

func describeFieldError(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "index_uid":
		return "must start with a letter or digit and contain only letters, digits, hyphens and underscores"
	case "attribute_name":
		return "must be 1-200 characters without angle brackets or control characters"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must contain at most %s item(s)", fieldErr.Param())
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}
