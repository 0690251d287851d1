package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"bridgeus/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so field errors match the request body
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.IsValidCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("category_filter", func(fl validator.FieldLevel) bool {
		c := fl.Field().String()
		return c == "" || c == models.CategoryAll || models.IsValidCategory(c)
	})
	_ = v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
		return models.TaskStatus(fl.Field().String()).Valid()
	})
	return v
}

// ValidateStruct validates a struct using go-playground/validator. Tag
// failures come back as models.ValidationErrors.
func ValidateStruct(s interface{}) error {
	if s == nil {
		return nil
	}

	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validator: expected a struct, got %T", s)
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := make(models.ValidationErrors, 0, len(ve))
	for _, e := range ve {
		out = append(out, models.ValidationError{
			Field:   e.Field(),
			Message: message(e),
			Code:    e.Tag(),
		})
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", e.Field(), e.Param())
	case "eqfield":
		return fmt.Sprintf("%s does not match", e.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	case "category", "category_filter":
		return fmt.Sprintf("unknown category %q", e.Value())
	case "task_status":
		return "status must be one of: draft, published, unpublished, closed"
	default:
		return fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag())
	}
}
