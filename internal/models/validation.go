// file: internal/models/validation.go
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ===============================
// VALIDATION ERRORS
// ===============================

// ValidationError represents a validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("validation failed with %d errors", len(e))
}

// Add adds a validation error
func (e *ValidationErrors) Add(field, message, code string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Err returns nil when empty so callers can return it directly
func (e ValidationErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ===============================
// FIELD RULES
// ===============================

// MinTaskTitleLength is the shortest accepted task title, in characters
const MinTaskTitleLength = 5

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	dateOnlyRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// EmailValidator validates email addresses
func EmailValidator(field, value string) *ValidationError {
	if value == "" {
		return &ValidationError{Field: field, Message: "email is required", Code: "required"}
	}
	if len(value) > 320 || !emailRegex.MatchString(value) {
		return &ValidationError{Field: field, Message: "invalid email format", Code: "invalid_format", Value: value}
	}
	return nil
}

// PasswordValidator checks only length; the sign-up form never required
// character classes.
func PasswordValidator(field, value string, minLength int) *ValidationError {
	if value == "" {
		return &ValidationError{Field: field, Message: "password is required", Code: "required"}
	}
	if utf8.RuneCountInString(value) < minLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("password must be at least %d characters", minLength),
			Code:    "too_short",
		}
	}
	if len(value) > 128 {
		return &ValidationError{Field: field, Message: "password must be 128 characters or less", Code: "too_long"}
	}
	return nil
}

// LengthValidator counts characters, not bytes
func LengthValidator(field, value string, minLength, maxLength int) *ValidationError {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if minLength > 0 && n == 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s is required", field), Code: "required"}
	}
	if n < minLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be at least %d characters", field, minLength),
			Code:    "too_short",
			Value:   value,
		}
	}
	if maxLength > 0 && n > maxLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be %d characters or less", field, maxLength),
			Code:    "too_long",
		}
	}
	return nil
}

// DeadlineValidator accepts an empty value or a YYYY-MM-DD calendar date
func DeadlineValidator(field, value string) *ValidationError {
	if value == "" {
		return nil
	}
	if !dateOnlyRegex.MatchString(value) {
		return &ValidationError{Field: field, Message: "deadline must be YYYY-MM-DD", Code: "invalid_format", Value: value}
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return &ValidationError{Field: field, Message: "deadline is not a valid date", Code: "invalid_format", Value: value}
	}
	return nil
}

// ===============================
// MODEL VALIDATORS
// ===============================

// Validate checks a task before it is written
func (t *Task) Validate() ValidationErrors {
	var errs ValidationErrors

	if err := LengthValidator("title", t.Title, MinTaskTitleLength, 100); err != nil {
		errs = append(errs, *err)
	}
	if err := LengthValidator("description", t.Description, 0, 5000); err != nil {
		errs = append(errs, *err)
	}
	if err := DeadlineValidator("deadline", t.Deadline); err != nil {
		errs = append(errs, *err)
	}
	if len(t.Categories) > len(Categories) {
		errs.Add("categories", "too many categories", "too_many", len(t.Categories))
	}
	for _, c := range t.Categories {
		if !IsValidCategory(c) {
			errs.Add("categories", fmt.Sprintf("unknown category %q", c), "invalid_value", c)
		}
	}
	if !t.Status.Valid() {
		errs.Add("status", "status must be one of: draft, published, unpublished, closed", "invalid_value", t.Status)
	}
	return errs
}

// Validate checks the editable student profile fields
func (s *Student) Validate() ValidationErrors {
	var errs ValidationErrors

	if err := LengthValidator("name", s.Name, 1, 100); err != nil {
		errs = append(errs, *err)
	}
	if err := LengthValidator("bio", s.Bio, 0, 1000); err != nil {
		errs = append(errs, *err)
	}
	if s.Year < 0 || s.Year > 6 {
		errs.Add("year", "year must be between 1 and 6", "invalid_range", s.Year)
	}
	return errs
}

// Validate checks the editable company profile fields
func (c *Company) Validate() ValidationErrors {
	var errs ValidationErrors

	if err := LengthValidator("companyName", c.CompanyName, 1, 100); err != nil {
		errs = append(errs, *err)
	}
	if err := LengthValidator("representativeName", c.RepresentativeName, 0, 100); err != nil {
		errs = append(errs, *err)
	}
	if err := LengthValidator("description", c.Description, 0, 2000); err != nil {
		errs = append(errs, *err)
	}
	return errs
}
