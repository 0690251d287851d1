package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"bridgeus/internal/models"
	"bridgeus/internal/store"
)

// ===============================
// ERROR TYPES
// ===============================

// Error type names carried in ServiceError.Type
const (
	ErrTypeNotFound         = "NOT_FOUND"
	ErrTypePermissionDenied = "PERMISSION_DENIED"
	ErrTypeValidation       = "VALIDATION_ERROR"
	ErrTypeAuth             = "AUTH_ERROR"
	ErrTypeNetwork          = "NETWORK_ERROR"
	ErrTypeInternal         = "INTERNAL_ERROR"
)

// Authentication failure reasons
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonEmailInUse         = "email_in_use"
	ReasonWeakPassword       = "weak_password"
	ReasonTokenExpired       = "token_expired"
	ReasonProviderMismatch   = "provider_mismatch"
	ReasonTooManyAttempts    = "too_many_attempts"
	ReasonInvalidResetToken  = "invalid_reset_token"
)

// ServiceError represents a structured service error
type ServiceError struct {
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for this error
func (e *ServiceError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// ===============================
// ERROR CONSTRUCTORS
// ===============================

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewPermissionDeniedError is returned when an ownership check fails
func NewPermissionDeniedError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypePermissionDenied,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewNetworkError wraps a transient store or provider failure
func NewNetworkError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeNetwork,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ===============================
// SPECIALIZED ERRORS
// ===============================

// AuthenticationError represents authentication-related errors
type AuthenticationError struct {
	*ServiceError
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

// Unwrap exposes the embedded ServiceError to errors.As
func (e *AuthenticationError) Unwrap() error {
	return e.ServiceError
}

// NewAuthenticationError creates an authentication error. email_in_use
// maps to 409, too_many_attempts to 429, everything else to 401.
func NewAuthenticationError(message, reason, email string) *AuthenticationError {
	status := http.StatusUnauthorized
	switch reason {
	case ReasonEmailInUse:
		status = http.StatusConflict
	case ReasonTooManyAttempts:
		status = http.StatusTooManyRequests
	case ReasonWeakPassword, ReasonInvalidResetToken:
		status = http.StatusBadRequest
	}
	return &AuthenticationError{
		ServiceError: &ServiceError{
			Type:       ErrTypeAuth,
			Message:    message,
			Code:       reason,
			StatusCode: status,
		},
		Email:  email,
		Reason: reason,
	}
}

// ValidationError represents detailed validation errors
type ValidationError struct {
	*ServiceError
	Fields []FieldError `json:"fields,omitempty"`
}

// Unwrap exposes the embedded ServiceError to errors.As
func (e *ValidationError) Unwrap() error {
	return e.ServiceError
}

// FieldError represents a single field validation error
type FieldError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
}

// NewDetailedValidationError creates a validation error with field details
func NewDetailedValidationError(message string, fields []FieldError) *ValidationError {
	return &ValidationError{
		ServiceError: &ServiceError{
			Type:       ErrTypeValidation,
			Message:    message,
			StatusCode: http.StatusBadRequest,
		},
		Fields: fields,
	}
}

// validationFailed turns model or request validation output into a
// detailed validation error. Other errors pass through unchanged.
func validationFailed(message string, err error) error {
	if err == nil {
		return nil
	}
	var errs models.ValidationErrors
	if !errors.As(err, &errs) {
		return NewValidationError(message, err)
	}
	fields := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, FieldError{Field: e.Field, Value: e.Value, Message: e.Message, Code: e.Code})
	}
	return NewDetailedValidationError(message, fields)
}

// ===============================
// ERROR UTILITIES
// ===============================

// GetServiceError maps any error onto the taxonomy. Store failures that
// were not translated by a service are classified here.
func GetServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return &ServiceError{Type: ErrTypeNotFound, Message: "resource not found", StatusCode: http.StatusNotFound, Cause: err}
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return NewNetworkError("backend temporarily unavailable", err)
	case errors.Is(err, store.ErrInvalidArgument):
		return NewValidationError("invalid request", err)
	}

	var valErrs models.ValidationErrors
	if errors.As(err, &valErrs) {
		var detailed *ValidationError
		if errors.As(validationFailed("validation failed", valErrs), &detailed) {
			return detailed.ServiceError
		}
	}

	return NewInternalError("internal error", err)
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType string) bool {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.Type == errorType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return IsErrorType(err, ErrTypeNotFound)
}

// IsPermissionDeniedError checks if an error is an ownership failure
func IsPermissionDeniedError(err error) bool {
	return IsErrorType(err, ErrTypePermissionDenied)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return IsErrorType(err, ErrTypeValidation)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	return IsErrorType(err, ErrTypeAuth)
}

// IsNetworkError checks if an error is transient
func IsNetworkError(err error) bool {
	return IsErrorType(err, ErrTypeNetwork)
}

// AuthReason returns the reason of an authentication error, or ""
func AuthReason(err error) string {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ""
}

// ===============================
// COMMON ERROR PATTERNS
// ===============================

// ErrorContext provides additional context for errors
type ErrorContext struct {
	UserID    string                 `json:"user_id,omitempty"`
	Operation string                 `json:"operation,omitempty"`
	Resource  string                 `json:"resource,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// WithContext adds context to a service error
func (e *ServiceError) WithContext(ctx *ErrorContext) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	if ctx.UserID != "" {
		e.Details["user_id"] = ctx.UserID
	}
	if ctx.Operation != "" {
		e.Details["operation"] = ctx.Operation
	}
	if ctx.Resource != "" {
		e.Details["resource"] = ctx.Resource
	}
	for k, v := range ctx.Metadata {
		e.Details[k] = v
	}
	return e
}

// EntityNotFoundError creates a standard entity not found error
func EntityNotFoundError(entityType, id string) *ServiceError {
	return NewNotFoundError(fmt.Sprintf("%s not found", entityType)).WithContext(&ErrorContext{
		Resource: entityType,
		Metadata: map[string]interface{}{"id": id},
	})
}

// NotOwnerError creates a standard ownership error
func NotOwnerError(action, resource, userID string) *ServiceError {
	return NewPermissionDeniedError(fmt.Sprintf("you can only %s your own %s", action, resource)).WithContext(&ErrorContext{
		UserID:    userID,
		Operation: action,
		Resource:  resource,
	})
}

// storeError translates a repository failure. NotFound keeps the entity
// name; transient failures become NETWORK_ERROR.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return NewNetworkError(fmt.Sprintf("failed to %s", op), err)
	case errors.Is(err, store.ErrNotFound):
		return &ServiceError{Type: ErrTypeNotFound, Message: fmt.Sprintf("failed to %s: not found", op),
			StatusCode: http.StatusNotFound, Cause: err}
	case errors.Is(err, context.Canceled):
		return err
	}
	return NewInternalError(fmt.Sprintf("failed to %s", op), err)
}
