package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bridgeus/internal/contextutils"
	"bridgeus/internal/services"

	"go.uber.org/zap"
)

// ===============================
// RESPONSE CONFIGURATION
// ===============================

// Config holds configuration for the response system
type Config struct {
	PrettyJSON         bool   `json:"pretty_json"`
	IncludeRequestID   bool   `json:"include_request_id"`
	IncludeTimestamp   bool   `json:"include_timestamp"`
	IncludeVersion     bool   `json:"include_version"`
	APIVersion         string `json:"api_version"`
	MaskInternalErrors bool   `json:"mask_internal_errors"`
}

// DefaultConfig returns production-ready response configuration
func DefaultConfig() *Config {
	return &Config{
		PrettyJSON:         false,
		IncludeRequestID:   true,
		IncludeTimestamp:   true,
		IncludeVersion:     true,
		APIVersion:         "v1",
		MaskInternalErrors: true,
	}
}

// DevelopmentConfig keeps internal error messages visible
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.PrettyJSON = true
	cfg.MaskInternalErrors = false
	return cfg
}

// ===============================
// RESPONSE TYPES
// ===============================

// APIResponse represents a standardized API response
type APIResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *ErrorDetail  `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Timestamp int64         `json:"timestamp,omitempty"`
	Version   string        `json:"version,omitempty"`
}

// ErrorDetail represents error information in API responses
type ErrorDetail struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Fields  []FieldError           `json:"fields,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// FieldError represents field-specific validation errors
type FieldError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
}

// ResponseMeta contains metadata about the response
type ResponseMeta struct {
	Count int                    `json:"count"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// ===============================
// RESPONSE BUILDER
// ===============================

// Builder helps construct standardized responses
type Builder struct {
	config *Config
	logger *zap.Logger
}

// NewBuilder creates a new response builder
func NewBuilder(config *Config, logger *zap.Logger) *Builder {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		config: config,
		logger: logger,
	}
}

// Success creates a successful API response
func (b *Builder) Success(ctx context.Context, data interface{}) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		RequestID: b.getRequestID(ctx),
		Timestamp: b.getTimestamp(),
		Version:   b.getVersion(),
	}
}

// List creates a successful response carrying a collection and its size
func (b *Builder) List(ctx context.Context, data interface{}, count int) *APIResponse {
	resp := b.Success(ctx, data)
	resp.Meta = &ResponseMeta{Count: count}
	return resp
}

// Error creates an error response from any error
func (b *Builder) Error(ctx context.Context, err error) *APIResponse {
	detail := b.convertError(err)
	b.logError(ctx, err, detail)

	return &APIResponse{
		Success:   false,
		Error:     detail,
		RequestID: b.getRequestID(ctx),
		Timestamp: b.getTimestamp(),
		Version:   b.getVersion(),
	}
}

// ===============================
// HTTP RESPONSE WRITERS
// ===============================

// WriteJSON writes a JSON response with appropriate headers
func (b *Builder) WriteJSON(w http.ResponseWriter, r *http.Request, response *APIResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")

	w.WriteHeader(statusCode)
	if statusCode == http.StatusNoContent {
		return
	}

	encoder := json.NewEncoder(w)
	if b.config.PrettyJSON {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(response); err != nil {
		b.logger.Error("Failed to encode JSON response",
			zap.Error(err),
			zap.String("request_id", b.getRequestID(r.Context())),
		)
	}
}

// WriteSuccess writes a successful JSON response
func (b *Builder) WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	b.WriteJSON(w, r, b.Success(r.Context(), data), http.StatusOK)
}

// WriteList writes a collection with its count
func (b *Builder) WriteList(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	b.WriteJSON(w, r, b.List(r.Context(), data, count), http.StatusOK)
}

// WriteCreated writes a successful creation response
func (b *Builder) WriteCreated(w http.ResponseWriter, r *http.Request, data interface{}) {
	b.WriteJSON(w, r, b.Success(r.Context(), data), http.StatusCreated)
}

// WriteNoContent writes an empty 204 response
func (b *Builder) WriteNoContent(w http.ResponseWriter, r *http.Request) {
	b.WriteJSON(w, r, nil, http.StatusNoContent)
}

// WriteError writes an error response with the status code of its type
func (b *Builder) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	b.WriteJSON(w, r, b.Error(r.Context(), err), StatusCode(err))
}

// ===============================
// UTILITY METHODS
// ===============================

// convertError converts service errors to ErrorDetail
func (b *Builder) convertError(err error) *ErrorDetail {
	if err == nil {
		return nil
	}

	var valErr *services.ValidationError
	if errors.As(err, &valErr) {
		fields := make([]FieldError, len(valErr.Fields))
		for i, field := range valErr.Fields {
			fields[i] = FieldError{
				Field:   field.Field,
				Value:   field.Value,
				Message: field.Message,
				Code:    field.Code,
			}
		}
		return &ErrorDetail{
			Type:    valErr.Type,
			Message: valErr.Message,
			Code:    valErr.Code,
			Fields:  fields,
			Details: valErr.Details,
		}
	}

	serviceErr := services.GetServiceError(err)
	detail := &ErrorDetail{
		Type:    serviceErr.Type,
		Message: serviceErr.Message,
		Code:    serviceErr.Code,
		Details: serviceErr.Details,
	}
	if b.config.MaskInternalErrors && serviceErr.Type == services.ErrTypeInternal {
		detail.Message = "An internal error occurred"
		detail.Details = nil
	}
	return detail
}

// StatusCode determines the HTTP status code of an error
func StatusCode(err error) int {
	if serviceErr := services.GetServiceError(err); serviceErr != nil {
		return serviceErr.GetStatusCode()
	}
	return http.StatusInternalServerError
}

func (b *Builder) getRequestID(ctx context.Context) string {
	if !b.config.IncludeRequestID {
		return ""
	}
	return contextutils.GetRequestID(ctx)
}

func (b *Builder) getTimestamp() int64 {
	if !b.config.IncludeTimestamp {
		return 0
	}
	return time.Now().Unix()
}

func (b *Builder) getVersion() string {
	if !b.config.IncludeVersion {
		return ""
	}
	return b.config.APIVersion
}

// logError logs at a level matching the error type
func (b *Builder) logError(ctx context.Context, err error, detail *ErrorDetail) {
	logger := contextutils.GetLogger(ctx, b.logger)

	switch detail.Type {
	case services.ErrTypeValidation, services.ErrTypeNotFound, services.ErrTypePermissionDenied, services.ErrTypeAuth:
		logger.Info("Request rejected",
			zap.String("error_type", detail.Type),
			zap.String("error_code", detail.Code),
			zap.String("error_message", detail.Message),
		)
	case services.ErrTypeNetwork:
		logger.Warn("Backend unavailable",
			zap.String("error_type", detail.Type),
			zap.Error(err),
		)
	default:
		logger.Error("Internal error",
			zap.String("error_type", detail.Type),
			zap.Error(err),
		)
	}
}

// ===============================
// CONTEXT HELPERS
// ===============================

type contextKey string

const builderKey contextKey = "response_builder"

// GetBuilder extracts the response builder from context
func GetBuilder(ctx context.Context) *Builder {
	if builder, ok := ctx.Value(builderKey).(*Builder); ok {
		return builder
	}
	return nil
}

// SetBuilder stores the response builder in context
func SetBuilder(ctx context.Context, builder *Builder) context.Context {
	return context.WithValue(ctx, builderKey, builder)
}

// GetBuilderOrDefault returns the context builder or a default one
func GetBuilderOrDefault(ctx context.Context) *Builder {
	if builder := GetBuilder(ctx); builder != nil {
		return builder
	}
	return NewBuilder(DefaultConfig(), zap.NewNop())
}

// QuickSuccess writes data with the builder stored in the request context
func QuickSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	GetBuilderOrDefault(r.Context()).WriteSuccess(w, r, data)
}

// QuickError writes err with the builder stored in the request context
func QuickError(w http.ResponseWriter, r *http.Request, err error) {
	GetBuilderOrDefault(r.Context()).WriteError(w, r, err)
}

// Middleware stores builder in every request context
func Middleware(builder *Builder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(SetBuilder(r.Context(), builder)))
		})
	}
}
