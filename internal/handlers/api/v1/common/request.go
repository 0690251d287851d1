// file: internal/handlers/api/v1/common/request.go
package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"bridgeus/internal/middleware"
	"bridgeus/internal/models"
	"bridgeus/internal/response"
	"bridgeus/internal/services"
	"bridgeus/internal/validation"

	"github.com/gorilla/mux"
)

// MaxBodyBytes caps JSON request bodies
const MaxBodyBytes = 1 << 20

// ===============================
// BODY DECODING
// ===============================

// DecodeJSON reads the request body into dst. An empty body leaves dst
// untouched.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return services.NewValidationError("Invalid request body format", err)
	}
	return nil
}

// Bind decodes the body into dst and runs its validate tags
func Bind(r *http.Request, dst interface{}) error {
	if err := DecodeJSON(r, dst); err != nil {
		return err
	}
	return Validate(dst)
}

// Validate runs struct tag validation and converts the result into a
// detailed validation error
func Validate(s interface{}) error {
	err := validation.ValidateStruct(s)
	if err == nil {
		return nil
	}

	var errs models.ValidationErrors
	if !errors.As(err, &errs) {
		return services.NewValidationError("Invalid request", err)
	}
	fields := make([]services.FieldError, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, services.FieldError{
			Field:   e.Field,
			Value:   e.Value,
			Message: e.Message,
			Code:    e.Code,
		})
	}
	return services.NewDetailedValidationError("Invalid request", fields)
}

// ===============================
// PATH AND QUERY
// ===============================

// PathParam returns a required route variable
func PathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(mux.Vars(r)[name])
	if value == "" {
		return "", services.NewValidationError("missing path parameter "+name, nil)
	}
	return value, nil
}

// QueryParam returns a trimmed query value
func QueryParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

// ===============================
// CALLER
// ===============================

// RequireUserID returns the authenticated user id or writes a 401
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.QuickError(w, r, services.NewAuthenticationError("authentication required", services.ReasonInvalidCredentials, ""))
		return "", false
	}
	return userID, true
}

// Client returns the user agent and client address recorded on sessions
func Client(r *http.Request) (userAgent, ip string) {
	return r.UserAgent(), middleware.ClientIP(r)
}
