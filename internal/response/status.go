// File: internal/response/status.go
package response

import (
	"net/http"
	"strconv"
	"time"

	"bridgeus/internal/services"
)

// ===============================
// STATUS RESPONSES
// ===============================

// WriteStatus writes an error envelope for a bare status code
func (b *Builder) WriteStatus(w http.ResponseWriter, r *http.Request, code int, errorType, message string) {
	resp := &APIResponse{
		Success: false,
		Error: &ErrorDetail{
			Type:    errorType,
			Message: message,
		},
		RequestID: b.getRequestID(r.Context()),
		Timestamp: b.getTimestamp(),
		Version:   b.getVersion(),
	}
	b.WriteJSON(w, r, resp, code)
}

// WriteUnauthorized writes a 401 with the given auth reason as code
func (b *Builder) WriteUnauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	b.WriteError(w, r, services.NewAuthenticationError("authentication required", reason, ""))
}

// WriteForbidden writes a 403
func (b *Builder) WriteForbidden(w http.ResponseWriter, r *http.Request, message string) {
	b.WriteError(w, r, services.NewPermissionDeniedError(message))
}

// WriteNotFound writes a 404 for unknown routes
func (b *Builder) WriteNotFound(w http.ResponseWriter, r *http.Request) {
	b.WriteStatus(w, r, http.StatusNotFound, services.ErrTypeNotFound, "route not found")
}

// WriteMethodNotAllowed writes a 405
func (b *Builder) WriteMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	b.WriteStatus(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// WriteTooManyRequests writes a 429 with a Retry-After header
func (b *Builder) WriteTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	b.WriteStatus(w, r, http.StatusTooManyRequests, "RATE_LIMIT", "too many requests")
}

// ===============================
// HEALTH CHECK RESPONSES
// ===============================

// WriteHealthCheck writes a health report. Only an unhealthy report maps
// to 503; degraded dependencies still serve traffic.
func (b *Builder) WriteHealthCheck(w http.ResponseWriter, r *http.Request, health *services.ServiceHealth) {
	code := http.StatusOK
	if health.Status == services.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	resp := b.Success(r.Context(), health)
	resp.Success = code == http.StatusOK
	b.WriteJSON(w, r, resp, code)
}
