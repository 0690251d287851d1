// file: internal/middleware/structured_logger.go
package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig holds configuration for structured logging middleware
type LoggingConfig struct {
	SlowRequestThreshold time.Duration `json:"slow_request_threshold"`
	LogUserAgent         bool          `json:"log_user_agent"`
	// SkipPaths are not logged on success (health checks)
	SkipPaths []string `json:"skip_paths"`
}

// DefaultLoggingConfig returns production-ready logging configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SlowRequestThreshold: time.Second,
		LogUserAgent:         true,
		SkipPaths:            []string{"/health"},
	}
}

// StructuredLogging logs every completed request with the request-scoped
// logger. Level follows the status code and latency.
func StructuredLogging(config *LoggingConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := GetRequestStart(r.Context())
			writer := &StructuredResponseWriter{ResponseWriter: w}

			next.ServeHTTP(writer, r)

			duration := time.Since(start)
			status := writer.Status()
			if status < 400 && skipPath(r.URL.Path, config.SkipPaths) {
				return
			}

			fields := []zap.Field{
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.Int64("response_size", writer.bytesWritten),
			}
			if userID := GetUserID(r.Context()); userID != "" {
				fields = append(fields, zap.String("user_id", userID))
			}
			if config.LogUserAgent {
				fields = append(fields, zap.String("user_agent", r.UserAgent()))
			}
			if writer.hijacked {
				fields = append(fields, zap.Bool("upgraded", true))
			}

			logger := GetRequestLogger(r.Context())
			if ce := logger.Check(logLevel(status, duration, config), "Request completed"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}

// ===============================
// STRUCTURED RESPONSE WRITER
// ===============================

// StructuredResponseWriter captures status and size. It supports hijacking
// so websocket upgrades pass through.
type StructuredResponseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
	hijacked     bool
}

func (w *StructuredResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *StructuredResponseWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	written, err := w.ResponseWriter.Write(data)
	w.bytesWritten += int64(written)
	return written, err
}

func (w *StructuredResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("ResponseWriter does not support hijacking")
	}
	w.hijacked = true
	w.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (w *StructuredResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Status returns the HTTP status code
func (w *StructuredResponseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func logLevel(status int, duration time.Duration, config *LoggingConfig) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400, duration > config.SlowRequestThreshold:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func skipPath(path string, skip []string) bool {
	for _, p := range skip {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
