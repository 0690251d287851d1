// File: internal/middleware/recovery.go
package middleware

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"bridgeus/internal/response"
	"bridgeus/internal/services"
	"bridgeus/internal/utils/appinfo"

	"go.uber.org/zap"
)

// RecoveryConfig holds configuration for panic recovery middleware
type RecoveryConfig struct {
	EnableStackTrace bool `json:"enable_stack_trace"`
	MaxStackFrames   int  `json:"max_stack_frames"`
}

// DefaultRecoveryConfig returns production-ready recovery configuration
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		EnableStackTrace: true,
		MaxStackFrames:   20,
	}
}

// Recovery turns a handler panic into a 500 envelope and logs it with the
// request-scoped logger
func Recovery(config *RecoveryConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultRecoveryConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this sentinel to abort a response on purpose
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				fields := []zap.Field{
					zap.String("event", "panic_recovered"),
					zap.Any("panic_error", rec),
					zap.String("panic_type", fmt.Sprintf("%T", rec)),
					zap.String("environment", appinfo.GetEnvironment()),
					zap.String("version", appinfo.GetVersion()),
					zap.Int("goroutines", runtime.NumGoroutine()),
				}
				if config.EnableStackTrace {
					fields = append(fields, zap.Strings("stack_trace", captureStackTrace(config.MaxStackFrames)))
				}
				GetRequestLogger(r.Context()).Error("Panic recovered", fields...)

				response.QuickError(w, r, services.NewInternalError("internal server error", fmt.Errorf("panic: %v", rec)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// captureStackTrace formats the panicking goroutine's frames
func captureStackTrace(maxFrames int) []string {
	pcs := make([]uintptr, maxFrames+3)
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, maxFrames)
	for len(out) < maxFrames {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			out = append(out, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return out
}
