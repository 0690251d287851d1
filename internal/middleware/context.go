// file: internal/middleware/context.go
package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"bridgeus/internal/contextutils"

	"go.uber.org/zap"
)

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	return contextutils.GetRequestID(ctx)
}

// GetRequestLogger extracts the request-scoped logger from context
func GetRequestLogger(ctx context.Context) *zap.Logger {
	return contextutils.GetLogger(ctx, nil)
}

// GetRequestStart extracts the request start time from context
func GetRequestStart(ctx context.Context) time.Time {
	if start, ok := ctx.Value(RequestStartKey).(time.Time); ok {
		return start
	}
	return time.Now()
}

// GetUserID returns the authenticated user id, or "" for anonymous requests
func GetUserID(ctx context.Context) string {
	return contextutils.GetUserID(ctx)
}

// ClientIP returns the host part of RemoteAddr. RealIP runs first, so
// proxy headers are already applied.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
