// file: internal/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"bridgeus/internal/contextutils"
	"bridgeus/internal/models"
	"bridgeus/internal/response"
	"bridgeus/internal/services"

	"go.uber.org/zap"
)

const (
	// AuthContextKey is the context key for the verified token
	AuthContextKey ContextKey = "auth_context"
	// UserKey is the context key for the loaded profile
	UserKey ContextKey = "user"
)

// AuthConfig holds authentication middleware configuration
type AuthConfig struct {
	// AllowQueryToken accepts ?access_token= on websocket upgrades, where
	// browsers cannot set headers
	AllowQueryToken   bool `json:"allow_query_token"`
	LogSuccessfulAuth bool `json:"log_successful_auth"`
	LogFailedAuth     bool `json:"log_failed_auth"`
}

// DefaultAuthConfig returns production-ready authentication configuration
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{
		AllowQueryToken:   true,
		LogSuccessfulAuth: false,
		LogFailedAuth:     true,
	}
}

// AuthContext holds authentication context for requests
type AuthContext struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	SessionID string    `json:"session_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthMiddleware verifies bearer tokens against the auth service
type AuthMiddleware struct {
	config *AuthConfig
	auth   services.AuthService
	users  services.UserService
	logger *zap.Logger
}

// NewAuthMiddleware creates authentication middleware
func NewAuthMiddleware(config *AuthConfig, auth services.AuthService, users services.UserService, logger *zap.Logger) *AuthMiddleware {
	if config == nil {
		config = DefaultAuthConfig()
	}
	return &AuthMiddleware{
		config: config,
		auth:   auth,
		users:  users,
		logger: logger,
	}
}

// ===============================
// MAIN AUTHENTICATION MIDDLEWARE
// ===============================

// Authenticate verifies the request token. With required false an absent
// or invalid token proceeds anonymously.
func (am *AuthMiddleware) Authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestLogger := GetRequestLogger(ctx)

			token := am.extractToken(r)
			if token == "" {
				if required {
					response.QuickError(w, r, services.NewAuthenticationError("authentication required", services.ReasonInvalidCredentials, ""))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := am.auth.VerifyToken(ctx, token)
			if err != nil {
				if am.config.LogFailedAuth {
					requestLogger.Warn("Authentication failed",
						zap.String("reason", services.AuthReason(err)),
						zap.Error(err),
					)
				}
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				response.QuickError(w, r, err)
				return
			}

			if am.config.LogSuccessfulAuth {
				requestLogger.Info("Authentication successful", zap.String("user_id", claims.UserID))
			}

			authCtx := &AuthContext{
				UserID:    claims.UserID,
				Email:     claims.Email,
				SessionID: claims.SessionID,
				Token:     token,
				ExpiresAt: claims.ExpiresAt,
			}
			ctx = context.WithValue(ctx, AuthContextKey, authCtx)
			ctx = contextutils.WithUserID(ctx, claims.UserID)
			ctx = contextutils.WithSessionID(ctx, claims.SessionID)
			ctx = contextutils.WithLogger(ctx, requestLogger.With(zap.String("user_id", claims.UserID)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth requires authentication for the endpoint
func (am *AuthMiddleware) RequireAuth() func(http.Handler) http.Handler {
	return am.Authenticate(true)
}

// OptionalAuth provides optional authentication for the endpoint
func (am *AuthMiddleware) OptionalAuth() func(http.Handler) http.Handler {
	return am.Authenticate(false)
}

// ===============================
// AUTHORIZATION MIDDLEWARE
// ===============================

// RequireUserType loads the caller's profile and requires one of types.
// Must run after RequireAuth.
func (am *AuthMiddleware) RequireUserType(types ...models.UserType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authCtx := GetAuthContext(ctx)
			if authCtx == nil {
				response.QuickError(w, r, services.NewAuthenticationError("authentication required", services.ReasonInvalidCredentials, ""))
				return
			}

			user, err := am.users.GetUser(ctx, authCtx.UserID)
			if err != nil {
				if services.IsNotFoundError(err) {
					response.QuickError(w, r, services.NewPermissionDeniedError("a profile is required for this action"))
					return
				}
				response.QuickError(w, r, err)
				return
			}

			for _, t := range types {
				if user.GetType() == t {
					next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, UserKey, user)))
					return
				}
			}

			GetRequestLogger(ctx).Info("User type rejected",
				zap.String("user_type", string(user.GetType())),
				zap.String("path", r.URL.Path),
			)
			response.QuickError(w, r, services.NewPermissionDeniedError("this action is not available for "+string(user.GetType())+" accounts"))
		})
	}
}

// ===============================
// TOKEN EXTRACTION
// ===============================

func (am *AuthMiddleware) extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if am.config.AllowQueryToken && isWebsocketUpgrade(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// ===============================
// CONTEXT HELPERS
// ===============================

// GetAuthContext returns the verified token context, or nil
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// GetUser returns the profile loaded by RequireUserType, or nil
func GetUser(ctx context.Context) models.User {
	if user, ok := ctx.Value(UserKey).(models.User); ok {
		return user
	}
	return nil
}
