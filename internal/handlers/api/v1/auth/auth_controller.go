// ===============================
// FILE: internal/handlers/api/v1/auth/auth_controller.go
// ===============================

package auth

import (
	"context"
	"net/http"
	"time"

	"bridgeus/internal/handlers/api/v1/common"
	"bridgeus/internal/middleware"
	"bridgeus/internal/models"
	"bridgeus/internal/response"
	"bridgeus/internal/services"
	"bridgeus/internal/session"
	"bridgeus/internal/utils"

	"go.uber.org/zap"
)

// AuthController handles sign-up, sign-in and password recovery
type AuthController struct {
	serviceCollection *services.ServiceCollection
	logger            *zap.Logger
	responseBuilder   *response.Builder
}

// NewAuthController creates a new authentication controller
func NewAuthController(
	serviceCollection *services.ServiceCollection,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *AuthController {
	return &AuthController{
		serviceCollection: serviceCollection,
		logger:            logger,
		responseBuilder:   responseBuilder,
	}
}

// SessionPayload is returned by every endpoint that signs a user in
type SessionPayload struct {
	Token     string          `json:"token"`
	TokenType string          `json:"tokenType"`
	UserType  models.UserType `json:"userType"`
	User      models.User     `json:"user"`
	// Fallback is set when the account has no profile document yet
	Fallback bool `json:"fallback"`
}

// GoogleURLResponse carries the consent page URL and the state to verify
type GoogleURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ===============================
// AUTHENTICATION ENDPOINTS
// ===============================

// Register handles POST /api/v1/auth/register
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	logger := c.requestLogger(r, "register")

	var req session.RegisterRequest
	if err := common.Bind(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	s := c.newSession(r)
	defer s.Close()

	user, err := s.Register(ctx, &req)
	if err != nil {
		logger.Warn("Registration failed", zap.Error(err), zap.String("user_type", string(req.Type)))
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	logger.Info("User registered successfully",
		zap.String("user_id", user.GetID()),
		zap.String("user_type", string(user.GetType())),
	)
	c.responseBuilder.WriteCreated(w, r, payload(s.Current()))
}

// Login handles POST /api/v1/auth/login
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	logger := c.requestLogger(r, "login")

	var req services.SignInRequest
	if err := common.Bind(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	s := c.newSession(r)
	defer s.Close()

	user, err := s.Login(ctx, req.Email, req.Password)
	if err != nil {
		logger.Info("Login failed", zap.String("reason", services.AuthReason(err)))
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	logger.Info("User logged in successfully", zap.String("user_id", user.GetID()))
	c.responseBuilder.WriteSuccess(w, r, payload(s.Current()))
}

// GoogleURL handles GET /api/v1/auth/google/url
func (c *AuthController) GoogleURL(w http.ResponseWriter, r *http.Request) {
	state := common.QueryParam(r, "state")
	if state == "" {
		generated, err := utils.GenerateToken(16)
		if err != nil {
			c.responseBuilder.WriteError(w, r, services.NewInternalError("failed to generate state", err))
			return
		}
		state = generated
	}

	url, err := c.serviceCollection.AuthService.GoogleAuthURL(state)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, GoogleURLResponse{URL: url, State: state})
}

// GoogleSignIn handles POST /api/v1/auth/google with an authorization code
func (c *AuthController) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	logger := c.requestLogger(r, "google_sign_in")

	var req services.GoogleSignInRequest
	if err := common.Bind(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	req.UserAgent, req.IPAddress = common.Client(r)

	result, err := c.serviceCollection.AuthService.SignInWithGoogle(ctx, &req)
	if err != nil {
		logger.Info("Google sign-in failed", zap.String("reason", services.AuthReason(err)))
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	s := c.newSession(r)
	defer s.Close()
	if _, err := s.Resume(ctx, result.Token); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	logger.Info("Google sign-in succeeded",
		zap.String("user_id", result.Account.ID),
		zap.Bool("new_account", result.IsNewAccount),
	)
	if result.IsNewAccount {
		c.responseBuilder.WriteCreated(w, r, payload(s.Current()))
		return
	}
	c.responseBuilder.WriteSuccess(w, r, payload(s.Current()))
}

// Logout handles POST /api/v1/auth/logout
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, services.ReasonInvalidCredentials)
		return
	}

	if err := c.serviceCollection.AuthService.SignOut(r.Context(), authCtx.Token); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// Me handles GET /api/v1/auth/me and returns the caller's profile, derived
// from the account when no profile document exists
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, services.ReasonInvalidCredentials)
		return
	}

	s := c.newSession(r)
	defer s.Close()
	if _, err := s.Resume(r.Context(), authCtx.Token); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, payload(s.Current()))
}

// UpdateMe handles PATCH /api/v1/auth/me. The caller's kind decides which
// fields apply.
func (c *AuthController) UpdateMe(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, services.ReasonInvalidCredentials)
		return
	}

	var update session.ProfileUpdate
	if err := common.DecodeJSON(r, &update); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	s := c.newSession(r)
	defer s.Close()
	if _, err := s.Resume(r.Context(), authCtx.Token); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if _, err := s.UpdateProfile(r.Context(), update); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, payload(s.Current()))
}

// ===============================
// PASSWORD RECOVERY
// ===============================

// RequestPasswordReset handles POST /api/v1/auth/password-reset. The
// response does not reveal whether the email has an account.
func (c *AuthController) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := common.Bind(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if err := c.serviceCollection.AuthService.SendPasswordResetEmail(r.Context(), req.Email); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, map[string]string{
		"message": "If an account exists for this email, a reset link has been sent",
	})
}

// ConfirmPasswordReset handles POST /api/v1/auth/password-reset/confirm
func (c *AuthController) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req services.ConfirmPasswordResetRequest
	if err := common.Bind(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if err := c.serviceCollection.AuthService.ConfirmPasswordReset(r.Context(), &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// SignInMethods handles GET /api/v1/auth/sign-in-methods?email=
func (c *AuthController) SignInMethods(w http.ResponseWriter, r *http.Request) {
	email := common.QueryParam(r, "email")
	if email == "" {
		c.responseBuilder.WriteError(w, r, services.NewValidationError("email is required", nil))
		return
	}

	methods, err := c.serviceCollection.AuthService.ListSignInMethods(r.Context(), email)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteList(w, r, methods, len(methods))
}

// ===============================
// HELPERS
// ===============================

// newSession returns a request-scoped session; callers close it
func (c *AuthController) newSession(r *http.Request) *session.Session {
	userAgent, ip := common.Client(r)
	return session.New(
		c.serviceCollection.AuthService,
		c.serviceCollection.UserService,
		c.logger,
		session.WithClientInfo(userAgent, ip),
	)
}

func (c *AuthController) requestLogger(r *http.Request, endpoint string) *zap.Logger {
	return middleware.GetRequestLogger(r.Context()).With(zap.String("endpoint", endpoint))
}

func payload(snap session.Snapshot) *SessionPayload {
	p := &SessionPayload{
		Token:     snap.Token,
		TokenType: "Bearer",
		User:      snap.User,
		Fallback:  snap.Fallback,
	}
	if snap.User != nil {
		p.UserType = snap.User.GetType()
	}
	return p
}
