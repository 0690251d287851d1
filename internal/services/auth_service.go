// file: internal/services/auth_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bridgeus/internal/cache"
	"bridgeus/internal/config"
	"bridgeus/internal/events"
	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store"
	"bridgeus/internal/utils"
	"bridgeus/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// StateReasonSignedOut is reported when a session is revoked
const StateReasonSignedOut = "signed_out"

const (
	tokenIssuer           = "bridgeus"
	googleUserInfoURL     = "https://openidconnect.googleapis.com/v1/userinfo"
	resetRequestsPerHour  = 5
	signInAttemptsPrefix  = "auth:signin:"
	resetRequestsPrefix   = "auth:reset:"
	resetTokenBytes       = 32
)

// sessionClaims is the JWT payload. The token id is the session id.
type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type authService struct {
	accounts    repositories.AuthRepository
	sessions    repositories.SessionRepository
	cache       cache.Cache
	email       EmailService
	events      events.EventBus
	config      config.AuthConfig
	oauth       *oauth2.Config
	userInfoURL string
	now         func() time.Time
	logger      *zap.Logger
}

// AuthOption customizes the auth service
type AuthOption func(*authService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) AuthOption {
	return func(s *authService) { s.now = now }
}

// WithGoogleOAuth replaces the OAuth client configuration and user info
// endpoint, mainly for tests against a local server
func WithGoogleOAuth(cfg *oauth2.Config, userInfoURL string) AuthOption {
	return func(s *authService) {
		s.oauth = cfg
		s.userInfoURL = userInfoURL
	}
}

// NewAuthService creates the authentication client
func NewAuthService(
	repos *repositories.Collection,
	c cache.Cache,
	email EmailService,
	bus events.EventBus,
	cfg config.AuthConfig,
	logger *zap.Logger,
	opts ...AuthOption,
) AuthService {
	s := &authService{
		accounts:    repos.Auth,
		sessions:    repos.Session,
		cache:       c,
		email:       email,
		events:      bus,
		config:      cfg,
		userInfoURL: googleUserInfoURL,
		now:         time.Now,
		logger:      logger,
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===============================
// ACCOUNTS
// ===============================

// CreateAccount registers an email/password account and signs it in
func (s *authService) CreateAccount(ctx context.Context, req *SignUpRequest) (*AuthResult, error) {
	if req == nil {
		return nil, NewValidationError("sign up request is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationFailed("invalid sign up request", err)
	}
	email := repositories.NormalizeEmail(req.Email)
	if err := s.checkPassword(req.Password, email); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(req.Password, s.config.BCryptCost)
	if err != nil {
		return nil, NewInternalError("failed to hash password", err)
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Providers:    []string{models.ProviderPassword},
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return nil, NewAuthenticationError("email address is already in use", ReasonEmailInUse, email)
		}
		return nil, storeError("create account", err)
	}

	result, err := s.issue(ctx, account, models.ProviderPassword, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, err
	}
	result.IsNewAccount = true

	s.publish(ctx, events.NewUserRegisteredEvent(account.ID, email, ""))
	s.logger.Info("Account created",
		zap.String("user_id", account.ID),
		zap.String("ip_address", req.IPAddress),
	)
	return result, nil
}

// SignIn checks an email and password. Repeated failures lock the email
// out for the configured window.
func (s *authService) SignIn(ctx context.Context, req *SignInRequest) (*AuthResult, error) {
	if req == nil {
		return nil, NewValidationError("sign in request is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationFailed("invalid sign in request", err)
	}
	email := repositories.NormalizeEmail(req.Email)

	if err := s.checkLockout(ctx, email); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, storeError("sign in", err)
	}
	if account == nil {
		s.recordFailedAttempt(ctx, email, "unknown_email")
		return nil, NewAuthenticationError("invalid email or password", ReasonInvalidCredentials, email)
	}
	if !slices.Contains(account.Providers, models.ProviderPassword) || account.PasswordHash == "" {
		return nil, NewAuthenticationError("this account signs in with another provider", ReasonProviderMismatch, email)
	}
	if err := utils.CheckPassword(account.PasswordHash, req.Password); err != nil {
		s.recordFailedAttempt(ctx, email, "invalid_password")
		s.logger.Warn("Invalid password attempt",
			zap.String("user_id", account.ID),
			zap.String("ip_address", req.IPAddress),
		)
		return nil, NewAuthenticationError("invalid email or password", ReasonInvalidCredentials, email)
	}
	s.clearFailedAttempts(ctx, email)

	result, err := s.issue(ctx, account, models.ProviderPassword, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User signed in",
		zap.String("user_id", account.ID),
		zap.String("ip_address", req.IPAddress),
	)
	return result, nil
}

// GoogleAuthURL returns the consent page URL for the authorization code flow
func (s *authService) GoogleAuthURL(state string) (string, error) {
	if s.oauth == nil {
		return "", NewInternalError("google sign-in is not configured", nil)
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

type googleUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// SignInWithGoogle exchanges an authorization code and signs the verified
// Google email in. Unknown emails get a new account; existing accounts
// have the provider linked.
func (s *authService) SignInWithGoogle(ctx context.Context, req *GoogleSignInRequest) (*AuthResult, error) {
	if s.oauth == nil {
		return nil, NewInternalError("google sign-in is not configured", nil)
	}
	if req == nil {
		return nil, NewValidationError("authorization code is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationFailed("invalid google sign in request", err)
	}

	token, err := s.oauth.Exchange(ctx, req.Code)
	if err != nil {
		s.logger.Warn("Google code exchange failed", zap.Error(err))
		return nil, NewAuthenticationError("google sign-in failed", ReasonInvalidCredentials, "")
	}
	info, err := s.fetchGoogleUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.Email == "" || !info.EmailVerified {
		return nil, NewAuthenticationError("google account email is not verified", ReasonInvalidCredentials, info.Email)
	}
	email := repositories.NormalizeEmail(info.Email)

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, storeError("sign in", err)
	}

	isNew := false
	switch {
	case account == nil:
		account = &models.Account{
			Email:       email,
			DisplayName: info.Name,
			Providers:   []string{models.ProviderGoogle},
		}
		if err := s.accounts.CreateAccount(ctx, account); err != nil {
			if errors.Is(err, repositories.ErrEmailTaken) {
				return nil, NewAuthenticationError("email address is already in use", ReasonEmailInUse, email)
			}
			return nil, storeError("create account", err)
		}
		isNew = true
		s.publish(ctx, events.NewUserRegisteredEvent(account.ID, email, ""))
	case !slices.Contains(account.Providers, models.ProviderGoogle):
		providers := append(slices.Clone(account.Providers), models.ProviderGoogle)
		if err := s.accounts.UpdateAccount(ctx, account.ID, map[string]interface{}{"providers": providers}); err != nil {
			return nil, storeError("link google account", err)
		}
		account.Providers = providers
	}

	result, err := s.issue(ctx, account, models.ProviderGoogle, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, err
	}
	result.IsNewAccount = isNew
	s.logger.Info("User signed in with Google",
		zap.String("user_id", account.ID),
		zap.Bool("new_account", isNew),
	)
	return result, nil
}

func (s *authService) fetchGoogleUser(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, NewInternalError("failed to build user info request", err)
	}
	resp, err := s.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, NewNetworkError("failed to fetch google profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewAuthenticationError(fmt.Sprintf("google profile request failed with status %d", resp.StatusCode), ReasonInvalidCredentials, "")
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, NewInternalError("failed to decode google profile", err)
	}
	return &info, nil
}

// UpdateDisplayName sets the account's display name
func (s *authService) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if err := models.LengthValidator("displayName", displayName, 0, 100); err != nil {
		return validationFailed("invalid display name", models.ValidationErrors{*err})
	}
	if err := s.accounts.UpdateAccount(ctx, userID, map[string]interface{}{"displayName": displayName}); err != nil {
		return storeError("update display name", err)
	}
	return nil
}

// ListSignInMethods returns the providers of the account using email. An
// unknown email has none.
func (s *authService) ListSignInMethods(ctx context.Context, email string) ([]string, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, storeError("look up account", err)
	}
	if account == nil {
		return []string{}, nil
	}
	return account.Providers, nil
}

// ===============================
// SESSIONS AND TOKENS
// ===============================

// issue creates a session and signs a token for it
func (s *authService) issue(ctx context.Context, account *models.Account, provider, userAgent, ip string) (*AuthResult, error) {
	now := s.now().UTC()
	session := &models.AuthSession{
		ID:        store.NewID(),
		UserID:    account.ID,
		ExpiresAt: now.Add(s.config.TokenTTL),
		UserAgent: userAgent,
		IPAddress: ip,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, storeError("create session", err)
	}

	claims := sessionClaims{
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   account.ID,
			ID:        session.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, NewInternalError("failed to sign token", err)
	}

	s.publish(ctx, events.NewSignedInEvent(account.ID, session.ID, provider))
	return &AuthResult{
		Account:   account,
		Token:     signed,
		TokenType: "Bearer",
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

// parse checks the signature and expiry of a token
func (s *authService) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.config.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, NewAuthenticationError("session token has expired", ReasonTokenExpired, claims.Email)
		}
		return nil, NewAuthenticationError("invalid session token", ReasonInvalidCredentials, "")
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, NewAuthenticationError("invalid session token", ReasonInvalidCredentials, "")
	}
	return claims, nil
}

// VerifyToken accepts a token whose signature is valid, which has not
// expired and whose session still exists
func (s *authService) VerifyToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, storeError("verify session", err)
	}
	if session == nil || session.UserID != claims.Subject {
		return nil, NewAuthenticationError("session has ended", ReasonInvalidCredentials, claims.Email)
	}
	return &TokenClaims{
		UserID:    claims.Subject,
		SessionID: claims.ID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignOut revokes the token's session. Expired tokens are still revoked.
func (s *authService) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil && AuthReason(err) != ReasonTokenExpired {
		return err
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		return storeError("sign out", err)
	}
	s.publish(ctx, events.NewSignedOutEvent(claims.Subject, claims.ID))
	s.logger.Info("User signed out", zap.String("user_id", claims.Subject))
	return nil
}

// ObserveSession streams the session's auth state: signed in first, then
// signed out once the session is revoked or its token expires. The stream
// closes after the signed out state.
func (s *authService) ObserveSession(ctx context.Context, token string) (*store.Stream[*AuthState], error) {
	claims, err := s.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	displayName := ""
	if account, err := s.accounts.GetAccountByID(ctx, claims.UserID); err == nil && account != nil {
		displayName = account.DisplayName
	}

	src, err := s.sessions.Subscribe(ctx, claims.SessionID)
	if err != nil {
		return nil, storeError("observe session", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := store.NewStream[*AuthState](func() {
		cancel()
		src.Unsubscribe()
	})

	signedIn := &AuthState{
		SignedIn:    true,
		UserID:      claims.UserID,
		Email:       claims.Email,
		DisplayName: displayName,
		SessionID:   claims.SessionID,
	}
	signedOut := func(reason string) *AuthState {
		return &AuthState{UserID: claims.UserID, SessionID: claims.SessionID, Reason: reason}
	}

	go func() {
		defer out.Unsubscribe()
		expiry := time.NewTimer(claims.ExpiresAt.Sub(s.now()))
		defer expiry.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-expiry.C:
				out.Send(signedOut(ReasonTokenExpired))
				return
			case session, ok := <-src.C():
				if !ok {
					return
				}
				if session == nil {
					out.Send(signedOut(StateReasonSignedOut))
					return
				}
				out.Send(signedIn)
			}
		}
	}()

	return out, nil
}

// ===============================
// PASSWORD RESET
// ===============================

// SendPasswordResetEmail emails a single-use reset link. Unknown emails
// succeed silently.
func (s *authService) SendPasswordResetEmail(ctx context.Context, email string) error {
	email = repositories.NormalizeEmail(email)
	if err := models.EmailValidator("email", email); err != nil {
		return validationFailed("invalid email", models.ValidationErrors{*err})
	}

	if s.cache != nil {
		n, err := s.cache.Increment(ctx, resetRequestsPrefix+email, 1, time.Hour)
		if err == nil && n > resetRequestsPerHour {
			return NewAuthenticationError("too many password reset requests", ReasonTooManyAttempts, email)
		}
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return storeError("look up account", err)
	}
	if account == nil {
		s.logger.Info("Password reset requested for unknown email")
		return nil
	}

	token, err := utils.GenerateToken(resetTokenBytes)
	if err != nil {
		return NewInternalError("failed to generate reset token", err)
	}
	expiresAt := s.now().UTC().Add(s.config.ResetTokenTTL)
	reset := &models.PasswordReset{
		ID:        utils.HashToken(token),
		UserID:    account.ID,
		Email:     email,
		ExpiresAt: expiresAt,
	}
	if err := s.accounts.CreatePasswordReset(ctx, reset); err != nil {
		return storeError("store password reset", err)
	}

	if err := s.email.SendPasswordResetEmail(ctx, email, resetLink(s.config.ResetURL, token)); err != nil {
		return err
	}

	s.publish(ctx, events.NewPasswordResetRequestedEvent(account.ID, email, expiresAt))
	s.logger.Info("Password reset email sent", zap.String("user_id", account.ID))
	return nil
}

func resetLink(base, token string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

// ConfirmPasswordReset consumes a reset token, sets the new password and
// ends every session of the account
func (s *authService) ConfirmPasswordReset(ctx context.Context, req *ConfirmPasswordResetRequest) error {
	if req == nil {
		return NewValidationError("password reset request is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return validationFailed("invalid password reset request", err)
	}

	id := utils.HashToken(req.Token)
	reset, err := s.accounts.GetPasswordReset(ctx, id)
	if err != nil {
		return storeError("look up password reset", err)
	}
	if reset == nil {
		return NewAuthenticationError("reset link is invalid or has already been used", ReasonInvalidResetToken, "")
	}
	if s.now().After(reset.ExpiresAt) {
		_ = s.accounts.DeletePasswordReset(ctx, id)
		return NewAuthenticationError("reset link has expired", ReasonInvalidResetToken, reset.Email)
	}
	if err := s.checkPassword(req.NewPassword, reset.Email); err != nil {
		return err
	}

	account, err := s.accounts.GetAccountByID(ctx, reset.UserID)
	if err != nil {
		return storeError("get account", err)
	}
	if account == nil {
		return NewAuthenticationError("account no longer exists", ReasonInvalidResetToken, reset.Email)
	}

	hash, err := utils.HashPassword(req.NewPassword, s.config.BCryptCost)
	if err != nil {
		return NewInternalError("failed to hash password", err)
	}
	providers := account.Providers
	if !slices.Contains(providers, models.ProviderPassword) {
		providers = append(slices.Clone(providers), models.ProviderPassword)
	}
	err = s.accounts.UpdateAccount(ctx, account.ID, map[string]interface{}{
		"passwordHash": hash,
		"providers":    providers,
	})
	if err != nil {
		return storeError("update password", err)
	}
	if err := s.accounts.DeletePasswordReset(ctx, id); err != nil {
		s.logger.Warn("Failed to delete used reset token", zap.Error(err))
	}

	revoked, err := s.sessions.DeleteByUser(ctx, account.ID)
	if err != nil {
		s.logger.Warn("Failed to revoke sessions after password reset", zap.String("user_id", account.ID), zap.Error(err))
	}
	s.clearFailedAttempts(ctx, account.Email)

	s.publish(ctx, events.NewPasswordResetCompletedEvent(account.ID, account.Email))
	s.logger.Info("Password reset completed",
		zap.String("user_id", account.ID),
		zap.Int("revoked_sessions", revoked),
	)
	return nil
}

// ===============================
// HELPERS
// ===============================

func (s *authService) checkPassword(password, email string) error {
	if err := models.PasswordValidator("password", password, s.config.MinPasswordLength); err != nil {
		authErr := NewAuthenticationError(err.Message, ReasonWeakPassword, email)
		return authErr
	}
	return nil
}

func (s *authService) checkLockout(ctx context.Context, email string) error {
	if s.cache == nil || s.config.MaxSignInAttempts <= 0 {
		return nil
	}
	value, found, err := s.cache.Get(ctx, signInAttemptsPrefix+email)
	if err != nil || !found {
		return nil
	}
	var attempts int
	if _, err := fmt.Sscan(value, &attempts); err == nil && attempts >= s.config.MaxSignInAttempts {
		return NewAuthenticationError("too many failed sign-in attempts, try again later", ReasonTooManyAttempts, email)
	}
	return nil
}

func (s *authService) recordFailedAttempt(ctx context.Context, email, reason string) {
	if s.cache != nil && s.config.MaxSignInAttempts > 0 {
		if _, err := s.cache.Increment(ctx, signInAttemptsPrefix+email, 1, s.config.SignInLockout); err != nil {
			s.logger.Warn("Failed to record sign-in attempt", zap.Error(err))
		}
	}
	s.logger.Info("Failed sign-in attempt", zap.String("reason", reason))
}

func (s *authService) clearFailedAttempts(ctx context.Context, email string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, signInAttemptsPrefix+email); err != nil {
		s.logger.Debug("Failed to clear sign-in attempts", zap.Error(err))
	}
}

func (s *authService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishAsync(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
	}
}
