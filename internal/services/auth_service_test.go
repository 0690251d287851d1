package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"bridgeus/internal/cache"
	"bridgeus/internal/config"
	"bridgeus/internal/mocks"
	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authEnv struct {
	repos *repositories.Collection
	email *mocks.MockEmailService
	clock *fakeClock
	auth  AuthService
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:         "test-secret-0123456789",
		TokenTTL:          time.Hour,
		BCryptCost:        bcrypt.MinCost,
		MinPasswordLength: 6,
		ResetTokenTTL:     30 * time.Minute,
		ResetURL:          "https://bridgeus.example/reset-password",
		MaxSignInAttempts: 3,
		SignInLockout:     15 * time.Minute,
	}
}

func newAuthEnv(t *testing.T, opts ...AuthOption) *authEnv {
	t.Helper()
	repos, err := repositories.NewCollection(memory.New(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	c := cache.NewMemoryCache(cache.DefaultConfig(), zap.NewNop())
	t.Cleanup(func() {
		c.Close()
		repos.Close()
	})

	ctrl := gomock.NewController(t)
	env := &authEnv{
		repos: repos,
		email: mocks.NewMockEmailService(ctrl),
		clock: &fakeClock{now: time.Now()},
	}
	opts = append([]AuthOption{WithClock(env.clock.Now)}, opts...)
	env.auth = NewAuthService(repos, c, env.email, nil, testAuthConfig(), zap.NewNop(), opts...)
	return env
}

func (e *authEnv) signUp(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	result, err := e.auth.CreateAccount(context.Background(), &SignUpRequest{
		Email: email, Password: password, ConfirmPassword: password, DisplayName: "山田太郎",
	})
	require.NoError(t, err)
	return result
}

func TestAuthService_CreateAccount(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	result := env.signUp(t, "Taro@Example.com", "secret123")
	assert.True(t, result.IsNewAccount)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, "taro@example.com", result.Account.Email)
	assert.Equal(t, []string{models.ProviderPassword}, result.Account.Providers)

	claims, err := env.auth.VerifyToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Account.ID, claims.UserID)
	assert.Equal(t, result.SessionID, claims.SessionID)

	tests := []struct {
		name   string
		req    *SignUpRequest
		reason string
	}{
		{"email in use", &SignUpRequest{Email: "taro@example.com", Password: "another1"}, ReasonEmailInUse},
		{"weak password", &SignUpRequest{Email: "hanako@example.com", Password: "abc"}, ReasonWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.CreateAccount(ctx, tt.req)
			assert.True(t, IsAuthenticationError(err))
			assert.Equal(t, tt.reason, AuthReason(err))
		})
	}

	_, err = env.auth.CreateAccount(ctx, &SignUpRequest{Email: "jiro@example.com", Password: "secret123", ConfirmPassword: "secret124"})
	assert.True(t, IsValidationError(err))

	_, err = env.auth.CreateAccount(ctx, &SignUpRequest{Email: "not-an-email", Password: "secret123"})
	assert.True(t, IsValidationError(err))
}

func TestAuthService_SignInLockout(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	env.signUp(t, "taro@example.com", "secret123")

	_, err := env.auth.SignIn(ctx, &SignInRequest{Email: "taro@example.com", Password: "secret123"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := env.auth.SignIn(ctx, &SignInRequest{Email: "taro@example.com", Password: "wrong-password"})
		assert.Equal(t, ReasonInvalidCredentials, AuthReason(err))
	}

	_, err = env.auth.SignIn(ctx, &SignInRequest{Email: "taro@example.com", Password: "secret123"})
	assert.Equal(t, ReasonTooManyAttempts, AuthReason(err))
	assert.Equal(t, http.StatusTooManyRequests, GetServiceError(err).StatusCode)

	_, err = env.auth.SignIn(ctx, &SignInRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.Equal(t, ReasonInvalidCredentials, AuthReason(err))
}

func TestAuthService_TokenExpiry(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	result := env.signUp(t, "taro@example.com", "secret123")

	env.clock.Advance(2 * time.Hour)
	_, err := env.auth.VerifyToken(ctx, result.Token)
	assert.Equal(t, ReasonTokenExpired, AuthReason(err))

	// expired tokens can still sign out
	require.NoError(t, env.auth.SignOut(ctx, result.Token))

	_, err = env.auth.VerifyToken(ctx, "not-a-token")
	assert.Equal(t, ReasonInvalidCredentials, AuthReason(err))
}

func TestAuthService_SignOutEndsObservedSession(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	result := env.signUp(t, "taro@example.com", "secret123")

	stream, err := env.auth.ObserveSession(ctx, result.Token)
	require.NoError(t, err)
	defer stream.Unsubscribe()

	state := waitFor(t, stream, func(s *AuthState) bool { return s.SignedIn })
	assert.Equal(t, result.Account.ID, state.UserID)
	assert.Equal(t, "山田太郎", state.DisplayName)

	require.NoError(t, env.auth.SignOut(ctx, result.Token))

	state = waitFor(t, stream, func(s *AuthState) bool { return !s.SignedIn })
	assert.Equal(t, StateReasonSignedOut, state.Reason)

	select {
	case _, ok := <-stream.C():
		assert.False(t, ok, "stream closes after sign out")
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}

	_, err = env.auth.VerifyToken(ctx, result.Token)
	assert.Equal(t, ReasonInvalidCredentials, AuthReason(err))
}

func TestAuthService_PasswordReset(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	old := env.signUp(t, "taro@example.com", "secret123")

	var resetURL string
	env.email.EXPECT().
		SendPasswordResetEmail(gomock.Any(), "taro@example.com", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, link string) error {
			resetURL = link
			return nil
		})

	require.NoError(t, env.auth.SendPasswordResetEmail(ctx, "Taro@example.com"))
	// unknown addresses succeed without sending anything
	require.NoError(t, env.auth.SendPasswordResetEmail(ctx, "nobody@example.com"))

	link, err := url.Parse(resetURL)
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	err = env.auth.ConfirmPasswordReset(ctx, &ConfirmPasswordResetRequest{Token: token, NewPassword: "abc", ConfirmPassword: "abc"})
	assert.Equal(t, ReasonWeakPassword, AuthReason(err))

	require.NoError(t, env.auth.ConfirmPasswordReset(ctx, &ConfirmPasswordResetRequest{
		Token: token, NewPassword: "newsecret1", ConfirmPassword: "newsecret1",
	}))

	_, err = env.auth.VerifyToken(ctx, old.Token)
	assert.Error(t, err, "existing sessions are revoked")

	_, err = env.auth.SignIn(ctx, &SignInRequest{Email: "taro@example.com", Password: "secret123"})
	assert.Equal(t, ReasonInvalidCredentials, AuthReason(err))
	_, err = env.auth.SignIn(ctx, &SignInRequest{Email: "taro@example.com", Password: "newsecret1"})
	require.NoError(t, err)

	err = env.auth.ConfirmPasswordReset(ctx, &ConfirmPasswordResetRequest{
		Token: token, NewPassword: "another12", ConfirmPassword: "another12",
	})
	assert.Equal(t, ReasonInvalidResetToken, AuthReason(err), "tokens are single use")
}

func TestAuthService_PasswordResetExpires(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	env.signUp(t, "taro@example.com", "secret123")

	var token string
	env.email.EXPECT().
		SendPasswordResetEmail(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, link string) error {
			u, err := url.Parse(link)
			token = u.Query().Get("token")
			return err
		})
	require.NoError(t, env.auth.SendPasswordResetEmail(ctx, "taro@example.com"))

	env.clock.Advance(time.Hour)
	err := env.auth.ConfirmPasswordReset(ctx, &ConfirmPasswordResetRequest{
		Token: token, NewPassword: "newsecret1", ConfirmPassword: "newsecret1",
	})
	assert.Equal(t, ReasonInvalidResetToken, AuthReason(err))
}

func newGoogleServer(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":            "1234567890",
			"email":          email,
			"email_verified": true,
			"name":           "佐藤花子",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func googleOption(srv *httptest.Server) AuthOption {
	return WithGoogleOAuth(&oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://bridgeus.example/auth/google/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
		Scopes: []string{"openid", "email", "profile"},
	}, srv.URL+"/userinfo")
}

func TestAuthService_SignInWithGoogle(t *testing.T) {
	ctx := context.Background()

	t.Run("new account", func(t *testing.T) {
		srv := newGoogleServer(t, "hanako@example.com")
		env := newAuthEnv(t, googleOption(srv))

		authURL, err := env.auth.GoogleAuthURL("state-123")
		require.NoError(t, err)
		assert.Contains(t, authURL, "client_id=client-id")
		assert.Contains(t, authURL, "state=state-123")

		result, err := env.auth.SignInWithGoogle(ctx, &GoogleSignInRequest{Code: "auth-code"})
		require.NoError(t, err)
		assert.True(t, result.IsNewAccount)
		assert.Equal(t, "佐藤花子", result.Account.DisplayName)
		assert.Equal(t, []string{models.ProviderGoogle}, result.Account.Providers)

		methods, err := env.auth.ListSignInMethods(ctx, "hanako@example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{models.ProviderGoogle}, methods)

		_, err = env.auth.SignIn(ctx, &SignInRequest{Email: "hanako@example.com", Password: "whatever1"})
		assert.Equal(t, ReasonProviderMismatch, AuthReason(err))
	})

	t.Run("links existing password account", func(t *testing.T) {
		srv := newGoogleServer(t, "taro@example.com")
		env := newAuthEnv(t, googleOption(srv))
		env.signUp(t, "taro@example.com", "secret123")

		result, err := env.auth.SignInWithGoogle(ctx, &GoogleSignInRequest{Code: "auth-code"})
		require.NoError(t, err)
		assert.False(t, result.IsNewAccount)
		assert.ElementsMatch(t, []string{models.ProviderPassword, models.ProviderGoogle}, result.Account.Providers)

		methods, err := env.auth.ListSignInMethods(ctx, "taro@example.com")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{models.ProviderPassword, models.ProviderGoogle}, methods)
	})

	t.Run("not configured", func(t *testing.T) {
		env := newAuthEnv(t)
		_, err := env.auth.GoogleAuthURL("state")
		assert.Error(t, err)
	})
}

func TestAuthService_UpdateDisplayName(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	result := env.signUp(t, "taro@example.com", "secret123")

	require.NoError(t, env.auth.UpdateDisplayName(ctx, result.Account.ID, "  山田 太郎 "))
	account, err := env.repos.Auth.GetAccountByID(ctx, result.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "山田 太郎", account.DisplayName)

	methods, err := env.auth.ListSignInMethods(ctx, "unknown@example.com")
	require.NoError(t, err)
	assert.Empty(t, methods)
}
