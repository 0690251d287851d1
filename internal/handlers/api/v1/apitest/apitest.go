// Package apitest builds in-memory service collections and JSON requests
// for handler tests.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bridgeus/internal/cache"
	"bridgeus/internal/config"
	"bridgeus/internal/repositories"
	"bridgeus/internal/response"
	"bridgeus/internal/services"
	"bridgeus/internal/store/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Config returns a configuration for the memory store and cache
func Config() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			Environment:     "test",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     time.Minute,
			GracefulTimeout: time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Store: config.StoreConfig{Driver: "memory"},
		Cache: config.CacheConfig{Provider: "memory", DefaultTTL: time.Hour},
		Auth: config.AuthConfig{
			JWTSecret:         "handler-test-secret",
			TokenTTL:          time.Hour,
			BCryptCost:        bcrypt.MinCost,
			MinPasswordLength: 6,
			ResetTokenTTL:     time.Hour,
			ResetURL:          "https://bridgeus.example/reset",
			MaxSignInAttempts: 5,
			SignInLockout:     time.Minute,
		},
		Email: config.EmailConfig{Provider: "log", FromAddress: "noreply@bridgeus.example"},
	}
}

// NewServices starts a service collection over a fresh memory store. It
// is shut down when the test ends.
func NewServices(t testing.TB, opts ...services.CollectionOption) *services.ServiceCollection {
	t.Helper()
	logger := zap.NewNop()

	repos, err := repositories.NewCollection(memory.New(logger), logger)
	require.NoError(t, err)

	opts = append([]services.CollectionOption{
		services.WithCache(cache.NewMemoryCache(cache.DefaultConfig(), logger)),
	}, opts...)
	sc, err := services.NewServiceCollection(repos, Config(), logger, opts...)
	require.NoError(t, err)
	require.NoError(t, sc.Start(context.Background()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sc.Shutdown(ctx)
	})
	return sc
}

// ===============================
// REQUESTS
// ===============================

// Request builds a JSON request. A non-empty token is sent as a bearer
// token.
func Request(t testing.TB, method, path, token string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// Do serves one request through h
func Do(t testing.TB, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, Request(t, method, path, token, body))
	return rec
}

// Envelope is a decoded response whose data is kept raw
type Envelope struct {
	Success bool                   `json:"success"`
	Data    json.RawMessage        `json:"data"`
	Error   *response.ErrorDetail  `json:"error"`
	Meta    *response.ResponseMeta `json:"meta"`
}

// Decode parses the response envelope and, when out is non-nil, its data
func Decode(t testing.TB, rec *httptest.ResponseRecorder, out interface{}) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	if out != nil {
		require.NotEmpty(t, env.Data, "response has no data: %s", rec.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}
