package router

import (
	"net/http"
	"time"

	"bridgeus/internal/config"
	"bridgeus/internal/device"
	_ "bridgeus/internal/docs" // registers the swagger spec
	"bridgeus/internal/handlers/api/v1/stream"
	"bridgeus/internal/middleware"
	"bridgeus/internal/response"
	"bridgeus/internal/services"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Options tunes the router. Nil fields use the defaults for the
// configured environment.
type Options struct {
	Response       *response.Config
	APIRateLimit   *middleware.RateLimiterConfig
	AuthRateLimit  *middleware.RateLimiterConfig
	Swagger        *middleware.SwaggerConfig
	Stream         *stream.Config
	RequestTimeout time.Duration
}

// DefaultOptions returns router options for cfg
func DefaultOptions(cfg *config.Config) *Options {
	opts := &Options{
		Response:       response.DefaultConfig(),
		APIRateLimit:   middleware.DefaultRateLimiterConfig(),
		AuthRateLimit:  middleware.AuthRateLimiterConfig(),
		Swagger:        middleware.DefaultSwaggerConfig(),
		Stream:         stream.DefaultConfig(),
		RequestTimeout: 30 * time.Second,
	}
	if !cfg.IsProduction() {
		opts.Response = response.DevelopmentConfig()
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		opts.Stream.AllowedOrigins = cfg.Server.AllowedOrigins
	}
	return opts
}

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(serviceCollection *services.ServiceCollection, opts *Options, logger *zap.Logger) http.Handler {
	cfg := serviceCollection.Config
	if opts == nil {
		opts = DefaultOptions(cfg)
	}

	responseBuilder := response.NewBuilder(opts.Response, logger)
	authMiddleware := middleware.NewAuthMiddleware(
		middleware.DefaultAuthConfig(),
		serviceCollection.AuthService,
		serviceCollection.UserService,
		logger,
	)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(responseBuilder.WriteNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(responseBuilder.WriteMethodNotAllowed)

	// ===============================
	// SYSTEM ENDPOINTS
	// ===============================

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		responseBuilder.WriteHealthCheck(w, req, serviceCollection.HealthCheck(req.Context()))
	}).Methods(http.MethodGet)

	r.PathPrefix("/swagger/").Handler(middleware.SwaggerHandler(opts.Swagger))

	// the stream outlives the REST request timeout, so it is mounted
	// outside the API subrouter
	streamHandler := stream.NewHandler(serviceCollection, opts.Stream, logger)
	r.Handle("/ws", middleware.Chain(streamHandler, authMiddleware.RequireAuth())).Methods(http.MethodGet)

	// ===============================
	// API V1
	// ===============================

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(chimw.Timeout(opts.RequestTimeout))

	AddAPIv1Routes(api, &APIDependencies{
		Services:        serviceCollection,
		Preferences:     device.NewPreferences(serviceCollection.Repositories.Store(), serviceCollection.Cache, logger),
		AuthMiddleware:  authMiddleware,
		APIRateLimiter:  middleware.NewRateLimiter(opts.APIRateLimit, serviceCollection.Cache, logger),
		AuthRateLimiter: middleware.NewRateLimiter(opts.AuthRateLimit, serviceCollection.Cache, logger),
		ResponseBuilder: responseBuilder,
		Logger:          logger,
	})

	handler := middleware.Chain(r,
		chimw.RealIP,
		middleware.RequestID(logger),
		middleware.StructuredLogging(middleware.DefaultLoggingConfig()),
		middleware.Recovery(middleware.DefaultRecoveryConfig()),
		response.Middleware(responseBuilder),
		middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins}),
		middleware.SecureHeaders,
	)

	logger.Info("Router setup completed",
		zap.String("environment", cfg.Server.Environment),
		zap.Bool("rate_limiting", opts.APIRateLimit.Enabled),
	)
	return handler
}
