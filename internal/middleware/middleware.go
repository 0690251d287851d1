// file: internal/middleware/middleware.go
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSConfig lists the origins allowed to call the API from a browser
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// CORS builds the go-chi/cors handler. An empty origin list allows any
// origin without credentials.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	origins := config.AllowedOrigins
	credentials := true
	if len(origins) == 0 {
		origins = []string{"*"}
		credentials = false
	}
	maxAge := config.MaxAge
	if maxAge == 0 {
		maxAge = 300
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderXRequestID, HeaderXCorrelationID, HeaderDeviceID},
		ExposedHeaders:   []string{HeaderXRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: credentials,
		MaxAge:           maxAge,
	})
}

// SecureHeaders sets conservative headers on every API response
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// Chain applies middlewares so the first one listed runs first
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
