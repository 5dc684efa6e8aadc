package middleware

import (
	"net/http"
	"slices"

	"device-tracker/internal/config"

	"github.com/rs/cors"
)

// NewCORS allows the configured dashboard origins. The request id and
// timeout headers are always accepted so browser clients can trace and
// bound their calls.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	return cors.New(corsOptions(cfg)).Handler
}

func corsOptions(cfg *config.Config) cors.Options {
	headers := slices.Clone(cfg.Server.CorsAllowedHeaders)
	for _, h := range []string{RequestIDHeader, RequestTimeoutHeader} {
		if !slices.Contains(headers, h) {
			headers = append(headers, h)
		}
	}
	return cors.Options{
		AllowedOrigins:   cfg.Server.CorsAllowedOrigins,
		AllowedMethods:   cfg.Server.CorsAllowedMethods,
		AllowedHeaders:   headers,
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           600,
	}
}
