package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

const RequestTimeoutHeader = "X-Request-Timeout"

// maxRequestTimeout bounds the header when no server default is configured
const maxRequestTimeout = 2 * time.Minute

// RequestTimeout puts a deadline on the request context. Clients may ask
// for a shorter one in seconds via X-Request-Timeout, never a longer one.
// Store calls and allocation locks give up with a retryable error once it passes.
func RequestTimeout(def time.Duration) func(http.Handler) http.Handler {
	limit := def
	if limit <= 0 {
		limit = maxRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeout := def
			if v := r.Header.Get(RequestTimeoutHeader); v != "" {
				if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
					timeout = min(time.Duration(secs)*time.Second, limit)
				}
			}
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
