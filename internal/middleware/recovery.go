package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"device-tracker/pkg/utils"
)

// PanicRecovery answers 500 for a panicking handler and logs the stack
// under the request id. http.ErrAbortHandler is re-raised for net/http.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("[Recovery] %s %s panicked (req=%s): %v\n%s",
				r.Method, sanitizePath(r.URL.Path), GetRequestID(r.Context()), rec, debug.Stack())
			utils.Error(w, http.StatusInternalServerError, "Internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
