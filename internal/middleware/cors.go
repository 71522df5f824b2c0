// Package middleware provides HTTP middleware for the stub backend.
package middleware

import (
	"net/http"
	"strings"
)

// Headers the widget sends and reads across origins.
var (
	allowedHeaders = []string{"Content-Type", "X-Agent-Id", "X-Session-Id"}
	exposedHeaders = []string{"X-New-Session-ID"}
)

// CORS returns middleware that lets widgets embedded on allowedOrigins call
// the backend. "*" allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			explicit := false
			for _, o := range allowedOrigins {
				if o == origin && origin != "" {
					allowed, explicit = true, true
					break
				}
				if o == "*" {
					allowed = true
				}
			}

			if allowed && origin != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
				h.Set("Access-Control-Expose-Headers", strings.Join(exposedHeaders, ", "))
				// Wildcard-echoed origins never get credentials.
				if explicit {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
