package controller

import (
	"net/http"
	"strings"
)

// AnyOrigin in an allow-list accepts every origin.
const AnyOrigin = "*"

// OriginAllowed reports whether origin is in allowed. Origins are compared
// case-insensitively. A request without an Origin header is always allowed.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == AnyOrigin || strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
			return true
		}
	}

	return false
}

// WithCORS returns a middleware that sets CORS headers for the allowed origins
// and short-circuits OPTIONS preflight requests with 204 No Content. With
// AnyOrigin in the list every origin is answered with "*".
func WithCORS(allowed []string) func(http.Handler) http.Handler {
	wildcard := false
	for _, a := range allowed {
		if a == AnyOrigin {
			wildcard = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", AnyOrigin)
			case origin != "" && OriginAllowed(allowed, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Request-Id")
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

			// handle preflight requests quickly
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
