package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Paths reachable without a bearer token. The WebSocket endpoint performs
// its own in-band auth as the first JSON-RPC request.
var exemptPaths = map[string]bool{
	"/health": true,
	"/ws":     true,
}

// Auth enforces "Authorization: Bearer <token>" on the HTTP API.
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			scheme, credential, ok := strings.Cut(header, " ")
			if !ok || scheme != "Bearer" {
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(credential), []byte(token)) != 1 {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
