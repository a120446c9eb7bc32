package middleware

import (
	"crypto/subtle"
	"net/http"
)

// MetricsBasicAuth guards the Prometheus endpoint. With no credentials
// configured the endpoint is open.
func MetricsBasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if username == "" && password == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !ok || !userOK || !passOK {
				w.Header().Set("WWW-Authenticate", `Basic realm="tarot-metrics"`)
				writeError(w, http.StatusUnauthorized, "metrics credentials required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
