package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"tarot/internal/util"
)

// Injected key type to avoid context collisions
type contextKey string

const UserContextKey = contextKey("user")

// AdminSecretHeader carries the shared admin secret.
const AdminSecretHeader = "X-Admin-Secret"

// ClaimsFromContext returns the claims stored by AuthMiddleware or
// OptionalAuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*util.Claims, bool) {
	c, ok := ctx.Value(UserContextKey).(*util.Claims)
	return c, ok && c != nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// AuthMiddleware requires a valid user token from the Authorization header or
// the auth cookie.
func AuthMiddleware(tokens *util.TokenIssuer, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := util.TokenFromRequest(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := tokens.ValidateJWT(raw)
			if err != nil || claims.Role == util.RoleAdmin {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected token")
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches claims when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuthMiddleware(tokens *util.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := util.TokenFromRequest(r); raw != "" {
				if claims, err := tokens.ValidateJWT(raw); err == nil && claims.Role != util.RoleAdmin {
					r = r.WithContext(context.WithValue(r.Context(), UserContextKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminMiddleware accepts either the shared admin secret header or a bearer
// token carrying the admin role.
func AdminMiddleware(secret string, tokens *util.TokenIssuer, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if given := r.Header.Get(AdminSecretHeader); given != "" {
				if secret != "" && subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
				logger.Warn().Str("path", r.URL.Path).Msg("Wrong admin secret")
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			raw := util.TokenFromRequest(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := tokens.ValidateJWT(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if claims.Role != util.RoleAdmin {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
