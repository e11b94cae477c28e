package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"cyber-monitor/backend/internal/platform/httpjson"
	"cyber-monitor/backend/internal/security"
)

const bearerPrefix = "bearer "

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*security.Claims, error)
}

// RequireBearer returns middleware that rejects requests without a valid Bearer token
// and stores the verified claims in the request context.
// A nil verifier disables authentication.
func RequireBearer(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				httpjson.Fail(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("bearer token rejected")
				httpjson.Fail(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization")
				return
			}
			next.ServeHTTP(w, r.WithContext(security.WithClaims(r.Context(), claims)))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
