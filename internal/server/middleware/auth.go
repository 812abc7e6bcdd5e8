package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"account-security-plane/internal/revocation"
	"account-security-plane/internal/security"
)

const bearerPrefix = "bearer "

// Auth returns middleware that validates the Bearer access token, rejects
// tokens whose session has been revoked, and sets user_id and session_id in
// the request context.
func Auth(tokens *security.TokenProvider, revoked revocation.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				unauthorized(w)
				return
			}
			sessionID, _, userID, err := tokens.ValidateAccess(token)
			if err != nil {
				unauthorized(w)
				return
			}
			if revoked != nil {
				gone, err := revoked.Contains(r.Context(), sessionID)
				if err != nil {
					log.Error().Err(err).Msg("auth: revocation lookup failed")
					http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
					return
				}
				if gone {
					unauthorized(w)
					return
				}
			}
			ctx := WithIdentity(r.Context(), userID, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"missing or invalid authorization"}`))
}

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
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
