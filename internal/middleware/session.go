package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"campus-map-server/internal/auth"
	"campus-map-server/internal/shared/cookies"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/shared/response"
)

type contextKey string

const SessionContextKey contextKey = "session"

// RequireSession rejects requests without a valid viewer token and stores
// the session claims in the request context.
func RequireSession(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := slog.With(
				"middleware", "session",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			token := cookies.SessionToken(r)
			if token == "" {
				response.Error(w, r, logger, errors.Unauthorized("viewer session required"))
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				response.Error(w, r, logger, errors.Unauthorized("invalid session token"))
				return
			}

			logger.Debug("Viewer session accepted", "session_id", claims.SessionID)
			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(SessionContextKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
