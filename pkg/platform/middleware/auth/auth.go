// Package auth resolves the caller identity from an optional bearer token.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"phoneintel/pkg/platform/httputil"
	"phoneintel/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns its subject.
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// Claims represents the claims the middleware needs from a token.
type Claims struct {
	Subject string
}

// OptionalAuth records the token subject as the request caller. Requests
// without an Authorization header pass through anonymously; a present but
// malformed or invalid token is rejected with 401.
func OptionalAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, httputil.NewError(http.StatusUnauthorized, httputil.CodeUnauthorized,
					"Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, httputil.NewError(http.StatusUnauthorized, httputil.CodeUnauthorized,
					"Invalid or expired token"))
				return
			}

			if claims.Subject != "" {
				ctx = requestcontext.WithCaller(ctx, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
