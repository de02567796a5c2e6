package middlewares

import (
	"net/http"
	"strings"

	"github.com/mfigueredo/tokenbridge/internal/auth"
	"github.com/mfigueredo/tokenbridge/internal/http/errors"
	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
)

// RequireAuth validates Authorization: Bearer <token> through the verification
// service and stores the verified claims in the context. Responds 401 when the
// token is missing or fails verification; the response body never says why a
// token was rejected.
func RequireAuth(svc auth.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}

			claims, err := svc.VerifyBearer(r.Context(), raw)
			if err != nil {
				logger.From(r.Context()).Warn("bearer verification failed",
					logger.Op("require_auth"),
					logger.Err(err),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				errors.WriteError(w, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if claims.Subject != "" {
				ctx = WithUserID(ctx, claims.Subject)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth validates the bearer token when present but lets anonymous
// requests through untouched.
func OptionalAuth(svc auth.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := svc.VerifyBearer(r.Context(), raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if claims.Subject != "" {
				ctx = WithUserID(ctx, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(ah[len("Bearer "):])
	if raw == "" {
		return "", false
	}
	return raw, true
}
