package middlewares

import (
	"context"

	"github.com/mfigueredo/tokenbridge/internal/token"
)

type ctxKey string

const (
	ctxClaimsKey    ctxKey = "claims"
	ctxUserIDKey    ctxKey = "user_id"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithClaims stores the verified token claims in the context.
func WithClaims(ctx context.Context, claims *token.VerifiedClaims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, claims)
}

// WithUserID stores the authenticated subject in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetClaims returns the verified claims, or nil when the request did not pass
// through RequireAuth.
func GetClaims(ctx context.Context) *token.VerifiedClaims {
	if v := ctx.Value(ctxClaimsKey); v != nil {
		if c, ok := v.(*token.VerifiedClaims); ok {
			return c
		}
	}
	return nil
}

// GetUserID returns the authenticated subject, or "" when anonymous.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(ctxUserIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRequestID returns the request id, or "" when WithRequestID was not applied.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
