package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// STANDARD FIELDS - HTTP
// =================================================================================

// RequestID builds a field for the request ID.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method builds a field for the HTTP method.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path builds a field for the request path.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status builds a field for the HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration builds a field for the request duration.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// DurationMs builds a field for the duration in milliseconds.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes builds a field for the response size.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP builds a field for the client IP.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// STANDARD FIELDS - DOMAIN
// =================================================================================

// Provider builds a field for the identity provider name.
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// Issuer builds a field for a token issuer.
func Issuer(v string) zap.Field {
	return zap.String("issuer", v)
}

// KID builds a field for a signing key id.
func KID(v string) zap.Field {
	return zap.String("kid", v)
}

// Username builds a field for the downstream pool username.
// Callers must pass masked values for email-shaped usernames.
func Username(v string) zap.Field {
	return zap.String("username", v)
}

// UserID builds a field for the (local) user id.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// =================================================================================
// STANDARD FIELDS - SYSTEM
// =================================================================================

// Component builds a field for the component/module name.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op builds a field for the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer builds a field for the layer (handler, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err builds a field for an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// GENERIC FIELDS
// =================================================================================

// Count builds a field for a count.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String builds a generic string field.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int builds a generic int field.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool builds a generic bool field.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any builds a generic field for any value.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
