package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mfigueredo/tokenbridge/internal/auth"
	"github.com/mfigueredo/tokenbridge/internal/identity"
	"github.com/mfigueredo/tokenbridge/internal/jwks"
	"github.com/mfigueredo/tokenbridge/internal/token"
)

// errorResponse controls exactly which AppError fields reach the client.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// FromError converts any error into an AppError. Domain sentinels from the
// verification and provisioning layers get their catalog mapping; anything
// unrecognized collapses to a generic 500 with the cause preserved for logs.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrInvalidKey),
		errors.Is(err, token.ErrInvalidAudience),
		errors.Is(err, token.ErrInvalid):
		return ErrTokenInvalid.WithCause(err)
	case errors.Is(err, token.ErrUnknownProvider):
		return ErrProviderNotConfigured.WithCause(err)
	case errors.Is(err, jwks.ErrUnavailable):
		return ErrAuthUpstreamUnavailable.WithCause(err)
	case errors.Is(err, auth.ErrMissingSubject):
		return ErrMissingSubject.WithCause(err)
	case errors.Is(err, identity.ErrEmailRequired):
		return ErrEmailRequired.WithCause(err)
	case errors.Is(err, identity.ErrPoolUnavailable):
		return ErrAuthUpstreamUnavailable.WithCause(err)
	case errors.Is(err, identity.ErrProvisioningFailed):
		return ErrProvisioningFailed.WithCause(err)
	case errors.Is(err, identity.ErrMintFailed):
		return ErrTokenMintingFailed.WithCause(err)
	}

	return ErrInternalServerError.WithCause(err)
}

// WriteError renders err as the canonical JSON error body.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
