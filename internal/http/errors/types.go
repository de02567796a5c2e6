package errors

import (
	"fmt"
	"net/http"
)

// AppError is the canonical error shape returned by the HTTP layer.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // original cause, logged but never sent to the client
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a bare AppError.
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// WithDetail returns a copy with extra client-visible detail. The catalog
// entries below are package globals, so mutating in place is not an option.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause returns a copy carrying the original error for logging.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// ---------------------------------------------------------------------------------
// 400 Bad Request
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "The request is malformed or missing required parameters.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "The request body is not valid JSON.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Required fields are missing from the request.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrEmailRequired = &AppError{
		Code:       "EMAIL_REQUIRED",
		Message:    "An email address is required to provision this account.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingSubject = &AppError{
		Code:       "MISSING_SUBJECT",
		Message:    "The identity token does not carry a subject claim.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 401 Unauthorized
// ---------------------------------------------------------------------------------

var (
	ErrTokenMissing = &AppError{
		Code:       "TOKEN_MISSING",
		Message:    "No bearer token was provided.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrTokenInvalid deliberately covers every verification failure mode:
	// bad signature, expired, wrong audience, unknown key. Distinguishing
	// them in the response would hand an attacker a validation oracle.
	ErrTokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "The access token is invalid or has expired.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// ---------------------------------------------------------------------------------
// 404 Not Found
// ---------------------------------------------------------------------------------

var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "The requested resource was not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUserNotFound = &AppError{
		Code:       "USER_NOT_FOUND",
		Message:    "The specified user does not exist.",
		HTTPStatus: http.StatusNotFound,
	}
)

// ---------------------------------------------------------------------------------
// 500+ Server Errors
// ---------------------------------------------------------------------------------

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "An internal server error occurred.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrProviderNotConfigured = &AppError{
		Code:       "PROVIDER_NOT_CONFIGURED",
		Message:    "The requested identity provider is not configured.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrProvisioningFailed = &AppError{
		Code:       "PROVISIONING_FAILED",
		Message:    "The user account could not be provisioned.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrTokenMintingFailed = &AppError{
		Code:       "TOKEN_MINTING_FAILED",
		Message:    "Session tokens could not be issued.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrAuthUpstreamUnavailable = &AppError{
		Code:       "AUTH_UPSTREAM_UNAVAILABLE",
		Message:    "The authentication service is temporarily unavailable.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
