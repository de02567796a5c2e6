package handlers

import (
	"net/http"
	"strings"

	"github.com/mfigueredo/tokenbridge/internal/auth"
	authdto "github.com/mfigueredo/tokenbridge/internal/http/dto/auth"
	"github.com/mfigueredo/tokenbridge/internal/http/errors"
	"github.com/mfigueredo/tokenbridge/internal/metrics"
	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
	"github.com/mfigueredo/tokenbridge/internal/token"
)

// ExchangeController exposes the provider-specific token exchange endpoints.
// Each exchange verifies an external identity token, provisions the account
// on first sight, and answers with freshly minted native tokens.
type ExchangeController struct {
	service auth.Service
}

// NewExchangeController creates an ExchangeController.
func NewExchangeController(service auth.Service) *ExchangeController {
	return &ExchangeController{service: service}
}

// Apple handles POST /v1/auth/apple.
func (c *ExchangeController) Apple(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ExchangeController.Apple"))

	var req authdto.AppleExchangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.IdentityToken) == "" {
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("identity_token required"))
		return
	}

	bundle, err := c.service.Exchange(ctx, token.KindApple, req.IdentityToken, req.Email, req.FullName)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues(string(token.KindApple), exchangeResult(err)).Inc()
		log.Warn("apple exchange failed", logger.Err(err))
		errors.WriteError(w, err)
		return
	}

	metrics.TokenExchanges.WithLabelValues(string(token.KindApple), "ok").Inc()
	writeJSON(w, http.StatusOK, bundle)
}

// Google handles POST /v1/auth/google.
func (c *ExchangeController) Google(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ExchangeController.Google"))

	var req authdto.GoogleExchangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("id_token required"))
		return
	}

	bundle, err := c.service.Exchange(ctx, token.KindGoogle, req.IDToken, req.Email, req.FullName)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues(string(token.KindGoogle), exchangeResult(err)).Inc()
		log.Warn("google exchange failed", logger.Err(err))
		errors.WriteError(w, err)
		return
	}

	metrics.TokenExchanges.WithLabelValues(string(token.KindGoogle), "ok").Inc()
	writeJSON(w, http.StatusOK, bundle)
}

func exchangeResult(err error) string {
	if appErr := errors.FromError(err); appErr.HTTPStatus == http.StatusUnauthorized {
		return "invalid"
	}
	return "failed"
}
