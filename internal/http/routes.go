package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mfigueredo/tokenbridge/internal/auth"
	"github.com/mfigueredo/tokenbridge/internal/http/errors"
	"github.com/mfigueredo/tokenbridge/internal/http/handlers"
	"github.com/mfigueredo/tokenbridge/internal/http/middlewares"
	"github.com/mfigueredo/tokenbridge/internal/store"
)

// RouterDeps carries everything the router needs wired in.
type RouterDeps struct {
	Auth  auth.Service
	Users store.Users

	// CORSAllowedOrigins feeds the CORS middleware. Empty slice disables CORS.
	CORSAllowedOrigins []string

	// ReadyChecks feeds /readyz. Keys are component names.
	ReadyChecks map[string]handlers.ReadyCheck

	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
}

// NewRouter assembles the full route tree and middleware stack.
func NewRouter(deps RouterDeps) http.Handler {
	exchange := handlers.NewExchangeController(deps.Auth)
	users := handlers.NewUsersController(deps.Users)
	messages := handlers.NewMessagesController()

	r := chi.NewRouter()

	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithLogging())
	r.Use(WithMetrics)
	r.Use(middlewares.WithRecover())
	r.Use(middlewares.WithSecurityHeaders())
	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(middlewares.WithCORS(deps.CORSAllowedOrigins))
	}

	r.Get("/healthz", handlers.Healthz)
	r.Get("/readyz", handlers.Readyz(deps.ReadyChecks))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/apple", exchange.Apple)
		r.Post("/auth/apple/callback", exchange.AppleCallback)
		r.Post("/auth/google", exchange.Google)

		// Anonymous requests pass through; a valid bearer token personalizes
		// the response.
		r.Method(http.MethodGet, "/messages/public",
			middlewares.ChainFunc(messages.Public, middlewares.OptionalAuth(deps.Auth)))

		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireAuth(deps.Auth))

			r.Get("/users/me", users.Me)
			r.Get("/users/{userID}", users.GetByID)
			r.Get("/users", users.List)
			r.Get("/messages/private", messages.Private)
			r.Get("/feed", messages.Feed)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrNotFound)
	})

	return r
}
