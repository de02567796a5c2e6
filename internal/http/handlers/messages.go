package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueredo/tokenbridge/internal/http/middlewares"
)

// MessagesController serves the demo content endpoints used to exercise the
// auth pipeline: one open route and one behind RequireAuth.
type MessagesController struct{}

// NewMessagesController creates a MessagesController.
func NewMessagesController() *MessagesController {
	return &MessagesController{}
}

// Public handles GET /v1/messages/public. The route sits behind OptionalAuth,
// so a valid bearer token adds the caller's subject to the response.
func (c *MessagesController) Public(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"message": "This content is public.",
	}
	if claims := middlewares.GetClaims(r.Context()); claims != nil {
		resp["subject"] = claims.Subject
	}
	writeJSON(w, http.StatusOK, resp)
}

// Private handles GET /v1/messages/private.
func (c *MessagesController) Private(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"message": "This content requires a valid bearer token.",
	}
	if claims := middlewares.GetClaims(r.Context()); claims != nil {
		resp["subject"] = claims.Subject
		resp["issuer"] = claims.Issuer
	}
	writeJSON(w, http.StatusOK, resp)
}

type feedItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Feed handles GET /v1/feed. Items are generated per request; the endpoint
// exists to give clients an authenticated list resource to render.
func (c *MessagesController) Feed(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	items := []feedItem{
		{ID: uuid.NewString(), Title: "Welcome", Body: "Your account is active.", CreatedAt: now},
		{ID: uuid.NewString(), Title: "Getting started", Body: "Connect a client to begin.", CreatedAt: now.Add(-time.Hour)},
		{ID: uuid.NewString(), Title: "Tip", Body: "Tokens refresh automatically.", CreatedAt: now.Add(-24 * time.Hour)},
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}
